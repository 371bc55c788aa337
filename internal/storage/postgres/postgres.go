// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snipekit/solana-sniper/internal/storage"
	"github.com/snipekit/solana-sniper/internal/storage/models"
)

// gormLogger bridges GORM logging onto zap.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage opens the connection pool and returns the Storage
// implementation backed by Postgres.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(101)")

	err = p.db.AutoMigrate(
		&models.User{},
		&models.TargetHit{},
		&models.StopLossHit{},
		&models.SeenPair{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (p *postgresStorage) ActiveUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := p.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at asc").
		Find(&users).Error
	return users, err
}

func (p *postgresStorage) GetUser(ctx context.Context, ownerID string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *postgresStorage) SaveTargetHit(ctx context.Context, hit *models.TargetHit) error {
	return p.db.WithContext(ctx).Create(hit).Error
}

func (p *postgresStorage) SaveStopLossHit(ctx context.Context, hit *models.StopLossHit) error {
	return p.db.WithContext(ctx).Create(hit).Error
}

func (p *postgresStorage) IsPairSeen(ctx context.Context, pairAddress string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.SeenPair{}).
		Where("pair_address = ?", pairAddress).
		Count(&count).Error
	return count > 0, err
}

func (p *postgresStorage) MarkPairSeen(ctx context.Context, pairAddress string) error {
	return p.db.WithContext(ctx).
		Where("pair_address = ?", pairAddress).
		FirstOrCreate(&models.SeenPair{PairAddress: pairAddress}).Error
}
