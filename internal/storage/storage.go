// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/snipekit/solana-sniper/internal/storage/models"
)

// Storage is the persistence boundary. The engine only reads active
// subscriptions and appends history; it never mutates user configuration.
type Storage interface {
	// Users
	ActiveUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, ownerID string) (*models.User, error)

	// Hit history
	SaveTargetHit(ctx context.Context, hit *models.TargetHit) error
	SaveStopLossHit(ctx context.Context, hit *models.StopLossHit) error

	// Discovery dedup
	IsPairSeen(ctx context.Context, pairAddress string) (bool, error)
	MarkPairSeen(ctx context.Context, pairAddress string) error

	// Migrations
	RunMigrations() error
}
