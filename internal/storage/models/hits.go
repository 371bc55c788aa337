// internal/storage/models/hits.go
package models

// TargetHit records one take-profit exit for history.
type TargetHit struct {
	BaseModel
	OwnerID       string  `gorm:"index;not null;type:varchar(64)"`
	TokenMint     string  `gorm:"index;not null;type:varchar(44)"`
	ProfitPercent float64 `gorm:"type:decimal(10,2)"`
}

// StopLossHit records one emergency exit for history.
type StopLossHit struct {
	BaseModel
	OwnerID     string  `gorm:"index;not null;type:varchar(64)"`
	TokenMint   string  `gorm:"index;not null;type:varchar(44)"`
	LossPercent float64 `gorm:"type:decimal(10,2)"`
}

// SeenPair deduplicates the discovery feed across restarts.
type SeenPair struct {
	BaseModel
	PairAddress string `gorm:"uniqueIndex;not null;type:varchar(44)"`
}
