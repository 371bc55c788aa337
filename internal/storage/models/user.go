// internal/storage/models/user.go
package models

// User is one subscribed account. SecretRef points into the secret store;
// the raw key never lands in this table or in logs.
type User struct {
	BaseModel
	OwnerID          string  `gorm:"uniqueIndex;not null;type:varchar(64)"`
	SecretRef        string  `gorm:"not null;type:varchar(128)"`
	WalletAddress    string  `gorm:"index;type:varchar(44)"`
	BuyAmountSol     float64 `gorm:"type:decimal(20,9);default:0.001"`
	TargetMultiplier float64 `gorm:"type:decimal(10,4);default:2.0"`
	Active           bool    `gorm:"index;default:false"`
}
