package models

import "time"

// CreditAccount is the only mutable row in the credit subsystem. Balance and
// Version are touched exclusively by the ledger inside a row-locked
// transaction; Version is the optimistic-concurrency token for the
// compare-and-swap fallback path.
type CreditAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   uint64    `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
