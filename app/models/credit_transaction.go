package models

import "time"

// Transaction reasons. "compensation" marks a refund issued by the booking saga
// after a failed session creation, as opposed to a user-visible refund.
const (
	TransactionReasonDebit        = "debit"
	TransactionReasonRefund       = "refund"
	TransactionReasonCompensation = "compensation"
	TransactionReasonTopUp        = "topup"
)

// CreditTransaction is the append-only movement log for credit accounts. The
// unique index on IdempotencyKey is the hard guarantee that one logical client
// attempt produces at most one movement, regardless of races or retries.
type CreditTransaction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	SessionUUID      string    `gorm:"type:varchar(36);index;default:null" json:"session_uuid,omitempty"`
	Delta            int64     `gorm:"not null" json:"delta"`
	Reason           string    `gorm:"type:varchar(32);not null" json:"reason"`
	IdempotencyKey   string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"`
	ResultingBalance int64     `gorm:"not null" json:"resulting_balance"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
