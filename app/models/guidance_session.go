package models

import (
	"time"

	"github.com/google/uuid"
)

// Guidance session lifecycle. Rejected sessions never had a debit;
// failed_needs_manual_review means a compensating refund itself failed and an
// operator has to resolve the account by hand.
const (
	SessionStatusPending          = "pending"
	SessionStatusActive           = "active"
	SessionStatusCompleted        = "completed"
	SessionStatusFailed           = "failed"
	SessionStatusRefunded         = "refunded"
	SessionStatusRejected         = "rejected"
	SessionStatusNeedsManualFixup = "failed_needs_manual_review"
)

// GuidanceSession is one purchased guidance session. CreditsCharged mirrors the
// referenced quote's FinalCredits at debit time so the session row stays
// self-describing even as cost models evolve.
type GuidanceSession struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	ServiceTypeSlug string     `gorm:"type:varchar(64);not null;index" json:"service_type"`
	PriceQuoteUUID  string     `gorm:"type:varchar(36);not null" json:"price_quote_uuid"`
	IdempotencyKey  string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"`
	CreditsCharged  int64      `gorm:"not null;default:0" json:"credits_charged"`
	Status          string     `gorm:"type:varchar(40);not null;default:'pending';index" json:"status"`
	StartedAt       *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	EndedAt         *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewSessionUUID returns the public identifier for a new session.
func NewSessionUUID() string {
	return uuid.New().String()
}

// sessionTransitions encodes the allowed state machine:
// pending -> active | rejected | failed; active -> completed | failed;
// failed -> refunded | failed_needs_manual_review. The pending -> failed edge
// covers a debit whose session activation failed and was compensated.
var sessionTransitions = map[string][]string{
	SessionStatusPending: {SessionStatusActive, SessionStatusRejected, SessionStatusFailed, SessionStatusNeedsManualFixup},
	SessionStatusActive:  {SessionStatusCompleted, SessionStatusFailed},
	SessionStatusFailed:  {SessionStatusRefunded, SessionStatusNeedsManualFixup},
}

// CanTransition reports whether moving the session to the given status is a
// legal state-machine step.
func (s *GuidanceSession) CanTransition(to string) bool {
	for _, next := range sessionTransitions[s.Status] {
		if next == to {
			return true
		}
	}
	return false
}
