package ledger

import (
	"errors"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

var (
	// ErrInsufficientCredits means the balance cannot cover the debit. No
	// side effects; the user recovers by topping up.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrLedgerConflict is a transient serialization failure (lock timeout,
	// optimistic version race). The service retries it internally before it
	// ever reaches a caller.
	ErrLedgerConflict = errors.New("ledger conflict")

	// ErrAccountNotFound means no credit account exists for the user.
	ErrAccountNotFound = errors.New("credit account not found")

	// ErrDuplicateKey is returned by repositories when an idempotency key is
	// already taken. The service resolves it into an AlreadyProcessed result.
	ErrDuplicateKey = errors.New("idempotency key already used")
)

// DebitResult is the outcome of a ReserveAndDebit or TopUp call.
// AlreadyProcessed means the idempotency key had been used before and
// Transaction is the original movement, replayed with no new side effects.
type DebitResult struct {
	Transaction      *models.CreditTransaction
	NewBalance       int64
	AlreadyProcessed bool
}

// Reconciliation reports the audit invariant balance == sum(deltas).
type Reconciliation struct {
	UserID     uint  `json:"user_id"`
	Balance    int64 `json:"balance"`
	DeltaSum   int64 `json:"delta_sum"`
	Consistent bool  `json:"consistent"`
}
