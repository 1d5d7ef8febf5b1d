package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
)

// CompensationFailureError means a refund issued after a failed session
// creation itself failed. The account now holds a debit with no active
// session; the session row is parked in failed_needs_manual_review and an
// operator has to reconcile by hand. This error is never swallowed.
type CompensationFailureError struct {
	SessionUUID string
	UserID      uint
	Amount      int64
	Cause       error
}

func (e *CompensationFailureError) Error() string {
	return fmt.Sprintf("compensation refund failed for session %s (user %d, %d credits): %v",
		e.SessionUUID, e.UserID, e.Amount, e.Cause)
}

func (e *CompensationFailureError) Unwrap() error { return e.Cause }

// SessionObserver is notified after a session start commits. Used to feed the
// demand telemetry counters; failures there must never affect the booking.
type SessionObserver interface {
	SessionStarted(slug string)
}

// StartResult is the outcome of StartSession. Replayed means the idempotency
// key matched a prior attempt and Session is that attempt's record, returned
// verbatim with no new side effects.
type StartResult struct {
	Session          *models.GuidanceSession
	Quote            *models.PriceQuote
	CreditsCharged   int64
	RemainingBalance int64
	Replayed         bool
}

// Coordinator orchestrates "start session": quote, debit, session record,
// with a compensating refund when the record step fails after the debit
// committed. No two-phase commit; the saga substitutes for it.
type Coordinator struct {
	calculator *pricing.Calculator
	ledger     *ledger.Service
	sessions   SessionStore
	observer   SessionObserver
}

// NewCoordinator wires the booking saga.
func NewCoordinator(calculator *pricing.Calculator, ledgerSvc *ledger.Service, sessions SessionStore) *Coordinator {
	return &Coordinator{
		calculator: calculator,
		ledger:     ledgerSvc,
		sessions:   sessions,
	}
}

// WithObserver attaches a post-commit session observer.
func (c *Coordinator) WithObserver(obs SessionObserver) *Coordinator {
	c.observer = obs
	return c
}

// StartSession runs the booking saga:
//
//  1. Replay check on the idempotency key.
//  2. Price quote (validation failure for unknown services, no side effects).
//  3. Pending session record, then ReserveAndDebit keyed by the client key.
//  4. Insufficient funds: session moves pending -> rejected, error returned,
//     no debit ever happened.
//  5. Debit committed: session moves pending -> active. If that transition
//     fails, a compensating refund restores the balance; if the refund fails
//     too, the session is parked for manual review and a
//     CompensationFailureError surfaces.
func (c *Coordinator) StartSession(ctx context.Context, userID uint, serviceSlug, idempotencyKey string) (*StartResult, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	if prior, err := c.sessions.GetByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	} else if prior != nil {
		return c.replay(ctx, prior)
	}

	quote, err := c.calculator.Calculate(serviceSlug, userID)
	if err != nil {
		return nil, err
	}

	session := &models.GuidanceSession{
		UUID:            models.NewSessionUUID(),
		UserID:          userID,
		ServiceTypeSlug: serviceSlug,
		PriceQuoteUUID:  quote.UUID,
		IdempotencyKey:  idempotencyKey,
		Status:          models.SessionStatusPending,
	}
	if err := c.sessions.Create(ctx, session); err != nil {
		// Unique key collision from a concurrent attempt: replay it.
		if prior, lookupErr := c.sessions.GetByIdempotencyKey(ctx, idempotencyKey); lookupErr == nil && prior != nil {
			return c.replay(ctx, prior)
		}
		return nil, err
	}

	return c.activate(ctx, session, quote)
}

// activate drives a pending session through debit and activation. It is also
// the tail of a resumed retry: a pending row whose debit never committed goes
// through here again with the same idempotency key.
func (c *Coordinator) activate(ctx context.Context, session *models.GuidanceSession, quote *models.PriceQuote) (*StartResult, error) {
	debit, err := c.ledger.ReserveAndDebit(ctx, session.UserID, quote.FinalCredits, session.IdempotencyKey, session.UUID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			if trErr := c.sessions.Transition(ctx, session.UUID, models.SessionStatusPending, models.SessionStatusRejected, nil); trErr != nil {
				log.Errorf("[Booking] could not mark session %s rejected: %v", session.UUID, trErr)
			}
			return nil, err
		}
		// Debit never committed; the pending row stays so a retry with the
		// same key resumes this attempt instead of replaying it.
		return nil, err
	}

	if debit.AlreadyProcessed && debit.Transaction.SessionUUID != session.UUID {
		// The key was already consumed by a different attempt whose session
		// record exists; return that attempt. A replayed debit for this very
		// session means the debit committed but activation never ran: fall
		// through and activate.
		if prior, lookupErr := c.sessions.GetByUUID(ctx, debit.Transaction.SessionUUID); lookupErr == nil {
			return c.replay(ctx, prior)
		}
		return nil, fmt.Errorf("debit replayed but session %s not found", debit.Transaction.SessionUUID)
	}

	now := time.Now()
	err = c.sessions.Transition(ctx, session.UUID, models.SessionStatusPending, models.SessionStatusActive, map[string]interface{}{
		"credits_charged": quote.FinalCredits,
		"started_at":      &now,
	})
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			// Lost a race with a concurrent retry that already advanced the
			// row; its outcome is the authoritative one.
			if prior, lookupErr := c.sessions.GetByUUID(ctx, session.UUID); lookupErr == nil && prior.Status != models.SessionStatusPending {
				return c.replay(ctx, prior)
			}
		}
		return nil, c.compensate(ctx, session, quote.FinalCredits, err)
	}

	session.Status = models.SessionStatusActive
	session.CreditsCharged = quote.FinalCredits
	session.StartedAt = &now

	if c.observer != nil {
		c.observer.SessionStarted(session.ServiceTypeSlug)
	}

	return &StartResult{
		Session:          session,
		Quote:            quote,
		CreditsCharged:   quote.FinalCredits,
		RemainingBalance: debit.NewBalance,
	}, nil
}

// CompleteSession moves an active session to completed.
func (c *Coordinator) CompleteSession(ctx context.Context, sessionUUID string) error {
	now := time.Now()
	return c.sessions.Transition(ctx, sessionUUID, models.SessionStatusActive, models.SessionStatusCompleted, map[string]interface{}{
		"ended_at": &now,
	})
}

// FailSession moves an active session to failed and refunds the debit. The
// refund key derives from the session, so repeated failure reports refund at
// most once.
func (c *Coordinator) FailSession(ctx context.Context, sessionUUID string) error {
	session, err := c.sessions.GetByUUID(ctx, sessionUUID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := c.sessions.Transition(ctx, sessionUUID, models.SessionStatusActive, models.SessionStatusFailed, map[string]interface{}{
		"ended_at": &now,
	}); err != nil {
		return err
	}

	if _, err := c.ledger.Refund(ctx, session.UserID, sessionUUID, models.TransactionReasonRefund); err != nil {
		if trErr := c.sessions.Transition(ctx, sessionUUID, models.SessionStatusFailed, models.SessionStatusNeedsManualFixup, nil); trErr != nil {
			log.Errorf("[Booking] could not park session %s for manual review: %v", sessionUUID, trErr)
		}
		log.Errorf("[Booking] OPERATOR ALERT: refund failed for failed session %s: %v", sessionUUID, err)
		return &CompensationFailureError{
			SessionUUID: sessionUUID,
			UserID:      session.UserID,
			Amount:      session.CreditsCharged,
			Cause:       err,
		}
	}

	return c.sessions.Transition(ctx, sessionUUID, models.SessionStatusFailed, models.SessionStatusRefunded, nil)
}

// GetSession returns a session by public identifier.
func (c *Coordinator) GetSession(ctx context.Context, sessionUUID string) (*models.GuidanceSession, error) {
	return c.sessions.GetByUUID(ctx, sessionUUID)
}

// compensate reverses a committed debit after the session record could not be
// activated. The saga's contract: either the user has an active session and a
// debit, or neither.
func (c *Coordinator) compensate(ctx context.Context, session *models.GuidanceSession, amount int64, cause error) error {
	log.Warnf("[Booking] session %s activation failed after debit, issuing compensation: %v", session.UUID, cause)

	if _, refundErr := c.ledger.Refund(ctx, session.UserID, session.UUID, models.TransactionReasonCompensation); refundErr != nil {
		if trErr := c.sessions.Transition(ctx, session.UUID, models.SessionStatusPending, models.SessionStatusNeedsManualFixup, nil); trErr != nil {
			log.Errorf("[Booking] could not park session %s for manual review: %v", session.UUID, trErr)
		}
		compErr := &CompensationFailureError{
			SessionUUID: session.UUID,
			UserID:      session.UserID,
			Amount:      amount,
			Cause:       refundErr,
		}
		log.Errorf("[Booking] OPERATOR ALERT: %v", compErr)
		return compErr
	}

	if trErr := c.sessions.Transition(ctx, session.UUID, models.SessionStatusPending, models.SessionStatusFailed, nil); trErr != nil {
		log.Errorf("[Booking] could not record aborted state for session %s: %v", session.UUID, trErr)
	} else if trErr := c.sessions.Transition(ctx, session.UUID, models.SessionStatusFailed, models.SessionStatusRefunded, nil); trErr != nil {
		log.Errorf("[Booking] could not record refunded state for session %s: %v", session.UUID, trErr)
	}
	return fmt.Errorf("session activation failed, debit compensated: %w", cause)
}

// replay resolves a repeated idempotency key against the attempt that owns
// it. What comes back depends on how far that attempt got: a settled row is
// returned verbatim, a rejection is reproduced, and a row still pending means
// the debit never committed, so the retry resumes the attempt instead of
// reporting a success that never happened.
func (c *Coordinator) replay(ctx context.Context, prior *models.GuidanceSession) (*StartResult, error) {
	switch prior.Status {
	case models.SessionStatusRejected:
		return nil, ledger.ErrInsufficientCredits
	case models.SessionStatusPending:
		quote, err := c.calculator.Quote(prior.PriceQuoteUUID)
		if err != nil {
			return nil, fmt.Errorf("cannot resume session %s: %w", prior.UUID, err)
		}
		return c.activate(ctx, prior, quote)
	}

	balance, err := c.ledger.Balance(ctx, prior.UserID)
	if err != nil {
		return nil, err
	}
	return &StartResult{
		Session:          prior,
		CreditsCharged:   prior.CreditsCharged,
		RemainingBalance: balance,
		Replayed:         true,
	}, nil
}
