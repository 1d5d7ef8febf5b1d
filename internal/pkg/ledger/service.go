package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/retry"
)

// Service is the credit ledger: the single owner of balance mutations. Every
// movement is keyed by a caller-supplied idempotency key, so client retries
// replay the original result instead of moving credits twice.
type Service struct {
	repo  Repository
	retry retry.Policy
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	policy := retry.DefaultPolicy()
	policy.Retryable = func(err error) bool {
		return errors.Is(err, ErrLedgerConflict)
	}
	return &Service{repo: repo, retry: policy}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ReserveAndDebit withdraws amount from the user's balance exactly once per
// idempotency key. Transient conflicts are retried internally; insufficient
// funds and replays are final on the first attempt.
func (s *Service) ReserveAndDebit(ctx context.Context, userID uint, amount int64, key, sessionUUID string) (*DebitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	if key == "" {
		return nil, errors.New("idempotency key is required")
	}
	return s.apply(ctx, userID, -amount, key, sessionUUID, models.TransactionReasonDebit)
}

// TopUp adds purchased credits to the user's balance, idempotently.
func (s *Service) TopUp(ctx context.Context, userID uint, amount int64, key string) (*DebitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("topup amount must be positive, got %d", amount)
	}
	if key == "" {
		return nil, errors.New("idempotency key is required")
	}
	if err := s.repo.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}
	return s.apply(ctx, userID, amount, key, "", models.TransactionReasonTopUp)
}

// Refund reverses the debit recorded for a session, at most once. The refund
// key is derived from the session so a second refund attempt replays the
// first instead of crediting again.
func (s *Service) Refund(ctx context.Context, userID uint, sessionUUID, reason string) (*DebitResult, error) {
	if sessionUUID == "" {
		return nil, errors.New("session uuid is required")
	}
	if reason != models.TransactionReasonRefund && reason != models.TransactionReasonCompensation {
		return nil, fmt.Errorf("invalid refund reason %q", reason)
	}

	debit, err := s.debitForSession(ctx, sessionUUID)
	if err != nil {
		return nil, err
	}

	key := "refund:" + sessionUUID
	return s.apply(ctx, userID, -debit.Delta, key, sessionUUID, reason)
}

func (s *Service) apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*DebitResult, error) {
	// Fast path: replayed key, no lock needed.
	if existing, err := s.repo.FindTransactionByKey(ctx, key); err == nil && existing != nil {
		return replayResult(existing), nil
	}

	var txn *models.CreditTransaction
	err := s.retry.Do(ctx, func() error {
		var applyErr error
		txn, applyErr = s.repo.Apply(ctx, userID, delta, key, sessionUUID, reason)
		return applyErr
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost the race to a concurrent attempt with the same key.
			existing, findErr := s.repo.FindTransactionByKey(ctx, key)
			if findErr != nil || existing == nil {
				return nil, fmt.Errorf("idempotency replay lookup failed: %w", err)
			}
			return replayResult(existing), nil
		}
		if errors.Is(err, ErrLedgerConflict) {
			log.Errorf("[Ledger] giving up on user %d after contention retries: %v", userID, err)
		}
		return nil, err
	}

	return &DebitResult{Transaction: txn, NewBalance: txn.ResultingBalance}, nil
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Transactions returns the user's most recent movements, newest first.
func (s *Service) Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	return s.repo.TransactionsByUser(ctx, userID, limit)
}

// Reconcile checks the audit invariant balance == sum(transaction deltas).
func (s *Service) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.SumDeltas(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		UserID:     userID,
		Balance:    account.Balance,
		DeltaSum:   sum,
		Consistent: account.Balance == sum,
	}, nil
}

// EnsureAccount creates a zero-balance account for the user if none exists.
func (s *Service) EnsureAccount(ctx context.Context, userID uint) error {
	return s.repo.EnsureAccount(ctx, userID)
}

func (s *Service) debitForSession(ctx context.Context, sessionUUID string) (*models.CreditTransaction, error) {
	debit, err := s.repo.FindDebitBySession(ctx, sessionUUID)
	if err != nil {
		return nil, err
	}
	if debit == nil {
		return nil, fmt.Errorf("no debit recorded for session %s", sessionUUID)
	}
	return debit, nil
}

func replayResult(txn *models.CreditTransaction) *DebitResult {
	return &DebitResult{
		Transaction:      txn,
		NewBalance:       txn.ResultingBalance,
		AlreadyProcessed: true,
	}
}
