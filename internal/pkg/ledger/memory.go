package ledger

import (
	"context"
	"sync"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// MemoryRepository is an in-process Repository with the same serialization
// guarantees as the GORM implementation: one mutex per account row, a global
// uniqueness check on idempotency keys. Used by tests and local development.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[uint]*models.CreditAccount
	byKey    map[string]*models.CreditTransaction
	txns     []*models.CreditTransaction
	locks    map[uint]*sync.Mutex
	nextID   uint
}

// NewMemoryRepository creates an empty in-memory ledger store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[uint]*models.CreditAccount),
		byKey:    make(map[string]*models.CreditTransaction),
		locks:    make(map[uint]*sync.Mutex),
	}
}

// SeedAccount installs an account with a starting balance, bypassing the
// movement log. Test setup only.
func (r *MemoryRepository) SeedAccount(userID uint, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[userID] = &models.CreditAccount{ID: userID, UserID: userID, Balance: balance}
	if balance != 0 {
		r.nextID++
		txn := &models.CreditTransaction{
			ID:               r.nextID,
			UserID:           userID,
			Delta:            balance,
			Reason:           models.TransactionReasonTopUp,
			IdempotencyKey:   "seed:" + models.NewSessionUUID(),
			ResultingBalance: balance,
		}
		r.byKey[txn.IdempotencyKey] = txn
		r.txns = append(r.txns, txn)
	}
}

func (r *MemoryRepository) rowLock(userID uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}

func (r *MemoryRepository) Apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*models.CreditTransaction, error) {
	// Per-user row lock, matching SELECT ... FOR UPDATE scope.
	lock := r.rowLock(userID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if _, used := r.byKey[key]; used {
		return nil, ErrDuplicateKey
	}

	newBalance := account.Balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientCredits
	}

	account.Balance = newBalance
	account.Version++
	r.nextID++
	txn := &models.CreditTransaction{
		ID:               r.nextID,
		UserID:           userID,
		SessionUUID:      sessionUUID,
		Delta:            delta,
		Reason:           reason,
		IdempotencyKey:   key,
		ResultingBalance: newBalance,
	}
	r.byKey[key] = txn
	r.txns = append(r.txns, txn)

	copied := *txn
	return &copied, nil
}

func (r *MemoryRepository) FindTransactionByKey(ctx context.Context, key string) (*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := *txn
	return &copied, nil
}

func (r *MemoryRepository) FindDebitBySession(ctx context.Context, sessionUUID string) (*models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.SessionUUID == sessionUUID && txn.Reason == models.TransactionReasonDebit {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, userID uint) (*models.CreditAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *MemoryRepository) EnsureAccount(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[userID]; !ok {
		r.accounts[userID] = &models.CreditAccount{ID: userID, UserID: userID}
	}
	return nil
}

func (r *MemoryRepository) SumDeltas(ctx context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, txn := range r.txns {
		if txn.UserID == userID {
			sum += txn.Delta
		}
	}
	return sum, nil
}

func (r *MemoryRepository) TransactionsByUser(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CreditTransaction
	for i := len(r.txns) - 1; i >= 0; i-- {
		if r.txns[i].UserID == userID {
			out = append(out, *r.txns[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
