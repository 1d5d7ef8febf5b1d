package ledger

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// Repository provides the atomic DB operations the ledger service builds on.
// Apply must execute its whole movement (replay check, balance check,
// decrement, transaction append) in one serializable unit scoped to the
// user's account row; movements for different users never block each other.
type Repository interface {
	// Apply executes one signed balance movement. A negative delta that would
	// take the balance below zero fails with ErrInsufficientCredits. A reused
	// idempotency key fails with ErrDuplicateKey. Transient serialization
	// failures surface as ErrLedgerConflict.
	Apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*models.CreditTransaction, error)
	FindTransactionByKey(ctx context.Context, key string) (*models.CreditTransaction, error)
	// FindDebitBySession returns the debit movement recorded for a session,
	// or nil when none exists.
	FindDebitBySession(ctx context.Context, sessionUUID string) (*models.CreditTransaction, error)
	GetAccount(ctx context.Context, userID uint) (*models.CreditAccount, error)
	EnsureAccount(ctx context.Context, userID uint) error
	SumDeltas(ctx context.Context, userID uint) (int64, error)
	TransactionsByUser(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM/MySQL.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Apply runs the debit/credit as one transaction around a SELECT ... FOR
// UPDATE on the account row. The unique index on idempotency_key is the
// backstop for races the row lock cannot see (e.g. a key reused across
// different users).
func (r *gormRepository) Apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*models.CreditTransaction, error) {
	var txn *models.CreditTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.CreditAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return classifyDBError(err)
		}

		// Replay check inside the lock so concurrent retries serialize here.
		var existing models.CreditTransaction
		err := tx.Where("idempotency_key = ?", key).First(&existing).Error
		if err == nil {
			return ErrDuplicateKey
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return classifyDBError(err)
		}

		newBalance := account.Balance + delta
		if newBalance < 0 {
			return ErrInsufficientCredits
		}

		res := tx.Model(&models.CreditAccount{}).
			Where("id = ? AND version = ?", account.ID, account.Version).
			Updates(map[string]interface{}{
				"balance": newBalance,
				"version": account.Version + 1,
			})
		if res.Error != nil {
			return classifyDBError(res.Error)
		}
		if res.RowsAffected == 0 {
			// Version moved under the lock; should not happen, treat as
			// transient and let the service retry.
			return ErrLedgerConflict
		}

		txn = &models.CreditTransaction{
			UserID:           userID,
			SessionUUID:      sessionUUID,
			Delta:            delta,
			Reason:           reason,
			IdempotencyKey:   key,
			ResultingBalance: newBalance,
		}
		if err := tx.Create(txn).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return classifyDBError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *gormRepository) FindTransactionByKey(ctx context.Context, key string) (*models.CreditTransaction, error) {
	var txn models.CreditTransaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *gormRepository) FindDebitBySession(ctx context.Context, sessionUUID string) (*models.CreditTransaction, error) {
	var txn models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("session_uuid = ? AND reason = ?", sessionUUID, models.TransactionReasonDebit).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *gormRepository) GetAccount(ctx context.Context, userID uint) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) EnsureAccount(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.CreditAccount{UserID: userID}).Error
}

func (r *gormRepository) SumDeltas(ctx context.Context, userID uint) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("SUM(delta)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *gormRepository) TransactionsByUser(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	var txns []models.CreditTransaction
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&txns).Error
	return txns, err
}

// classifyDBError maps MySQL lock/serialization failures onto
// ErrLedgerConflict so the retry policy can recognize them.
func classifyDBError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock wait timeout") {
		return ErrLedgerConflict
	}
	return err
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}
