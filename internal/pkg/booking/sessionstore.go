package booking

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// ErrIllegalTransition means a session status update violated the state
// machine (e.g. completing a session that was never active).
var ErrIllegalTransition = errors.New("illegal session state transition")

// SessionStore persists guidance sessions. Transition applies a guarded
// status change: the update only takes effect when the row is still in the
// expected source state, which keeps concurrent lifecycle calls honest.
type SessionStore interface {
	Create(ctx context.Context, session *models.GuidanceSession) error
	GetByUUID(ctx context.Context, uuid string) (*models.GuidanceSession, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.GuidanceSession, error)
	Transition(ctx context.Context, uuid, from, to string, updates map[string]interface{}) error
}

type gormSessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a session store backed by GORM.
func NewSessionStore(db *gorm.DB) SessionStore {
	return &gormSessionStore{db: db}
}

func (s *gormSessionStore) Create(ctx context.Context, session *models.GuidanceSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *gormSessionStore) GetByUUID(ctx context.Context, uuid string) (*models.GuidanceSession, error) {
	var session models.GuidanceSession
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *gormSessionStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.GuidanceSession, error) {
	var session models.GuidanceSession
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s *gormSessionStore) Transition(ctx context.Context, uuid, from, to string, updates map[string]interface{}) error {
	// The edge itself is checked up front; the guarded WHERE below only
	// protects against the row having left the source state concurrently.
	if !(&models.GuidanceSession{Status: from}).CanTransition(to) {
		return ErrIllegalTransition
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := s.db.WithContext(ctx).Model(&models.GuidanceSession{}).
		Where("uuid = ? AND status = ?", uuid, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIllegalTransition
	}
	return nil
}
