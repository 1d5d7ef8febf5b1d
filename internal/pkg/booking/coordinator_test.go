package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/ledger"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
)

// memorySessionStore mirrors the guarded-update semantics of the GORM store.
type memorySessionStore struct {
	mu               sync.Mutex
	byUUID           map[string]*models.GuidanceSession
	byKey            map[string]*models.GuidanceSession
	failTransitionTo map[string]error
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{
		byUUID:           make(map[string]*models.GuidanceSession),
		byKey:            make(map[string]*models.GuidanceSession),
		failTransitionTo: make(map[string]error),
	}
}

func (s *memorySessionStore) Create(ctx context.Context, session *models.GuidanceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[session.IdempotencyKey]; exists {
		return errors.New("Error 1062 (23000): Duplicate entry")
	}
	copied := *session
	s.byUUID[session.UUID] = &copied
	s.byKey[session.IdempotencyKey] = &copied
	return nil
}

func (s *memorySessionStore) GetByUUID(ctx context.Context, uuid string) (*models.GuidanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byUUID[uuid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memorySessionStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.GuidanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *memorySessionStore) Transition(ctx context.Context, uuid, from, to string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failTransitionTo[to]; ok {
		return err
	}
	session, ok := s.byUUID[uuid]
	if !ok || session.Status != from {
		return ErrIllegalTransition
	}
	session.Status = to
	if v, ok := updates["credits_charged"]; ok {
		session.CreditsCharged = v.(int64)
	}
	if v, ok := updates["started_at"]; ok {
		session.StartedAt = v.(*time.Time)
	}
	if v, ok := updates["ended_at"]; ok {
		session.EndedAt = v.(*time.Time)
	}
	return nil
}

func (s *memorySessionStore) status(uuid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byUUID[uuid]; ok {
		return session.Status
	}
	return ""
}

type recordingObserver struct {
	mu    sync.Mutex
	slugs []string
}

func (o *recordingObserver) SessionStarted(slug string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slugs = append(o.slugs, slug)
}

// catalogRepo is a fixed-price pricing repository: $0.80 base, margin 2.5.
type catalogRepo struct {
	saved []*models.PriceQuote
}

func (r *catalogRepo) GetServiceType(slug string) (*models.ServiceType, error) {
	if slug != "video_guidance" {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.ServiceType{
		ID:                  1,
		Slug:                "video_guidance",
		Name:                "Video Guidance",
		BaseDurationMinutes: 15,
		Capabilities:        "voice,video,remedies",
		CostModel: models.CostModel{
			VoiceUSDPerMinute:       0.01,
			VideoUSDPerMinute:       0.04,
			RemediesUSDPer1KTokens:  0.05,
			CreditsPerDollar:        10,
			MinimumMarginMultiplier: 2.5,
		},
		IsActive: true,
	}, nil
}

func (r *catalogRepo) UpdateCostModel(cm *models.CostModel) error { return nil }

func (r *catalogRepo) SaveQuote(q *models.PriceQuote) error {
	copied := *q
	r.saved = append(r.saved, &copied)
	return nil
}

func (r *catalogRepo) QuotesInRange(slug string, from, to time.Time) ([]models.PriceQuote, error) {
	return nil, nil
}

func (r *catalogRepo) GetQuoteByUUID(uuid string) (*models.PriceQuote, error) {
	for _, q := range r.saved {
		if q.UUID == uuid {
			copied := *q
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *catalogRepo) AppendOverrideEvent(e *models.OverrideEvent) error { return nil }

func (r *catalogRepo) OverrideEvents(overrideID uint) ([]models.OverrideEvent, error) {
	return nil, nil
}

type neutralTelemetry struct{}

func (neutralTelemetry) RecentSessionCount(slug string, window time.Duration) (int64, error) {
	return 10, nil
}

func (neutralTelemetry) BaselineSessionCount(slug string, window time.Duration) (float64, error) {
	return 10, nil
}

type noCache struct{}

func (noCache) Status(userID uint, slug string) (pricing.CacheStatus, error) {
	return pricing.CacheStatus{Level: pricing.CacheLevelNone}, nil
}

// debitFailOnceRepo drops the first debit write the way a lost DB connection
// would, then behaves normally.
type debitFailOnceRepo struct {
	ledger.Repository
	mu     sync.Mutex
	failed bool
}

func (r *debitFailOnceRepo) Apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*models.CreditTransaction, error) {
	r.mu.Lock()
	if !r.failed && delta < 0 {
		r.failed = true
		r.mu.Unlock()
		return nil, errors.New("driver: bad connection")
	}
	r.mu.Unlock()
	return r.Repository.Apply(ctx, userID, delta, key, sessionUUID, reason)
}

// refundBlockingRepo rejects refund movements so compensation failures can be
// exercised.
type refundBlockingRepo struct {
	ledger.Repository
}

func (r *refundBlockingRepo) Apply(ctx context.Context, userID uint, delta int64, key, sessionUUID, reason string) (*models.CreditTransaction, error) {
	if strings.HasPrefix(key, "refund:") {
		return nil, errors.New("refund write rejected")
	}
	return r.Repository.Apply(ctx, userID, delta, key, sessionUUID, reason)
}

func newTestCoordinator(t *testing.T, balance int64) (*Coordinator, *memorySessionStore, *ledger.Service, *recordingObserver) {
	t.Helper()

	repo := &catalogRepo{}
	registry := pricing.NewRegistry(repo)
	calculator := pricing.NewCalculator(registry, pricing.NewDemandAnalyzer(neutralTelemetry{}), pricing.NewCacheDiscountEvaluator(noCache{}), repo)

	ledgerRepo := ledger.NewMemoryRepository()
	ledgerRepo.SeedAccount(1, balance)
	ledgerSvc := ledger.NewService(ledgerRepo)

	sessions := newMemorySessionStore()
	observer := &recordingObserver{}
	coordinator := NewCoordinator(calculator, ledgerSvc, sessions).WithObserver(observer)
	return coordinator, sessions, ledgerSvc, observer
}

func TestStartSession(t *testing.T) {
	coordinator, sessions, ledgerSvc, observer := newTestCoordinator(t, 100)

	res, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	// neutral demand, no cache: 8 base credits x 2.5 margin = 20
	assert.Equal(t, int64(20), res.CreditsCharged)
	assert.Equal(t, int64(80), res.RemainingBalance)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.SessionStatusActive, res.Session.Status)
	assert.NotNil(t, res.Session.StartedAt)
	assert.Equal(t, models.SessionStatusActive, sessions.status(res.Session.UUID))
	assert.Equal(t, []string{"video_guidance"}, observer.slugs)

	balance, err := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)
}

func TestStartSession_ReplaySameKey(t *testing.T) {
	coordinator, _, ledgerSvc, observer := newTestCoordinator(t, 100)

	first, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)

	second, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Session.UUID, second.Session.UUID)
	assert.Equal(t, first.CreditsCharged, second.CreditsCharged)

	balance, err := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance, "replay must not debit twice")
	assert.Len(t, observer.slugs, 1, "replay must not re-count demand")
}

func TestStartSession_RetryAfterDebitOutageResumesAttempt(t *testing.T) {
	repo := &catalogRepo{}
	registry := pricing.NewRegistry(repo)
	calculator := pricing.NewCalculator(registry, pricing.NewDemandAnalyzer(neutralTelemetry{}), pricing.NewCacheDiscountEvaluator(noCache{}), repo)

	ledgerRepo := ledger.NewMemoryRepository()
	ledgerRepo.SeedAccount(1, 100)
	ledgerSvc := ledger.NewService(&debitFailOnceRepo{Repository: ledgerRepo})

	sessions := newMemorySessionStore()
	coordinator := NewCoordinator(calculator, ledgerSvc, sessions)

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.Error(t, err)

	pending, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, pending)
	assert.Equal(t, models.SessionStatusPending, pending.Status)

	balance, balErr := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(100), balance, "failed debit must not charge")

	// The retry with the same key completes the stalled attempt: the debit is
	// re-attempted and the original row goes active, not replayed as-is.
	res, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)
	assert.Equal(t, pending.UUID, res.Session.UUID)
	assert.Equal(t, models.SessionStatusActive, res.Session.Status)
	assert.Equal(t, int64(20), res.CreditsCharged)
	assert.Equal(t, int64(80), res.RemainingBalance)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.SessionStatusActive, sessions.status(pending.UUID))

	balance, balErr = ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(80), balance)
}

func TestStartSession_ReplayRejectedReproducesRejection(t *testing.T) {
	coordinator, sessions, ledgerSvc, _ := newTestCoordinator(t, 5)

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)

	_, err = coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits, "a repeated key must reproduce the rejection, not report success")

	prior, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, prior)
	assert.Equal(t, models.SessionStatusRejected, prior.Status)

	balance, balErr := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(5), balance)
}

func TestStartSession_InsufficientCredits(t *testing.T) {
	coordinator, sessions, ledgerSvc, _ := newTestCoordinator(t, 5)

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientCredits)

	prior, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, prior)
	assert.Equal(t, models.SessionStatusRejected, prior.Status)

	balance, err := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestStartSession_UnknownService(t *testing.T) {
	coordinator, sessions, _, _ := newTestCoordinator(t, 100)

	_, err := coordinator.StartSession(context.Background(), 1, "palm_reading", "key-1")
	require.ErrorIs(t, err, pricing.ErrUnknownServiceType)

	prior, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	assert.Nil(t, prior, "validation failure must leave no session row")
}

func TestStartSession_MissingKey(t *testing.T) {
	coordinator, _, _, _ := newTestCoordinator(t, 100)

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "")
	require.Error(t, err)
}

func TestStartSession_ActivationFailureCompensates(t *testing.T) {
	coordinator, sessions, ledgerSvc, observer := newTestCoordinator(t, 100)
	sessions.failTransitionTo[models.SessionStatusActive] = errors.New("db write failed")

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.Error(t, err)

	var compErr *CompensationFailureError
	assert.False(t, errors.As(err, &compErr), "successful compensation must not surface a compensation failure")

	balance, balErr := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(100), balance, "compensating refund must restore the balance")

	prior, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, prior)
	assert.Equal(t, models.SessionStatusRefunded, prior.Status)
	assert.Empty(t, observer.slugs, "failed start must not count as demand")
}

func TestStartSession_CompensationFailureParksSession(t *testing.T) {
	repo := &catalogRepo{}
	registry := pricing.NewRegistry(repo)
	calculator := pricing.NewCalculator(registry, pricing.NewDemandAnalyzer(neutralTelemetry{}), pricing.NewCacheDiscountEvaluator(noCache{}), repo)

	ledgerRepo := ledger.NewMemoryRepository()
	ledgerRepo.SeedAccount(1, 100)
	ledgerSvc := ledger.NewService(&refundBlockingRepo{Repository: ledgerRepo})

	sessions := newMemorySessionStore()
	sessions.failTransitionTo[models.SessionStatusActive] = errors.New("db write failed")
	coordinator := NewCoordinator(calculator, ledgerSvc, sessions)

	_, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.Error(t, err)

	var compErr *CompensationFailureError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, uint(1), compErr.UserID)
	assert.Equal(t, int64(20), compErr.Amount)

	prior, lookupErr := sessions.GetByIdempotencyKey(context.Background(), "key-1")
	require.NoError(t, lookupErr)
	require.NotNil(t, prior)
	assert.Equal(t, models.SessionStatusNeedsManualFixup, prior.Status)

	balance, balErr := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(80), balance, "debit stays until an operator resolves it")
}

func TestCompleteSession(t *testing.T) {
	coordinator, sessions, _, _ := newTestCoordinator(t, 100)

	res, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)

	require.NoError(t, coordinator.CompleteSession(context.Background(), res.Session.UUID))
	assert.Equal(t, models.SessionStatusCompleted, sessions.status(res.Session.UUID))

	err = coordinator.CompleteSession(context.Background(), res.Session.UUID)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestFailSession_RefundsOnce(t *testing.T) {
	coordinator, sessions, ledgerSvc, _ := newTestCoordinator(t, 100)

	res, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)

	require.NoError(t, coordinator.FailSession(context.Background(), res.Session.UUID))
	assert.Equal(t, models.SessionStatusRefunded, sessions.status(res.Session.UUID))

	balance, balErr := ledgerSvc.Balance(context.Background(), 1)
	require.NoError(t, balErr)
	assert.Equal(t, int64(100), balance)

	err = coordinator.FailSession(context.Background(), res.Session.UUID)
	require.ErrorIs(t, err, ErrIllegalTransition, "a refunded session cannot fail again")
}

func TestFailSession_RefundFailureParksSession(t *testing.T) {
	repo := &catalogRepo{}
	registry := pricing.NewRegistry(repo)
	calculator := pricing.NewCalculator(registry, pricing.NewDemandAnalyzer(neutralTelemetry{}), pricing.NewCacheDiscountEvaluator(noCache{}), repo)

	ledgerRepo := ledger.NewMemoryRepository()
	ledgerRepo.SeedAccount(1, 100)
	ledgerSvc := ledger.NewService(&refundBlockingRepo{Repository: ledgerRepo})

	sessions := newMemorySessionStore()
	coordinator := NewCoordinator(calculator, ledgerSvc, sessions)

	res, err := coordinator.StartSession(context.Background(), 1, "video_guidance", "key-1")
	require.NoError(t, err)

	err = coordinator.FailSession(context.Background(), res.Session.UUID)
	var compErr *CompensationFailureError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, models.SessionStatusNeedsManualFixup, sessions.status(res.Session.UUID))
}
