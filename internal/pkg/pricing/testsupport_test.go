package pricing

import (
	"time"

	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// fakeRepo is an in-memory pricing.Repository for unit tests.
type fakeRepo struct {
	st      *models.ServiceType
	loadErr error
	saved   []*models.PriceQuote
	events  []*models.OverrideEvent
}

func (f *fakeRepo) GetServiceType(slug string) (*models.ServiceType, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.st == nil || f.st.Slug != slug {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.st
	return &copied, nil
}

func (f *fakeRepo) UpdateCostModel(cm *models.CostModel) error {
	f.st.CostModel = *cm
	f.st.CostModel.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) SaveQuote(q *models.PriceQuote) error {
	copied := *q
	f.saved = append(f.saved, &copied)
	return nil
}

func (f *fakeRepo) QuotesInRange(slug string, from, to time.Time) ([]models.PriceQuote, error) {
	var out []models.PriceQuote
	for _, q := range f.saved {
		if q.ServiceTypeSlug == slug && !q.ComputedAt.Before(from) && q.ComputedAt.Before(to) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetQuoteByUUID(uuid string) (*models.PriceQuote, error) {
	for _, q := range f.saved {
		if q.UUID == uuid {
			copied := *q
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) AppendOverrideEvent(e *models.OverrideEvent) error {
	copied := *e
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakeRepo) OverrideEvents(overrideID uint) ([]models.OverrideEvent, error) {
	var out []models.OverrideEvent
	for _, e := range f.events {
		if e.OverrideID == overrideID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// videoGuidanceRepo returns a repo seeded with the standard video service:
// 15 min at $0.04/min video + $0.01/min voice + $0.05 remedies = $0.80 base.
func videoGuidanceRepo() *fakeRepo {
	return &fakeRepo{st: &models.ServiceType{
		ID:                  1,
		Slug:                "video_guidance",
		Name:                "Video Guidance",
		BaseDurationMinutes: 15,
		Capabilities:        "voice,video,remedies",
		CostModelID:         1,
		CostModel: models.CostModel{
			ID:                      1,
			Name:                    "video_guidance_v1",
			VoiceUSDPerMinute:       0.01,
			VideoUSDPerMinute:       0.04,
			RemediesUSDPer1KTokens:  0.05,
			CreditsPerDollar:        10,
			MinimumMarginMultiplier: 2.5,
		},
		IsActive: true,
	}}
}

type stubTelemetry struct {
	recent   int64
	baseline float64
	err      error
}

func (s *stubTelemetry) RecentSessionCount(slug string, window time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.recent, nil
}

func (s *stubTelemetry) BaselineSessionCount(slug string, window time.Duration) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.baseline, nil
}

type stubChartCache struct {
	status CacheStatus
	err    error
}

func (s *stubChartCache) Status(userID uint, slug string) (CacheStatus, error) {
	if s.err != nil {
		return CacheStatus{}, s.err
	}
	return s.status, nil
}
