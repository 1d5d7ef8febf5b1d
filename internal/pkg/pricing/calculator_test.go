package pricing

import (
	"errors"
	"testing"
	"time"
)

func newTestCalculator(repo *fakeRepo, tel *stubTelemetry, chart *stubChartCache) *Calculator {
	registry := NewRegistry(repo)
	return NewCalculator(registry, NewDemandAnalyzer(tel), NewCacheDiscountEvaluator(chart), repo)
}

func TestCalculate_StandardPrice(t *testing.T) {
	repo := videoGuidanceRepo()
	// recent 14 vs baseline 10 -> ratio 1.4 -> multiplier 1.2
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 14, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelNone}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.FinalCredits != 24 {
		t.Fatalf("expected 24 credits, got %d", quote.FinalCredits)
	}
	if quote.BaseCostUSD != 0.80 {
		t.Fatalf("expected base cost 0.80, got %g", quote.BaseCostUSD)
	}
	if quote.DemandMultiplier != 1.2 {
		t.Fatalf("expected demand 1.2, got %g", quote.DemandMultiplier)
	}
	if quote.Degraded || quote.Confidence != 1.0 {
		t.Fatalf("expected full confidence, got %g degraded=%v", quote.Confidence, quote.Degraded)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected quote to be persisted, got %d rows", len(repo.saved))
	}
}

func TestCalculate_MarginFloorBeatsCacheDiscount(t *testing.T) {
	repo := videoGuidanceRepo()
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 14, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelFull, Coverage: 1}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// list 24, full-cache discount would give 1.2, floor 2.5 x 8 = 20
	if quote.FinalCredits != 20 {
		t.Fatalf("expected margin floor 20, got %d", quote.FinalCredits)
	}
	if quote.CacheDiscountPct != 0.95 {
		t.Fatalf("expected recorded discount 0.95, got %g", quote.CacheDiscountPct)
	}
}

func TestCalculate_CacheDiscountAboveFloor(t *testing.T) {
	repo := videoGuidanceRepo()
	// recent 2x baseline -> multiplier clamped at 1.5, list 30
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 20, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelPartial, Coverage: 0}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 30 x (1 - 0.20) = 24, above the floor of 20
	if quote.FinalCredits != 24 {
		t.Fatalf("expected 24 credits, got %d", quote.FinalCredits)
	}
}

func TestCalculate_RaisedMargin(t *testing.T) {
	repo := videoGuidanceRepo()
	repo.st.CostModel.MinimumMarginMultiplier = 3.0
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 10, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelNone}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.FinalCredits != 24 {
		t.Fatalf("expected 24 credits at margin 3.0, got %d", quote.FinalCredits)
	}
	if quote.MarginMultiplier != 3.0 {
		t.Fatalf("expected margin 3.0, got %g", quote.MarginMultiplier)
	}
}

func TestCalculate_UnknownServiceType(t *testing.T) {
	repo := videoGuidanceRepo()
	calc := newTestCalculator(repo, &stubTelemetry{}, &stubChartCache{})

	_, err := calc.Calculate("palm_reading", 7)
	if !errors.Is(err, ErrUnknownServiceType) {
		t.Fatalf("expected ErrUnknownServiceType, got %v", err)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("validation failure must not persist a quote")
	}
}

func TestCalculate_DegradedSignals(t *testing.T) {
	repo := videoGuidanceRepo()
	calc := newTestCalculator(repo,
		&stubTelemetry{err: errors.New("redis down")},
		&stubChartCache{err: errors.New("redis down")},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("degraded signals must not fail the quote: %v", err)
	}
	if quote.DemandMultiplier != 1.0 {
		t.Fatalf("expected neutral demand, got %g", quote.DemandMultiplier)
	}
	if !quote.Degraded {
		t.Fatalf("expected degraded quote")
	}
	// 1.0 - 0.3 (demand) - 0.2 (cache)
	if quote.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %g", quote.Confidence)
	}
	if quote.FinalCredits != 20 {
		t.Fatalf("expected neutral price 20, got %d", quote.FinalCredits)
	}
}

func TestCalculate_FallbackCostModel(t *testing.T) {
	repo := videoGuidanceRepo()
	repo.loadErr = errors.New("db gone")
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 10, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelNone}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("fallback must not fail the quote: %v", err)
	}
	if !quote.Degraded {
		t.Fatalf("expected fallback quote to be degraded")
	}
	if quote.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %g", quote.Confidence)
	}
	if quote.MarginMultiplier != 3.0 {
		t.Fatalf("expected conservative fallback margin 3.0, got %g", quote.MarginMultiplier)
	}
}

func TestCalculate_RoundsUpToWholeCredit(t *testing.T) {
	repo := videoGuidanceRepo()
	repo.st.CostModel.RemediesUSDPer1KTokens = 0.02 // base cost 0.77
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 10, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelNone}},
	)

	quote, err := calc.Calculate("video_guidance", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 7.7 x 2.5 = 19.25 -> 20
	if quote.FinalCredits != 20 {
		t.Fatalf("expected 19.25 to round up to 20, got %d", quote.FinalCredits)
	}
}

func TestCeilCredits_ExactValueDoesNotRoundUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{in: 24.0, want: 24},
		{in: 24.0000000001, want: 24},
		{in: 24.01, want: 25},
		{in: 0.2, want: 1},
	}
	for _, tt := range tests {
		if got := ceilCredits(tt.in); got != tt.want {
			t.Fatalf("ceilCredits(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQuotesInRange(t *testing.T) {
	repo := videoGuidanceRepo()
	calc := newTestCalculator(repo,
		&stubTelemetry{recent: 10, baseline: 10},
		&stubChartCache{status: CacheStatus{Level: CacheLevelNone}},
	)

	if _, err := calc.Calculate("video_guidance", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	quotes, err := calc.QuotesInRange("video_guidance", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote in range, got %d", len(quotes))
	}
}
