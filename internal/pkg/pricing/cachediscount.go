package pricing

import "github.com/gofiber/fiber/v2/log"

const (
	partialDiscountBase  = 0.20
	partialDiscountSpan  = 0.30
	fullCacheDiscountPct = 0.95
)

// ChartCacheSource exposes the read-only cache-hit classification owned by the
// astrology/birth-chart cache service.
type ChartCacheSource interface {
	Status(userID uint, slug string) (CacheStatus, error)
}

// CacheDiscountEvaluator maps a chart-cache classification to a discount
// percentage. The discount is applied before the margin floor, never after.
type CacheDiscountEvaluator struct {
	src ChartCacheSource
}

// NewCacheDiscountEvaluator creates an evaluator over a chart-cache source.
func NewCacheDiscountEvaluator(src ChartCacheSource) *CacheDiscountEvaluator {
	return &CacheDiscountEvaluator{src: src}
}

// Signal returns the discount for a user/service pair. no-cache -> 0%,
// partial -> 20-50% scaled by coverage, full -> 95%. A missing or unreadable
// signal yields 0% flagged degraded: "could not classify" is not the same as
// "no cache".
func (e *CacheDiscountEvaluator) Signal(userID uint, slug string) DiscountSignal {
	status, err := e.src.Status(userID, slug)
	if err != nil {
		log.Warnf("[Pricing] chart cache signal unavailable for user %d / %s: %v", userID, slug, err)
		return DiscountSignal{Pct: 0, Degraded: true}
	}

	switch status.Level {
	case CacheLevelFull:
		return DiscountSignal{Pct: fullCacheDiscountPct}
	case CacheLevelPartial:
		coverage := status.Coverage
		if coverage < 0 {
			coverage = 0
		}
		if coverage > 1 {
			coverage = 1
		}
		return DiscountSignal{Pct: partialDiscountBase + partialDiscountSpan*coverage}
	case CacheLevelNone:
		return DiscountSignal{Pct: 0}
	}

	log.Warnf("[Pricing] unknown chart cache level %q for user %d / %s", status.Level, userID, slug)
	return DiscountSignal{Pct: 0, Degraded: true}
}
