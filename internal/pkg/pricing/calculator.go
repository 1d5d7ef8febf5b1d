package pricing

import (
	"math"
	"time"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// Confidence penalties per degraded input. The floor keeps a fully degraded
// quote visibly low-confidence instead of zero.
const (
	confidencePenaltyFallback = 0.3
	confidencePenaltyDemand   = 0.3
	confidencePenaltyCache    = 0.2
	confidenceFloor           = 0.1
)

// Calculator combines cost snapshots, demand and cache-discount signals into
// immutable price quotes. Every computed quote is persisted before it is
// returned.
type Calculator struct {
	registry *Registry
	demand   *DemandAnalyzer
	discount *CacheDiscountEvaluator
	repo     Repository
}

// NewCalculator wires the pricing components together.
func NewCalculator(registry *Registry, demand *DemandAnalyzer, discount *CacheDiscountEvaluator, repo Repository) *Calculator {
	return &Calculator{
		registry: registry,
		demand:   demand,
		discount: discount,
		repo:     repo,
	}
}

// Calculate produces and persists a quote for one user/service request.
//
//	baseCredits  = baseCostUSD x creditsPerDollar
//	list         = baseCredits x margin x demand
//	discounted   = list x (1 - cacheDiscount)
//	final        = ceil(max(discounted, margin x baseCredits))
//
// The margin floor clamps last, so a cache discount can never push the price
// below cost-plus-margin.
func (c *Calculator) Calculate(slug string, userID uint) (*models.PriceQuote, error) {
	snap, err := c.registry.Snapshot(slug)
	if err != nil {
		return nil, err
	}

	demand := c.demand.Signal(slug)
	discount := c.discount.Signal(userID, slug)

	baseCostUSD := baseCost(snap)
	baseCredits := baseCostUSD * snap.CreditsPerDollar
	list := baseCredits * snap.MarginMultiplier * demand.Multiplier
	discounted := list * (1 - discount.Pct)
	floor := snap.MarginMultiplier * baseCredits
	final := ceilCredits(math.Max(discounted, floor))

	confidence := 1.0
	if snap.Fallback {
		confidence -= confidencePenaltyFallback
	}
	if demand.Degraded {
		confidence -= confidencePenaltyDemand
	}
	if discount.Degraded {
		confidence -= confidencePenaltyCache
	}
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}

	quote := &models.PriceQuote{
		UUID:             models.NewPriceQuoteUUID(),
		ServiceTypeSlug:  snap.ServiceSlug,
		UserID:           userID,
		BaseCostUSD:      round4(baseCostUSD),
		DemandMultiplier: demand.Multiplier,
		CacheDiscountPct: discount.Pct,
		MarginMultiplier: snap.MarginMultiplier,
		FinalCredits:     final,
		Confidence:       confidence,
		Degraded:         snap.Fallback || demand.Degraded || discount.Degraded,
		ComputedAt:       time.Now().UTC(),
	}
	if err := c.repo.SaveQuote(quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// Quote returns a previously persisted quote by identifier.
func (c *Calculator) Quote(uuid string) (*models.PriceQuote, error) {
	return c.repo.GetQuoteByUUID(uuid)
}

// QuotesInRange exposes the append-only quote history for admin analytics.
func (c *Calculator) QuotesInRange(slug string, from, to time.Time) ([]models.PriceQuote, error) {
	return c.repo.QuotesInRange(slug, from, to)
}

// baseCost sums capability unit costs times their estimated units for one
// session: time-based capabilities bill the base duration, birth-chart lookups
// bill one call, remedies bill one 1k-token generation budget.
func baseCost(snap CostSnapshot) float64 {
	total := 0.0
	for _, capability := range snap.Capabilities {
		total += snap.UnitCosts[capability] * estimatedUnits(capability, snap.BaseDurationMinutes)
	}
	return total
}

func estimatedUnits(capability string, durationMinutes int) float64 {
	switch capability {
	case models.CapabilityVoice, models.CapabilityVideo, models.CapabilityInteractive:
		return float64(durationMinutes)
	case models.CapabilityBirthChart, models.CapabilityRemedies:
		return 1
	}
	return 0
}

// ceilCredits rounds up to a whole credit. The epsilon absorbs float noise so
// an exact 24.0 does not become 25.
func ceilCredits(v float64) int64 {
	return int64(math.Ceil(v - 1e-9))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
