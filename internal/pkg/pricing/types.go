package pricing

import "errors"

// ErrUnknownServiceType is returned when a quote is requested for a service
// slug that does not exist. This is a validation failure with no side effects.
var ErrUnknownServiceType = errors.New("unknown service type")

// CostSnapshot is an immutable copy of the cost parameters used for one price
// calculation. Calculations never read live config, so every quote is
// reproducible from its snapshot.
type CostSnapshot struct {
	ServiceSlug         string
	BaseDurationMinutes int
	Capabilities        []string
	UnitCosts           map[string]float64
	CreditsPerDollar    float64
	MarginMultiplier    float64
	Version             int64
	Fallback            bool
}

// DemandSignal is the demand analyzer's output. Degraded means the telemetry
// could not be read and the neutral multiplier was substituted.
type DemandSignal struct {
	Multiplier float64
	Degraded   bool
}

// DiscountSignal is the cache discount evaluator's output. Degraded means the
// chart-cache status could not be read; callers must not treat the resulting
// zero discount as a genuine no-cache classification.
type DiscountSignal struct {
	Pct      float64
	Degraded bool
}

// Chart cache classification levels reported by the astrology collaborator.
const (
	CacheLevelNone    = "none"
	CacheLevelPartial = "partial"
	CacheLevelFull    = "full"
)

// CacheStatus is the raw collaborator signal: how much of the user's prior
// birth-chart computation is reusable for this service.
type CacheStatus struct {
	Level    string
	Coverage float64
}
