package pricing

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	demandFloor   = 0.8
	demandCeiling = 1.5
	demandWindow  = 6 * time.Hour
)

// TelemetrySource exposes the read-only session-count telemetry the demand
// analyzer consumes. Counts may be eventually consistent; the debit step, not
// the quote step, enforces correctness.
type TelemetrySource interface {
	// RecentSessionCount returns the number of session starts for a service
	// within the trailing window.
	RecentSessionCount(slug string, window time.Duration) (int64, error)
	// BaselineSessionCount returns the expected session count for the same
	// window length, derived from historical daily stats. Zero means no
	// history yet.
	BaselineSessionCount(slug string, window time.Duration) (float64, error)
}

// DemandAnalyzer derives a demand multiplier in [0.8, 1.5] from recent usage
// vs. baseline. It is a pure read; it never writes telemetry.
type DemandAnalyzer struct {
	src TelemetrySource
}

// NewDemandAnalyzer creates an analyzer over a telemetry source.
func NewDemandAnalyzer(src TelemetrySource) *DemandAnalyzer {
	return &DemandAnalyzer{src: src}
}

// Signal computes the current demand multiplier for a service. Cold start
// (no baseline) yields the neutral 1.0; a telemetry read failure yields the
// neutral 1.0 flagged degraded so the quote's confidence drops.
func (a *DemandAnalyzer) Signal(slug string) DemandSignal {
	recent, err := a.src.RecentSessionCount(slug, demandWindow)
	if err != nil {
		log.Warnf("[Pricing] demand telemetry unavailable for %s: %v", slug, err)
		return DemandSignal{Multiplier: 1.0, Degraded: true}
	}

	baseline, err := a.src.BaselineSessionCount(slug, demandWindow)
	if err != nil {
		log.Warnf("[Pricing] demand baseline unavailable for %s: %v", slug, err)
		return DemandSignal{Multiplier: 1.0, Degraded: true}
	}
	if baseline <= 0 {
		// Cold start: no history to compare against.
		return DemandSignal{Multiplier: 1.0}
	}

	ratio := float64(recent) / baseline
	multiplier := 1.0 + 0.5*(ratio-1.0)
	if multiplier < demandFloor {
		multiplier = demandFloor
	}
	if multiplier > demandCeiling {
		multiplier = demandCeiling
	}
	return DemandSignal{Multiplier: multiplier}
}
