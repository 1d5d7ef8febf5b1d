package pricing

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// Conservative defaults used when a cost model cannot be loaded. Unit costs
// are set at the high end of observed provider rates and the margin at 3.0 so
// a fallback quote can never undercut real cost.
const (
	fallbackUnitCostPerMinute = 0.10
	fallbackUnitCostPerCall   = 0.05
	fallbackCreditsPerDollar  = 10.0
	fallbackMarginMultiplier  = 3.0
	fallbackDurationMinutes   = 15
)

const defaultSnapshotTTL = 30 * time.Second

// Registry serves immutable cost snapshots for price calculations. Lookups go
// through a short-lived in-process cache; override approvals invalidate the
// cached entry so the change applies to subsequent quotes only.
type Registry struct {
	repo Repository
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	snapshot  CostSnapshot
	fetchedAt time.Time
}

// NewRegistry creates a registry over the pricing repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		ttl:     defaultSnapshotTTL,
		entries: make(map[string]registryEntry),
	}
}

// Snapshot returns the cost snapshot for a service type. Unknown slugs fail
// with ErrUnknownServiceType. A load failure for a known slug degrades to the
// last cached snapshot, or to the conservative fallback when nothing is
// cached, so pricing never blocks on the config store.
func (r *Registry) Snapshot(slug string) (CostSnapshot, error) {
	r.mu.RLock()
	entry, ok := r.entries[slug]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < r.ttl {
		return entry.snapshot, nil
	}

	st, err := r.repo.GetServiceType(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CostSnapshot{}, ErrUnknownServiceType
		}
		if ok {
			log.Warnf("[Pricing] cost model load failed for %s, serving stale snapshot: %v", slug, err)
			return markFallback(entry.snapshot), nil
		}
		log.Warnf("[Pricing] cost model load failed for %s, serving conservative default: %v", slug, err)
		return fallbackSnapshot(slug), nil
	}

	snap := snapshotFromModel(st)
	r.mu.Lock()
	r.entries[slug] = registryEntry{snapshot: snap, fetchedAt: time.Now()}
	r.mu.Unlock()
	return snap, nil
}

// ApplyOverride writes an approved override value into the live cost model and
// drops the cached snapshot. Quotes already recorded are untouched.
func (r *Registry) ApplyOverride(slug, field string, value float64) error {
	st, err := r.repo.GetServiceType(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownServiceType
		}
		return err
	}

	cm := st.CostModel
	switch field {
	case models.OverrideFieldMarginMultiplier:
		cm.MinimumMarginMultiplier = value
	case models.OverrideFieldCreditsPerDollar:
		cm.CreditsPerDollar = value
	default:
		return errors.New("field is not overridable: " + field)
	}

	if err := r.repo.UpdateCostModel(&cm); err != nil {
		return err
	}
	r.Invalidate(slug)
	return nil
}

// Invalidate drops the cached snapshot for a slug.
func (r *Registry) Invalidate(slug string) {
	r.mu.Lock()
	delete(r.entries, slug)
	r.mu.Unlock()
}

func snapshotFromModel(st *models.ServiceType) CostSnapshot {
	caps := st.CapabilityList()
	costs := make(map[string]float64, len(caps))
	for _, c := range caps {
		costs[c] = st.CostModel.UnitCost(c)
	}
	return CostSnapshot{
		ServiceSlug:         st.Slug,
		BaseDurationMinutes: st.BaseDurationMinutes,
		Capabilities:        caps,
		UnitCosts:           costs,
		CreditsPerDollar:    st.CostModel.CreditsPerDollar,
		MarginMultiplier:    st.CostModel.MinimumMarginMultiplier,
		Version:             st.CostModel.UpdatedAt.UnixNano(),
	}
}

func fallbackSnapshot(slug string) CostSnapshot {
	costs := map[string]float64{
		models.CapabilityVoice:       fallbackUnitCostPerMinute,
		models.CapabilityVideo:       fallbackUnitCostPerMinute,
		models.CapabilityInteractive: fallbackUnitCostPerMinute,
		models.CapabilityBirthChart:  fallbackUnitCostPerCall,
		models.CapabilityRemedies:    fallbackUnitCostPerCall,
	}
	return CostSnapshot{
		ServiceSlug:         slug,
		BaseDurationMinutes: fallbackDurationMinutes,
		Capabilities:        models.AllCapabilities,
		UnitCosts:           costs,
		CreditsPerDollar:    fallbackCreditsPerDollar,
		MarginMultiplier:    fallbackMarginMultiplier,
		Fallback:            true,
	}
}

func markFallback(snap CostSnapshot) CostSnapshot {
	snap.Fallback = true
	return snap
}
