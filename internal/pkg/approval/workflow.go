package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
	"github.com/soulcompass-app/SoulCompass/internal/pkg/pricing"
)

var (
	// ErrOverrideNotFound means no override exists with the given id.
	ErrOverrideNotFound = errors.New("pricing override not found")

	// ErrOverrideNotPending means the override was already reviewed;
	// approve/reject are single-shot.
	ErrOverrideNotPending = errors.New("pricing override is not pending")
)

// Repository provides DB operations for override rows.
type Repository interface {
	CreateOverride(ctx context.Context, o *models.PricingOverride) error
	GetOverride(ctx context.Context, id uint) (*models.PricingOverride, error)
	UpdateOverride(ctx context.Context, o *models.PricingOverride) error
	ListOverrides(ctx context.Context, status string) ([]models.PricingOverride, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an override repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateOverride(ctx context.Context, o *models.PricingOverride) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *gormRepository) GetOverride(ctx context.Context, id uint) (*models.PricingOverride, error) {
	var o models.PricingOverride
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) UpdateOverride(ctx context.Context, o *models.PricingOverride) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *gormRepository) ListOverrides(ctx context.Context, status string) ([]models.PricingOverride, error) {
	var out []models.PricingOverride
	q := r.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

// Workflow queues AI- or admin-generated price overrides behind an approval
// gate. Approved changes flow into the live cost model through the registry
// and affect subsequent quotes only; recorded quotes are immutable history.
type Workflow struct {
	repo        Repository
	registry    *pricing.Registry
	pricingRepo pricing.Repository
}

// NewWorkflow wires the approval workflow.
func NewWorkflow(repo Repository, registry *pricing.Registry, pricingRepo pricing.Repository) *Workflow {
	return &Workflow{repo: repo, registry: registry, pricingRepo: pricingRepo}
}

// Propose creates a pending override for one cost-model field. The current
// live value is captured as OldValue at proposal time.
func (w *Workflow) Propose(ctx context.Context, serviceSlug string, proposedBy uint, field string, newValue float64) (*models.PricingOverride, error) {
	if !models.IsOverridableField(field) {
		return nil, fmt.Errorf("field is not overridable: %s", field)
	}
	if newValue <= 0 {
		return nil, fmt.Errorf("override value must be positive, got %g", newValue)
	}

	snap, err := w.registry.Snapshot(serviceSlug)
	if err != nil {
		return nil, err
	}

	oldValue := snap.MarginMultiplier
	if field == models.OverrideFieldCreditsPerDollar {
		oldValue = snap.CreditsPerDollar
	}

	override := &models.PricingOverride{
		ServiceTypeSlug: serviceSlug,
		ProposedBy:      proposedBy,
		Field:           field,
		OldValue:        oldValue,
		NewValue:        newValue,
		Status:          models.OverrideStatusPending,
	}
	if err := w.repo.CreateOverride(ctx, override); err != nil {
		return nil, err
	}

	w.appendEvent(override, models.OverrideEventProposed, proposedBy)
	log.Infof("[Approval] override %d proposed: %s.%s %g -> %g", override.ID, serviceSlug, field, oldValue, newValue)
	return override, nil
}

// Approve applies a pending override to the live cost model. Takes effect for
// subsequent quotes only, never retroactively.
func (w *Workflow) Approve(ctx context.Context, overrideID, reviewerID uint) (*models.PricingOverride, error) {
	override, err := w.repo.GetOverride(ctx, overrideID)
	if err != nil {
		return nil, err
	}
	if override.Status != models.OverrideStatusPending {
		return nil, ErrOverrideNotPending
	}

	if err := w.registry.ApplyOverride(override.ServiceTypeSlug, override.Field, override.NewValue); err != nil {
		return nil, err
	}

	now := time.Now()
	override.Status = models.OverrideStatusApproved
	override.ReviewedBy = &reviewerID
	override.ReviewedAt = &now
	if err := w.repo.UpdateOverride(ctx, override); err != nil {
		return nil, err
	}

	w.appendEvent(override, models.OverrideEventApproved, reviewerID)
	log.Infof("[Approval] override %d approved by %d: %s.%s -> %g",
		override.ID, reviewerID, override.ServiceTypeSlug, override.Field, override.NewValue)
	return override, nil
}

// Reject marks a pending override inert. The live cost model is untouched.
func (w *Workflow) Reject(ctx context.Context, overrideID, reviewerID uint) (*models.PricingOverride, error) {
	override, err := w.repo.GetOverride(ctx, overrideID)
	if err != nil {
		return nil, err
	}
	if override.Status != models.OverrideStatusPending {
		return nil, ErrOverrideNotPending
	}

	now := time.Now()
	override.Status = models.OverrideStatusRejected
	override.ReviewedBy = &reviewerID
	override.ReviewedAt = &now
	if err := w.repo.UpdateOverride(ctx, override); err != nil {
		return nil, err
	}

	w.appendEvent(override, models.OverrideEventRejected, reviewerID)
	log.Infof("[Approval] override %d rejected by %d", override.ID, reviewerID)
	return override, nil
}

// Pending lists overrides awaiting review.
func (w *Workflow) Pending(ctx context.Context) ([]models.PricingOverride, error) {
	return w.repo.ListOverrides(ctx, models.OverrideStatusPending)
}

// appendEvent writes the transition to the append-only pricing history. A
// history write failure is logged, not propagated; the override transition
// itself already committed.
func (w *Workflow) appendEvent(override *models.PricingOverride, event string, actorID uint) {
	entry := &models.OverrideEvent{
		OverrideID:      override.ID,
		ServiceTypeSlug: override.ServiceTypeSlug,
		Event:           event,
		ActorID:         actorID,
		Field:           override.Field,
		OldValue:        override.OldValue,
		NewValue:        override.NewValue,
	}
	if err := w.pricingRepo.AppendOverrideEvent(entry); err != nil {
		log.Errorf("[Approval] could not append history event for override %d: %v", override.ID, err)
	}
}
