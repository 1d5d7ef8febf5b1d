package pricing

import (
	"time"

	"gorm.io/gorm"

	"github.com/soulcompass-app/SoulCompass/app/models"
)

// Repository provides DB operations used by the pricing components. Quote and
// override-event rows are append only; the only mutation is the cost-model
// update performed by an approved override.
type Repository interface {
	GetServiceType(slug string) (*models.ServiceType, error)
	UpdateCostModel(cm *models.CostModel) error
	SaveQuote(q *models.PriceQuote) error
	QuotesInRange(slug string, from, to time.Time) ([]models.PriceQuote, error)
	GetQuoteByUUID(uuid string) (*models.PriceQuote, error)
	AppendOverrideEvent(e *models.OverrideEvent) error
	OverrideEvents(overrideID uint) ([]models.OverrideEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a pricing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetServiceType(slug string) (*models.ServiceType, error) {
	var st models.ServiceType
	err := r.db.Preload("CostModel").
		Where("slug = ? AND is_active = ?", slug, true).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *gormRepository) UpdateCostModel(cm *models.CostModel) error {
	return r.db.Save(cm).Error
}

func (r *gormRepository) SaveQuote(q *models.PriceQuote) error {
	return r.db.Create(q).Error
}

func (r *gormRepository) QuotesInRange(slug string, from, to time.Time) ([]models.PriceQuote, error) {
	var quotes []models.PriceQuote
	err := r.db.
		Where("service_type_slug = ? AND computed_at >= ? AND computed_at < ?", slug, from, to).
		Order("computed_at ASC").
		Find(&quotes).Error
	return quotes, err
}

func (r *gormRepository) GetQuoteByUUID(uuid string) (*models.PriceQuote, error) {
	var q models.PriceQuote
	if err := r.db.Where("uuid = ?", uuid).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *gormRepository) AppendOverrideEvent(e *models.OverrideEvent) error {
	return r.db.Create(e).Error
}

func (r *gormRepository) OverrideEvents(overrideID uint) ([]models.OverrideEvent, error) {
	var events []models.OverrideEvent
	err := r.db.Where("override_id = ?", overrideID).Order("id ASC").Find(&events).Error
	return events, err
}
