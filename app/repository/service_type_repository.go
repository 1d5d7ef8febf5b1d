package repository

import (
	"github.com/soulcompass-app/SoulCompass/app/models"
	"gorm.io/gorm"
)

// serviceTypeRepository implements the ServiceTypeRepository interface
type serviceTypeRepository struct {
	db *gorm.DB
}

// NewServiceTypeRepository creates a new service catalog repository instance
func NewServiceTypeRepository(db *gorm.DB) ServiceTypeRepository {
	return &serviceTypeRepository{db: db}
}

// Create creates a new service type in the database
func (r *serviceTypeRepository) Create(st *models.ServiceType) error {
	return r.db.Create(st).Error
}

// GetBySlug retrieves a service type with its cost model by slug
func (r *serviceTypeRepository) GetBySlug(slug string) (*models.ServiceType, error) {
	var st models.ServiceType
	err := r.db.Preload("CostModel").Where("slug = ?", slug).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetActive retrieves all active service types
func (r *serviceTypeRepository) GetActive() ([]models.ServiceType, error) {
	var out []models.ServiceType
	err := r.db.Preload("CostModel").Where("is_active = ?", true).Order("slug ASC").Find(&out).Error
	return out, err
}

// Update updates an existing service type
func (r *serviceTypeRepository) Update(st *models.ServiceType) error {
	return r.db.Save(st).Error
}
