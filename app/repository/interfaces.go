package repository

import (
	"github.com/soulcompass-app/SoulCompass/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// ServiceTypeRepository defines the interface for service catalog operations
type ServiceTypeRepository interface {
	Create(st *models.ServiceType) error
	GetBySlug(slug string) (*models.ServiceType, error)
	GetActive() ([]models.ServiceType, error)
	Update(st *models.ServiceType) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	ServiceType ServiceTypeRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		ServiceType: NewServiceTypeRepository(db),
	}
}
