package repository

import (
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// CreateWithPartner creates the partner, the user and an optional owned organization
func (r *GormUserRepository) CreateWithPartner(user *models.User, partner *models.Partner, org *models.Organization) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(partner).Error; err != nil {
			return err
		}

		user.PartnerID = partner.ID
		if err := tx.Omit("Partner").Create(user).Error; err != nil {
			return err
		}
		user.Partner = *partner

		if org == nil {
			return nil
		}
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         user.ID,
			Role:           models.RoleOwner,
			JoinedAt:       time.Now(),
		}).Error
	})
}

// FindByID finds a user by ID together with its partner
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Partner").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Partner").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindPartner finds a partner by ID
func (r *GormUserRepository) FindPartner(id uint64) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.First(&partner, id).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}
