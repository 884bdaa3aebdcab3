package repository

import (
	"context"

	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/utils"
	"gorm.io/gorm"
)

// GormAttachmentRepository is a GORM implementation of AttachmentRepository
type GormAttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &GormAttachmentRepository{db: db}
}

// Create stores attachment metadata
func (r *GormAttachmentRepository) Create(ctx context.Context, att *models.Attachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// FindByID finds an attachment by ID
func (r *GormAttachmentRepository) FindByID(ctx context.Context, id uint64) (*models.Attachment, error) {
	var att models.Attachment
	if err := r.db.WithContext(ctx).First(&att, id).Error; err != nil {
		return nil, err
	}
	return &att, nil
}

// FindExisting returns the attachments among ids that exist. Missing IDs are skipped.
func (r *GormAttachmentRepository) FindExisting(ctx context.Context, ids []uint64) ([]models.Attachment, error) {
	if len(ids) == 0 {
		return []models.Attachment{}, nil
	}
	var atts []models.Attachment
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&atts).Error; err != nil {
		return nil, err
	}
	return atts, nil
}

// EnsureAccessToken sets a token only when the row has none, then reads back
// whichever token won so concurrent readers agree on one value.
func (r *GormAttachmentRepository) EnsureAccessToken(ctx context.Context, att *models.Attachment) error {
	if att.AccessToken != nil && *att.AccessToken != "" {
		return nil
	}

	db := r.db.WithContext(ctx)
	token := utils.GenerateAccessToken()
	if err := db.Model(&models.Attachment{}).
		Where("id = ? AND (access_token IS NULL OR access_token = '')", att.ID).
		Update("access_token", token).Error; err != nil {
		return err
	}

	var stored models.Attachment
	if err := db.Select("id", "access_token").First(&stored, att.ID).Error; err != nil {
		return err
	}
	att.AccessToken = stored.AccessToken
	return nil
}

// StorageKeyInUse reports whether any attachment row references key
func (r *GormAttachmentRepository) StorageKeyInUse(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("storage_key = ?", key).
		Count(&count).Error
	return count > 0, err
}
