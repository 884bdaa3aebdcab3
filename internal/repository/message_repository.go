package repository

import (
	"context"

	"github.com/yukikurage/task-chat-api/internal/database"
	"github.com/yukikurage/task-chat-api/internal/models"
	"gorm.io/gorm"
)

// GormMessageRepository is a GORM implementation of MessageRepository
type GormMessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores the message and adopts the attachments into its channel
func (r *GormMessageRepository) Create(ctx context.Context, msg *models.Message, attachments []models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Attachments").Create(msg).Error; err != nil {
			return err
		}
		if len(attachments) == 0 {
			msg.Attachments = []models.Attachment{}
			return nil
		}

		ids := make([]uint64, 0, len(attachments))
		for _, a := range attachments {
			ids = append(ids, a.ID)
		}

		if err := tx.Model(&models.Attachment{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"res_model": models.AttachmentResModelChannel,
				"res_id":    msg.ChannelID,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(msg).Omit("Attachments.*").Association("Attachments").Append(attachments); err != nil {
			return err
		}

		for i := range msg.Attachments {
			msg.Attachments[i].ResModel = models.AttachmentResModelChannel
			msg.Attachments[i].ResID = msg.ChannelID
		}
		return nil
	})
}

// ListByChannel lists messages of the given types, oldest first, at most limit rows
func (r *GormMessageRepository) ListByChannel(ctx context.Context, channelID uint64, types []models.MessageType, limit int) ([]models.Message, error) {
	var messages []models.Message
	query := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("attachments.id ASC")
		}).
		Where("channel_id = ?", channelID)

	if len(types) > 0 {
		query = query.Where("message_type IN ?", types)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scopes(database.OldestFirst("messages")).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
