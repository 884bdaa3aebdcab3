package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
	"gorm.io/gorm"
)

// ErrTaskAlreadyLinked is returned by CreateForTask when another writer linked
// a channel to the task first. The transaction is rolled back in that case.
var ErrTaskAlreadyLinked = errors.New("task already has a chat channel")

// GormChannelRepository is a GORM implementation of ChannelRepository
type GormChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &GormChannelRepository{db: db}
}

// CreateForTask inserts the channel and its members, then links the task.
// The link only succeeds while the task has no channel yet.
func (r *GormChannelRepository) CreateForTask(ctx context.Context, channel *models.Channel, partnerIDs []uint64, taskID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(channel).Error; err != nil {
			return err
		}

		now := time.Now()
		members := make([]models.ChannelMember, 0, len(partnerIDs))
		for _, pid := range partnerIDs {
			members = append(members, models.ChannelMember{ChannelID: channel.ID, PartnerID: pid, JoinedAt: now})
		}
		if len(members) > 0 {
			if err := tx.Omit("Partner").Create(&members).Error; err != nil {
				return err
			}
		}
		channel.Members = members

		res := tx.Model(&models.Task{}).
			Where("id = ? AND channel_id IS NULL", taskID).
			Update("channel_id", channel.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTaskAlreadyLinked
		}
		return nil
	})
}

// FindByID finds a channel with its members in join order
func (r *GormChannelRepository) FindByID(ctx context.Context, id uint64) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, partner_id ASC")
		}).
		First(&channel, id).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// IsMember reports whether the partner belongs to the channel
func (r *GormChannelRepository) IsMember(ctx context.Context, channelID, partnerID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Where("channel_id = ? AND partner_id = ?", channelID, partnerID).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the channel together with its members, its messages and
// the attachments adopted into it, and unlinks tasks. It returns the storage
// keys that no remaining attachment references; the caller removes those
// blobs once the transaction has committed.
func (r *GormChannelRepository) Delete(ctx context.Context, id uint64) ([]string, error) {
	var orphaned []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channel models.Channel
		if err := tx.Select("id").First(&channel, id).Error; err != nil {
			return err
		}

		var keys []string
		if err := tx.Model(&models.Attachment{}).
			Where("res_model = ? AND res_id = ?", models.AttachmentResModelChannel, id).
			Distinct("storage_key").
			Pluck("storage_key", &keys).Error; err != nil {
			return err
		}

		if err := tx.Exec(
			"DELETE FROM message_attachments WHERE message_id IN (SELECT id FROM messages WHERE channel_id = ?)", id,
		).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("res_model = ? AND res_id = ?", models.AttachmentResModelChannel, id).
			Delete(&models.Attachment{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).
			Where("channel_id = ?", id).
			Update("channel_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&models.ChannelMember{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Channel{}, id).Error; err != nil {
			return err
		}

		// identical uploads share a key
		if len(keys) > 0 {
			var inUse []string
			if err := tx.Model(&models.Attachment{}).
				Where("storage_key IN ?", keys).
				Distinct("storage_key").
				Pluck("storage_key", &inUse).Error; err != nil {
				return err
			}
			orphaned = subtractStrings(keys, inUse)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

func subtractStrings(all, remove []string) []string {
	skip := make(map[string]struct{}, len(remove))
	for _, s := range remove {
		skip[s] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		if _, ok := skip[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
