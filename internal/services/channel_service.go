package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/metrics"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"github.com/yukikurage/task-chat-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrChannelNotFound = errors.New("channel not found")

// MessagePostedHook runs after a message has been stored in a channel.
type MessagePostedHook func(ctx context.Context, channel *models.Channel, msg *models.Message)

// ChannelService owns task chat channels and the message post operation.
type ChannelService struct {
	channelRepo repository.ChannelRepository
	messageRepo repository.MessageRepository
	taskRepo    repository.TaskRepository
	blobs       storage.Storage
	log         *zap.Logger
	postHooks   []MessagePostedHook
}

func NewChannelService(
	channelRepo repository.ChannelRepository,
	messageRepo repository.MessageRepository,
	taskRepo repository.TaskRepository,
	blobs storage.Storage,
	log *zap.Logger,
) *ChannelService {
	return &ChannelService{
		channelRepo: channelRepo,
		messageRepo: messageRepo,
		taskRepo:    taskRepo,
		blobs:       blobs,
		log:         log,
	}
}

// OnMessagePosted registers a hook for every successful Post.
// Hooks must be registered during wiring, before the service handles requests.
func (s *ChannelService) OnMessagePosted(hook MessagePostedHook) {
	s.postHooks = append(s.postHooks, hook)
}

// TaskChannelName is the display name of the channel created for a task.
func TaskChannelName(taskTitle string) string {
	return constants.TaskChatNamePrefix + " " + taskTitle
}

// IsTaskChat reports whether the channel is a task chat channel.
func IsTaskChat(channel *models.Channel) bool {
	return channel.ChannelType == models.ChannelTypeGroup &&
		strings.HasPrefix(channel.Name, constants.TaskChatNamePrefix)
}

// EnsureTaskChannel returns the task's channel, creating it when missing.
// Members are the partners of the assigned users followed by the customer
// partner. With nobody to add it logs a warning and returns nil, nil; the
// task is left without a channel.
func (s *ChannelService) EnsureTaskChannel(ctx context.Context, task *models.Task) (*models.Channel, error) {
	if task.ChannelID != nil {
		return s.findChannel(ctx, *task.ChannelID)
	}

	partnerIDs, err := s.taskRepo.AssignedPartnerIDs(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect task members: %w", err)
	}
	if task.CustomerPartnerID != nil {
		partnerIDs = append(partnerIDs, *task.CustomerPartnerID)
	}
	partnerIDs = uniqueUint64(partnerIDs)

	if len(partnerIDs) == 0 {
		s.log.Sugar().Warnw("no partners to add to task chat channel", "task_id", task.ID)
		return nil, nil
	}

	channel := &models.Channel{
		Name:        TaskChannelName(task.Title),
		ChannelType: models.ChannelTypeGroup,
	}
	if err := s.channelRepo.CreateForTask(ctx, channel, partnerIDs, task.ID); err != nil {
		if errors.Is(err, repository.ErrTaskAlreadyLinked) {
			// another request linked a channel first; use theirs
			fresh, ferr := s.taskRepo.FindByID(task.ID)
			if ferr != nil {
				return nil, fmt.Errorf("failed to reload task: %w", ferr)
			}
			task.ChannelID = fresh.ChannelID
			if task.ChannelID == nil {
				return nil, err
			}
			return s.findChannel(ctx, *task.ChannelID)
		}
		return nil, fmt.Errorf("failed to create task channel: %w", err)
	}

	task.ChannelID = &channel.ID
	metrics.ChannelsCreated.Inc()
	s.log.Sugar().Infow("task chat channel created",
		"task_id", task.ID, "channel_id", channel.ID, "members", len(partnerIDs))
	return channel, nil
}

// TaskChatHook creates the task channel when an update switches chat on.
func (s *ChannelService) TaskChatHook() TaskUpdateHook {
	return func(ctx context.Context, task *models.Task, input UpdateTaskInput) error {
		if !input.EnablesChat() || task.ChannelID != nil {
			return nil
		}
		_, err := s.EnsureTaskChannel(ctx, task)
		return err
	}
}

// Post stores a message authored by the given partner and runs the post hooks.
func (s *ChannelService) Post(
	ctx context.Context,
	channel *models.Channel,
	authorPartnerID uint64,
	body string,
	messageType models.MessageType,
	attachments []models.Attachment,
) (*models.Message, error) {
	msg := &models.Message{
		ChannelID:       channel.ID,
		AuthorPartnerID: authorPartnerID,
		Body:            body,
		MessageType:     messageType,
	}
	if err := s.messageRepo.Create(ctx, msg, attachments); err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	metrics.MessagesPosted.WithLabelValues(string(messageType)).Inc()

	for _, hook := range s.postHooks {
		hook(ctx, channel, msg)
	}
	return msg, nil
}

// DeleteTaskChannel removes the task's channel. Only the task creator may do
// this. Re-enabling chat afterwards creates a fresh channel.
func (s *ChannelService) DeleteTaskChannel(ctx context.Context, taskID, actorID uint64) error {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}
	if task.CreatorID != actorID {
		return ErrNotTaskCreator
	}
	if task.ChannelID == nil {
		return ErrChannelNotFound
	}
	return s.DeleteChannel(ctx, *task.ChannelID)
}

// DeleteChannel removes a channel with its messages and attachments; tasks
// that pointed at it lose the link. Blob removal is best-effort and happens
// after the rows are gone.
func (s *ChannelService) DeleteChannel(ctx context.Context, channelID uint64) error {
	keys, err := s.channelRepo.Delete(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Sugar().Warnw("failed to remove attachment blob",
				"channel_id", channelID, "key", key, "error", err)
		}
	}
	s.log.Sugar().Infow("channel deleted", "channel_id", channelID, "blobs_removed", len(keys))
	return nil
}

func (s *ChannelService) findChannel(ctx context.Context, id uint64) (*models.Channel, error) {
	channel, err := s.channelRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to find channel: %w", err)
	}
	return channel, nil
}
