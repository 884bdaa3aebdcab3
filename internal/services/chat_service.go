package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/metrics"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"github.com/yukikurage/task-chat-api/internal/storage"
	"github.com/yukikurage/task-chat-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrChannelAccessDenied = errors.New("you do not have access to this channel")
	ErrPayloadTooLarge     = errors.New("file too large")
	ErrAttachmentNotFound  = errors.New("attachment not found")
)

// historyTypes are the message kinds returned by History.
var historyTypes = []models.MessageType{models.MessageTypeComment, models.MessageTypeNotification}

// ChatLimits bounds uploads and history pages.
type ChatLimits struct {
	MaxUploadBytes      int64
	DefaultHistoryLimit int
	MaxHistoryLimit     int
}

// DefaultChatLimits returns a 10MB upload ceiling and 50/200 history limits.
func DefaultChatLimits() ChatLimits {
	return ChatLimits{
		MaxUploadBytes:      constants.MaxUploadSize,
		DefaultHistoryLimit: constants.DefaultHistoryLimit,
		MaxHistoryLimit:     constants.MaxHistoryLimit,
	}
}

// ChatService is the access-checked entry point for channel members. Every
// call re-validates membership; it is the only authorization gate for chat.
type ChatService struct {
	userRepo       repository.UserRepository
	orgRepo        repository.OrganizationRepository
	taskRepo       repository.TaskRepository
	channelRepo    repository.ChannelRepository
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	channels       *ChannelService
	blobs          storage.Storage
	limits         ChatLimits
	log            *zap.Logger
	now            func() time.Time
}

func NewChatService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	taskRepo repository.TaskRepository,
	channelRepo repository.ChannelRepository,
	messageRepo repository.MessageRepository,
	attachmentRepo repository.AttachmentRepository,
	channels *ChannelService,
	blobs storage.Storage,
	limits ChatLimits,
	log *zap.Logger,
) *ChatService {
	def := DefaultChatLimits()
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = def.MaxUploadBytes
	}
	if limits.DefaultHistoryLimit <= 0 {
		limits.DefaultHistoryLimit = def.DefaultHistoryLimit
	}
	if limits.MaxHistoryLimit <= 0 {
		limits.MaxHistoryLimit = def.MaxHistoryLimit
	}
	return &ChatService{
		userRepo:       userRepo,
		orgRepo:        orgRepo,
		taskRepo:       taskRepo,
		channelRepo:    channelRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		channels:       channels,
		blobs:          blobs,
		limits:         limits,
		log:            log,
		now:            time.Now,
	}
}

// Limits returns the effective limits.
func (s *ChatService) Limits() ChatLimits {
	return s.limits
}

// ValidateAccess resolves the caller and loads the channel regardless of
// per-record visibility, then requires the caller's partner to be a member.
// A missing channel is reported as ErrChannelAccessDenied too.
func (s *ChatService) ValidateAccess(ctx context.Context, channelID, userID uint64) (*models.Channel, *models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrChannelAccessDenied
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	channel, err := s.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrChannelAccessDenied
		}
		return nil, nil, fmt.Errorf("failed to find channel: %w", err)
	}

	member, err := s.channelRepo.IsMember(ctx, channel.ID, user.PartnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check channel membership: %w", err)
	}
	if !member {
		return nil, nil, ErrChannelAccessDenied
	}
	return channel, user, nil
}

// PostMessageInput represents a chat post by a channel member
type PostMessageInput struct {
	ChannelID     uint64
	UserID        uint64
	Body          string
	AttachmentIDs []uint64
}

// PostMessage posts a comment as the caller's partner. Attachment IDs that
// do not exist are dropped silently, as are attachments uploaded by someone
// else or already bound to a different channel.
func (s *ChatService) PostMessage(ctx context.Context, input PostMessageInput) (*models.Message, error) {
	channel, user, err := s.ValidateAccess(ctx, input.ChannelID, input.UserID)
	if err != nil {
		return nil, err
	}

	var adopted []models.Attachment
	if len(input.AttachmentIDs) > 0 {
		found, err := s.attachmentRepo.FindExisting(ctx, uniqueUint64(input.AttachmentIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve attachments: %w", err)
		}
		for _, att := range found {
			if !s.canAdopt(att, user.ID, channel.ID) {
				s.log.Sugar().Debugw("dropping attachment from post",
					"attachment_id", att.ID, "channel_id", channel.ID, "user_id", user.ID)
				continue
			}
			adopted = append(adopted, att)
		}
	}

	return s.channels.Post(ctx, channel, user.PartnerID, input.Body, models.MessageTypeComment, adopted)
}

func (s *ChatService) canAdopt(att models.Attachment, userID, channelID uint64) bool {
	if att.CreatedByID != userID {
		return false
	}
	switch att.ResModel {
	case models.AttachmentResModelCompose:
		return true
	case models.AttachmentResModelChannel:
		return att.ResID == channelID
	default:
		return false
	}
}

// History returns up to limit comment and notification messages, oldest
// first. limit <= 0 selects the default and larger values are clamped.
// Attachments missing an access token get one on the way out.
func (s *ChatService) History(ctx context.Context, channelID, userID uint64, limit int) ([]models.Message, error) {
	if _, _, err := s.ValidateAccess(ctx, channelID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.limits.DefaultHistoryLimit
	}
	if limit > s.limits.MaxHistoryLimit {
		limit = s.limits.MaxHistoryLimit
	}

	messages, err := s.messageRepo.ListByChannel(ctx, channelID, historyTypes, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	for i := range messages {
		for j := range messages[i].Attachments {
			if err := s.attachmentRepo.EnsureAccessToken(ctx, &messages[i].Attachments[j]); err != nil {
				return nil, fmt.Errorf("failed to generate attachment token: %w", err)
			}
		}
	}
	return messages, nil
}

// UploadInput represents an attachment upload into a channel
type UploadInput struct {
	ChannelID   uint64
	UserID      uint64
	Filename    string
	ContentType string
	// Size as announced by the client; -1 when unknown
	Size int64
	Body io.Reader
}

// Upload stores a pending attachment owned by the uploader. It stays in the
// compose scope until a post by the same user adopts it. The access token is
// written with the row, so a stored blob never outlives a failed insert.
func (s *ChatService) Upload(ctx context.Context, input UploadInput) (*models.Attachment, error) {
	if _, _, err := s.ValidateAccess(ctx, input.ChannelID, input.UserID); err != nil {
		return nil, err
	}

	if input.Size > s.limits.MaxUploadBytes {
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		return nil, ErrPayloadTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(input.Body, s.limits.MaxUploadBytes+1))
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.limits.MaxUploadBytes {
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		return nil, ErrPayloadTooLarge
	}

	mime := detectMimetype(data, input.ContentType)
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	name := filepath.Base(strings.TrimSpace(input.Filename))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	key := storage.BuildKey(checksum, name, s.now())

	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	token := utils.GenerateAccessToken()
	att := &models.Attachment{
		Name:        name,
		Mimetype:    mime,
		FileSize:    int64(len(data)),
		Checksum:    checksum,
		StorageKey:  key,
		AccessToken: &token,
		ResModel:    models.AttachmentResModelCompose,
		CreatedByID: input.UserID,
	}
	if err := s.attachmentRepo.Create(ctx, att); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		s.discardBlob(ctx, key)
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.UploadBytesTotal.Add(float64(att.FileSize))
	return att, nil
}

// discardBlob removes a blob stored for an upload that did not complete,
// unless an earlier identical upload still references the same key.
func (s *ChatService) discardBlob(ctx context.Context, key string) {
	inUse, err := s.attachmentRepo.StorageKeyInUse(ctx, key)
	if err != nil {
		s.log.Sugar().Warnw("keeping blob of failed upload", "key", key, "error", err)
		return
	}
	if inUse {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Sugar().Warnw("failed to remove blob of failed upload", "key", key, "error", err)
	}
}

// detectMimetype sniffs the content and falls back to the declared type when
// sniffing only yields the generic binary type.
func detectMimetype(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	if detected.Is("application/octet-stream") && strings.TrimSpace(declared) != "" {
		return strings.TrimSpace(declared)
	}
	return detected.String()
}

// TaskChatInfo returns the task for organization members and for the task's
// customer. Anyone else gets ErrTaskNotFound.
func (s *ChatService) TaskChatInfo(ctx context.Context, taskID, userID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if task.CustomerPartnerID != nil && *task.CustomerPartnerID == user.PartnerID {
		return task, nil
	}
	if _, err := s.orgRepo.FindMember(task.OrganizationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to verify organization membership: %w", err)
	}
	return task, nil
}

// OpenAttachment returns the attachment and its content when token matches
// the stored access token. The caller must close the reader.
func (s *ChatService) OpenAttachment(ctx context.Context, attachmentID uint64, token string) (*models.Attachment, io.ReadCloser, error) {
	att, err := s.attachmentRepo.FindByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("failed to find attachment: %w", err)
	}

	stored := att.Token()
	if token == "" || stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return nil, nil, ErrAttachmentNotFound
	}

	rc, err := s.blobs.Download(ctx, att.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return att, rc, nil
}
