package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-chat-api/internal/dto"
	apierrors "github.com/yukikurage/task-chat-api/internal/errors"
	"github.com/yukikurage/task-chat-api/internal/middleware"
	"github.com/yukikurage/task-chat-api/internal/notify"
	"github.com/yukikurage/task-chat-api/internal/services"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the file size limit
const uploadEnvelopeBytes = 1 << 20

// ChatHandler serves the task chat endpoints. Every channel operation is
// authorized by ChatService; the handler only decodes and encodes.
type ChatHandler struct {
	chat   *services.ChatService
	auth   *services.AuthService
	events notify.Subscriber
	log    *zap.Logger
}

func NewChatHandler(chat *services.ChatService, auth *services.AuthService, events notify.Subscriber, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		auth:   auth,
		events: events,
		log:    log,
	}
}

// Post posts a comment into a channel the caller is a member of
func (h *ChatHandler) Post(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type PostRequest struct {
		ChannelID     uint64   `json:"channel_id" binding:"required"`
		MessageBody   string   `json:"message_body"`
		AttachmentIDs []uint64 `json:"attachment_ids"`
	}

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if _, err := h.chat.PostMessage(c.Request.Context(), services.PostMessageInput{
		ChannelID:     req.ChannelID,
		UserID:        userID,
		Body:          req.MessageBody,
		AttachmentIDs: req.AttachmentIDs,
	}); err != nil {
		h.respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// History returns the channel's comments and notifications, oldest first
func (h *ChatHandler) History(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type HistoryRequest struct {
		ChannelID uint64 `json:"channel_id" binding:"required"`
		Limit     int    `json:"limit"`
	}

	var req HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	messages, err := h.chat.History(c.Request.Context(), req.ChannelID, userID, req.Limit)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToChatHistoryResponse(messages))
}

// Upload stores a file for a later post. Form fields: channel_id, ufile.
// channel_id may also be given in the query string; access is then checked
// before the body is read, so non-members are refused without a size check.
func (h *ChatHandler) Upload(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	rawChannelID := c.Query("channel_id")
	if rawChannelID != "" {
		channelID, err := strconv.ParseUint(rawChannelID, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid channel_id")
			return
		}
		if _, _, err := h.chat.ValidateAccess(c.Request.Context(), channelID, userID); err != nil {
			h.respondChatError(c, err)
			return
		}
	}

	maxBytes := h.chat.Limits().MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+uploadEnvelopeBytes)

	file, header, err := c.Request.FormFile("ufile")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(c, uploadTooLargeMessage(maxBytes))
			return
		}
		apierrors.BadRequest(c, "Missing file")
		return
	}
	defer file.Close()

	if rawChannelID == "" {
		rawChannelID = c.Request.FormValue("channel_id")
	}
	channelID, err := strconv.ParseUint(rawChannelID, 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid channel_id")
		return
	}

	att, err := h.chat.Upload(c.Request.Context(), services.UploadInput{
		ChannelID:   channelID,
		UserID:      userID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAttachmentDTO(*att))
}

// TaskChat tells a member or the task's customer whether the task has a chat
func (h *ChatHandler) TaskChat(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	task, err := h.chat.TaskChatInfo(c.Request.Context(), taskID, userID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskChatInfoDTO(*task))
}

// Attachment streams an attachment's content. The access token in the query
// string is the credential, so the route needs no session.
func (h *ChatHandler) Attachment(c *gin.Context) {
	attachmentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid attachment ID")
		return
	}

	att, body, err := h.chat.OpenAttachment(c.Request.Context(), attachmentID, c.Query("access_token"))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, att.FileSize, att.Mimetype, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", att.Name),
	})
}

// Events streams the caller's notification events as server-sent events
func (h *ChatHandler) Events(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.auth.GetUser(userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	ctx := c.Request.Context()
	events, cancel, err := h.events.Subscribe(ctx, user.PartnerID)
	if err != nil {
		if errors.Is(err, notify.ErrSubscribeUnsupported) {
			apierrors.ServiceUnavailable(c, "Live notifications are not available")
			return
		}
		h.log.Sugar().Errorw("failed to subscribe to notifications", "partner_id", user.PartnerID, "error", err)
		apierrors.InternalError(c, "Internal server error")
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(evt.Meta.Type, evt)
			c.Writer.Flush()
		}
	}
}

func (h *ChatHandler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrChannelAccessDenied):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrPayloadTooLarge):
		apierrors.PayloadTooLarge(c, uploadTooLargeMessage(h.chat.Limits().MaxUploadBytes))
	case errors.Is(err, services.ErrAttachmentNotFound),
		errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		h.log.Sugar().Errorw("chat request failed", "path", c.FullPath(), "error", err)
		apierrors.InternalError(c, "Internal server error")
	}
}

func uploadTooLargeMessage(maxBytes int64) string {
	if maxBytes >= 1<<20 {
		return fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20)
	}
	return fmt.Sprintf("File too large. Maximum size is %d bytes.", maxBytes)
}
