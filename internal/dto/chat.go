package dto

import (
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
)

// AttachmentDTO is the inline attachment summary used by upload and history
type AttachmentDTO struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Mimetype    string `json:"mimetype"`
	FileSize    int64  `json:"file_size"`
	AccessToken string `json:"access_token"`
	IsImage     bool   `json:"is_image"`
}

// ChatMessageDTO represents a message in a history response
type ChatMessageDTO struct {
	ID          uint64             `json:"id"`
	Body        string             `json:"body"`
	AuthorID    uint64             `json:"author_id"`
	AuthorName  string             `json:"author_name"`
	Date        time.Time          `json:"date"`
	MessageType models.MessageType `json:"message_type"`
	Attachments []AttachmentDTO    `json:"attachments"`
}

// ChatHistoryResponse wraps the history message list
type ChatHistoryResponse struct {
	Messages []ChatMessageDTO `json:"messages"`
}

// TaskChatInfoDTO tells a client whether a task has a chat to open
type TaskChatInfoDTO struct {
	TaskID      uint64  `json:"task_id"`
	ChatEnabled bool    `json:"chat_enabled"`
	ChannelID   *uint64 `json:"channel_id"`
}

// ToAttachmentDTO converts an Attachment model to AttachmentDTO
func ToAttachmentDTO(att models.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:          att.ID,
		Name:        att.Name,
		Mimetype:    att.Mimetype,
		FileSize:    att.FileSize,
		AccessToken: att.Token(),
		IsImage:     att.IsImage(),
	}
}

// ToChatMessageDTO converts a Message model with preloaded author and attachments
func ToChatMessageDTO(msg models.Message) ChatMessageDTO {
	attachments := make([]AttachmentDTO, len(msg.Attachments))
	for i, att := range msg.Attachments {
		attachments[i] = ToAttachmentDTO(att)
	}
	return ChatMessageDTO{
		ID:          msg.ID,
		Body:        msg.Body,
		AuthorID:    msg.AuthorPartnerID,
		AuthorName:  msg.Author.Name,
		Date:        msg.CreatedAt,
		MessageType: msg.MessageType,
		Attachments: attachments,
	}
}

// ToChatHistoryResponse converts messages to the history response
func ToChatHistoryResponse(messages []models.Message) ChatHistoryResponse {
	items := make([]ChatMessageDTO, len(messages))
	for i, msg := range messages {
		items[i] = ToChatMessageDTO(msg)
	}
	return ChatHistoryResponse{Messages: items}
}

// ToTaskChatInfoDTO converts a Task model to TaskChatInfoDTO
func ToTaskChatInfoDTO(task models.Task) TaskChatInfoDTO {
	return TaskChatInfoDTO{
		TaskID:      task.ID,
		ChatEnabled: task.ChatEnabled,
		ChannelID:   task.ChannelID,
	}
}
