package models

import "time"

type MessageType string

const (
	MessageTypeComment      MessageType = "comment"
	MessageTypeNotification MessageType = "notification"
)

type Message struct {
	ID              uint64      `gorm:"primarykey" json:"id"`
	ChannelID       uint64      `gorm:"not null;index:idx_messages_channel_created,priority:1" json:"channel_id"`
	AuthorPartnerID uint64      `gorm:"not null;index" json:"author_id"`
	Body            string      `gorm:"type:text" json:"body"`
	MessageType     MessageType `gorm:"type:varchar(20);not null;default:'comment'" json:"message_type"`
	CreatedAt       time.Time   `gorm:"index:idx_messages_channel_created,priority:2" json:"date"`

	// Relations
	Author      Partner      `gorm:"foreignKey:AuthorPartnerID" json:"-"`
	Attachments []Attachment `gorm:"many2many:message_attachments;" json:"-"`
}
