package models

import (
	"strings"
	"time"
)

// Attachment scopes. Uploads start in the compose scope and are adopted by a
// channel when a message referencing them is posted.
const (
	AttachmentResModelCompose = "compose"
	AttachmentResModelChannel = "channel"
)

type Attachment struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Mimetype    string    `gorm:"type:varchar(255)" json:"mimetype"`
	FileSize    int64     `gorm:"not null" json:"file_size"`
	Checksum    string    `gorm:"type:varchar(64)" json:"-"`
	StorageKey  string    `gorm:"type:varchar(512);not null" json:"-"`
	AccessToken *string   `gorm:"type:varchar(64);index" json:"access_token"`
	ResModel    string    `gorm:"type:varchar(32);not null;default:'compose'" json:"-"`
	ResID       uint64    `gorm:"not null;default:0" json:"-"`
	CreatedByID uint64    `gorm:"not null;index" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsImage reports whether the MIME type denotes an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.Mimetype, "image/")
}

// Token returns the access token or an empty string when none was generated yet.
func (a Attachment) Token() string {
	if a.AccessToken == nil {
		return ""
	}
	return *a.AccessToken
}
