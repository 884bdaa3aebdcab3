package models

import (
	"time"

	"gorm.io/gorm"
)

type UserKind string

const (
	UserKindInternal UserKind = "internal"
	UserKindPortal   UserKind = "portal"
)

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Username     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	Kind         UserKind       `gorm:"type:varchar(20);not null;default:'internal'" json:"kind"`
	PartnerID    uint64         `gorm:"index" json:"partner_id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Partner       Partner              `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	CreatedTasks  []Task               `gorm:"foreignKey:CreatorID" json:"-"`
	Assignments   []TaskAssignment     `gorm:"foreignKey:UserID" json:"-"`
	Organizations []OrganizationMember `gorm:"foreignKey:UserID" json:"-"`
}

// IsPortal reports whether the user is an external customer account.
func (u User) IsPortal() bool {
	return u.Kind == UserKindPortal
}
