package models

import "time"

type ChannelType string

const (
	ChannelTypeChat    ChannelType = "chat"
	ChannelTypeGroup   ChannelType = "group"
	ChannelTypeChannel ChannelType = "channel"
)

type Channel struct {
	ID          uint64      `gorm:"primarykey" json:"id"`
	Name        string      `gorm:"type:varchar(255);not null" json:"name"`
	ChannelType ChannelType `gorm:"type:varchar(20);not null;default:'group'" json:"channel_type"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Relations
	Members []ChannelMember `gorm:"foreignKey:ChannelID" json:"members,omitempty"`
}

type ChannelMember struct {
	ChannelID uint64    `gorm:"primarykey" json:"channel_id"`
	PartnerID uint64    `gorm:"primarykey;index" json:"partner_id"`
	JoinedAt  time.Time `json:"joined_at"`

	// Relations
	Partner Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
}

// PartnerIDs returns the member partner IDs in stored order.
func (c Channel) PartnerIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.PartnerID)
	}
	return ids
}
