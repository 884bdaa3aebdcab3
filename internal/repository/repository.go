package repository

import (
	"context"
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete soft deletes a task
	Delete(id uint64) error

	// AssignUsers assigns multiple users to a task
	AssignUsers(taskID uint64, userIDs []uint64) error

	// UnassignUsers removes user assignments from a task
	UnassignUsers(taskID uint64, userIDs []uint64) error

	// CountUsersByIDs counts how many of the given user IDs belong to the organization
	CountUsersByIDs(userIDs []uint64, organizationID uint64) (int64, error)

	// AssignedPartnerIDs returns the partner IDs behind the task's assigned users
	AssignedPartnerIDs(ctx context.Context, taskID uint64) ([]uint64, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OrganizationIDs   []uint64
	CustomerPartnerID *uint64
	Status            *models.TaskStatus
	AssignedUserID    *uint64
	ChatEnabled       *bool
	DueDateFrom       *time.Time
	DueDateTo         *time.Time
	SortByDueDate     bool
	Page              int
	PageSize          int
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// Create creates an organization together with its owner membership
	Create(org *models.Organization, owner *models.OrganizationMember) error

	// FindByID finds an organization by ID
	FindByID(id uint64) (*models.Organization, error)

	// FindByInviteCode finds an organization by invite code
	FindByInviteCode(code string) (*models.Organization, error)

	// AddMember adds a member to an organization
	AddMember(member *models.OrganizationMember) error

	// FindMember finds a specific organization member
	FindMember(organizationID, userID uint64) (*models.OrganizationMember, error)

	// ListMembersByUserID lists all organizations a user is a member of
	ListMembersByUserID(userID uint64) ([]models.OrganizationMember, error)

	// ListMembers lists all members of an organization
	ListMembers(organizationID uint64) ([]models.OrganizationMember, error)
}

// UserRepository defines the interface for user and partner data access
type UserRepository interface {
	// CreateWithPartner creates a partner and the user that owns it in one
	// transaction. When org is non-nil, the organization and the owner
	// membership are created as well.
	CreateWithPartner(user *models.User, partner *models.Partner, org *models.Organization) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)

	// FindPartner finds a partner by ID
	FindPartner(id uint64) (*models.Partner, error)
}

// ChannelRepository defines the interface for chat channel data access
type ChannelRepository interface {
	// CreateForTask creates the channel and its members and links it to the task atomically
	CreateForTask(ctx context.Context, channel *models.Channel, partnerIDs []uint64, taskID uint64) error

	// FindByID finds a channel with its members
	FindByID(ctx context.Context, id uint64) (*models.Channel, error)

	// IsMember reports whether the partner belongs to the channel
	IsMember(ctx context.Context, channelID, partnerID uint64) (bool, error)

	// Delete removes a channel with its members, messages and adopted
	// attachments, unlinking any task that points at it. It returns the
	// storage keys left without an attachment.
	Delete(ctx context.Context, id uint64) ([]string, error)
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	// Create stores a message, links the attachments to it and moves them
	// into the channel scope, all in one transaction
	Create(ctx context.Context, msg *models.Message, attachments []models.Attachment) error

	// ListByChannel lists messages of the given types, oldest first
	ListByChannel(ctx context.Context, channelID uint64, types []models.MessageType, limit int) ([]models.Message, error)
}

// AttachmentRepository defines the interface for attachment data access
type AttachmentRepository interface {
	// Create stores attachment metadata
	Create(ctx context.Context, att *models.Attachment) error

	// FindByID finds an attachment by ID
	FindByID(ctx context.Context, id uint64) (*models.Attachment, error)

	// FindExisting returns the attachments among ids that exist, in ID order
	FindExisting(ctx context.Context, ids []uint64) ([]models.Attachment, error)

	// EnsureAccessToken stores a fresh token when the attachment has none
	EnsureAccessToken(ctx context.Context, att *models.Attachment) error

	// StorageKeyInUse reports whether any attachment points at the blob key
	StorageKeyInUse(ctx context.Context, key string) (bool, error)
}
