package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNotOrganizationMember = errors.New("user is not a member of the organization")
	ErrTaskNotFound          = errors.New("task not found")
	ErrNotTaskCreator        = errors.New("only the task creator can perform this action")
	ErrNoUserIDsProvided     = errors.New("at least one user ID is required")
	ErrTitleRequired         = errors.New("title is required")
	ErrTitleEmpty            = errors.New("title cannot be empty")
	ErrInvalidTaskAssignee   = errors.New("one or more users do not exist or are not members of the organization")
	ErrCustomerNotFound      = errors.New("customer partner not found")
)

var taskDetailPreloads = []string{"Creator", "Organization", "CustomerPartner", "Assignments", "Assignments.User"}

// TaskUpdateHook runs after a task update has been persisted. input is the
// update that was applied, so hooks can react to specific field transitions.
type TaskUpdateHook func(ctx context.Context, task *models.Task, input UpdateTaskInput) error

// TaskService handles task business logic
type TaskService struct {
	taskRepo    repository.TaskRepository
	orgRepo     repository.OrganizationRepository
	userRepo    repository.UserRepository
	updateHooks []TaskUpdateHook
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, orgRepo repository.OrganizationRepository, userRepo repository.UserRepository) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		orgRepo:  orgRepo,
		userRepo: userRepo,
	}
}

// OnUpdate registers a hook that runs after every successful UpdateTask.
// Hooks must be registered during wiring, before the service handles requests.
func (s *TaskService) OnUpdate(hook TaskUpdateHook) {
	s.updateHooks = append(s.updateHooks, hook)
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	UserID         uint64
	OrganizationID *uint64
	AssignedToMe   bool
	DueToday       bool
	ChatEnabled    *bool
	Status         *models.TaskStatus
	SortByDueDate  bool
	Page           int
	PageSize       int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title             string
	Description       string
	Status            models.TaskStatus
	DueDate           *time.Time
	OrganizationID    uint64
	CreatorID         uint64
	CustomerPartnerID *uint64
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title             *string
	Description       *string
	Status            *models.TaskStatus
	DueDate           *time.Time
	ClearDueDate      bool
	ChatEnabled       *bool
	CustomerPartnerID *uint64
	ClearCustomer     bool
}

// EnablesChat reports whether the update switches chat on.
func (in UpdateTaskInput) EnablesChat() bool {
	return in.ChatEnabled != nil && *in.ChatEnabled
}

// AssignUsersInput represents input for assigning users to a task
type AssignUsersInput struct {
	TaskID  uint64
	ActorID uint64
	UserIDs []uint64
}

// ListTasks returns tasks visible to a user: tasks of the organizations the
// user belongs to plus tasks where the user's partner is the customer.
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	orgIDs, err := s.resolveAccessibleOrganizationIDs(input.UserID, input.OrganizationID)
	if err != nil {
		return nil, 0, err
	}

	filter := repository.TaskFilter{
		OrganizationIDs: orgIDs,
		Status:          input.Status,
		ChatEnabled:     input.ChatEnabled,
		Page:            input.Page,
		PageSize:        input.PageSize,
		SortByDueDate:   input.SortByDueDate,
	}

	if input.OrganizationID == nil {
		user, err := s.userRepo.FindByID(input.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to find user: %w", err)
		}
		if user.PartnerID != 0 {
			filter.CustomerPartnerID = &user.PartnerID
		}
	}

	if input.AssignedToMe {
		filter.AssignedUserID = &input.UserID
	}
	if input.DueToday {
		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.Add(24 * time.Hour)
		filter.DueDateFrom = &startOfDay
		filter.DueDateTo = &endOfDay
	}

	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns a task with related data
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	return s.findTask(taskID, taskDetailPreloads...)
}

// CreateTask creates a new task with validation and assigns the creator
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, ErrTitleRequired
	}

	if err := s.ensureOrganizationMember(input.OrganizationID, input.CreatorID); err != nil {
		return nil, err
	}
	if input.CustomerPartnerID != nil {
		if err := s.ensurePartner(*input.CustomerPartnerID); err != nil {
			return nil, err
		}
	}

	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	}

	task := &models.Task{
		Title:             input.Title,
		Description:       input.Description,
		Status:            input.Status,
		DueDate:           input.DueDate,
		OrganizationID:    input.OrganizationID,
		CreatorID:         input.CreatorID,
		CustomerPartnerID: input.CustomerPartnerID,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.taskRepo.AssignUsers(task.ID, []uint64{input.CreatorID}); err != nil {
		return nil, fmt.Errorf("failed to assign creator to task: %w", err)
	}

	return s.taskRepo.FindByID(task.ID, taskDetailPreloads...)
}

// UpdateTask applies the update, persists it and then runs the registered
// update hooks in registration order. A failing hook does not roll back the
// persisted update; its error is returned to the caller.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.ClearCustomer {
		task.CustomerPartnerID = nil
	} else if input.CustomerPartnerID != nil {
		if err := s.ensurePartner(*input.CustomerPartnerID); err != nil {
			return nil, err
		}
		task.CustomerPartnerID = input.CustomerPartnerID
	}
	if input.ChatEnabled != nil {
		task.ChatEnabled = *input.ChatEnabled
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	for _, hook := range s.updateHooks {
		if err := hook(ctx, task, input); err != nil {
			return nil, fmt.Errorf("task update hook: %w", err)
		}
	}

	return s.taskRepo.FindByID(task.ID, taskDetailPreloads...)
}

// DeleteTask deletes a task if the actor is the creator
func (s *TaskService) DeleteTask(taskID, actorID uint64) error {
	task, err := s.findTask(taskID)
	if err != nil {
		return err
	}

	if task.CreatorID != actorID {
		return ErrNotTaskCreator
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// AssignUsers assigns multiple users to a task with validation
func (s *TaskService) AssignUsers(input AssignUsersInput) error {
	if len(input.UserIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	task, err := s.findTask(input.TaskID)
	if err != nil {
		return err
	}

	if task.CreatorID != input.ActorID {
		return ErrNotTaskCreator
	}

	userIDs := uniqueUint64(input.UserIDs)

	count, err := s.taskRepo.CountUsersByIDs(userIDs, task.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to verify users: %w", err)
	}
	if int(count) != len(userIDs) {
		return ErrInvalidTaskAssignee
	}

	if err := s.taskRepo.AssignUsers(task.ID, userIDs); err != nil {
		return fmt.Errorf("failed to assign users: %w", err)
	}

	return nil
}

// UnassignUsers removes user assignments from a task
func (s *TaskService) UnassignUsers(taskID, actorID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	task, err := s.findTask(taskID)
	if err != nil {
		return err
	}

	if task.CreatorID != actorID {
		return ErrNotTaskCreator
	}

	if err := s.taskRepo.UnassignUsers(taskID, uniqueUint64(userIDs)); err != nil {
		return fmt.Errorf("failed to unassign users: %w", err)
	}

	return nil
}

func (s *TaskService) findTask(taskID uint64, preload ...string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// resolveAccessibleOrganizationIDs returns the organization IDs the user can access
func (s *TaskService) resolveAccessibleOrganizationIDs(userID uint64, organizationID *uint64) ([]uint64, error) {
	if organizationID != nil {
		if err := s.ensureOrganizationMember(*organizationID, userID); err != nil {
			return nil, err
		}
		return []uint64{*organizationID}, nil
	}

	memberships, err := s.orgRepo.ListMembersByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization memberships: %w", err)
	}

	orgIDs := make([]uint64, 0, len(memberships))
	for _, m := range memberships {
		orgIDs = append(orgIDs, m.OrganizationID)
	}

	return orgIDs, nil
}

// ensureOrganizationMember verifies that a user belongs to an organization
func (s *TaskService) ensureOrganizationMember(orgID, userID uint64) error {
	_, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotOrganizationMember
		}
		return fmt.Errorf("failed to verify organization membership: %w", err)
	}
	return nil
}

func (s *TaskService) ensurePartner(partnerID uint64) error {
	if _, err := s.userRepo.FindPartner(partnerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to find partner: %w", err)
	}
	return nil
}

// uniqueUint64 removes duplicate values from a slice of uint64, keeping first occurrences
func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
