package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-chat-api/internal/dto"
	apierrors "github.com/yukikurage/task-chat-api/internal/errors"
	"github.com/yukikurage/task-chat-api/internal/middleware"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/services"
	"github.com/yukikurage/task-chat-api/internal/utils"
)

type TaskHandler struct {
	taskService    *services.TaskService
	channelService *services.ChannelService
}

func NewTaskHandler(taskService *services.TaskService, channelService *services.ChannelService) *TaskHandler {
	return &TaskHandler{
		taskService:    taskService,
		channelService: channelService,
	}
}

// ListTasks returns the tasks visible to the current user.
// Query: organization_id, status, assigned_to_me, due_today, chat_enabled,
// sort=due_date, page, page_size.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	input := services.ListTasksInput{
		UserID:        userID,
		AssignedToMe:  c.Query("assigned_to_me") == "true",
		DueToday:      c.Query("due_today") == "true",
		SortByDueDate: c.Query("sort") == "due_date",
	}

	if raw := c.Query("organization_id"); raw != "" {
		orgID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			invalidQueryParam(c, "organization_id")
			return
		}
		input.OrganizationID = &orgID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		if status != models.TaskStatusTodo && status != models.TaskStatusDone {
			invalidQueryParam(c, "status")
			return
		}
		input.Status = &status
	}
	if raw := c.Query("chat_enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			invalidQueryParam(c, "chat_enabled")
			return
		}
		input.ChatEnabled = &enabled
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.PageSize

	tasks, total, err := h.taskService.ListTasks(input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.PageSize, total))
}

func invalidQueryParam(c *gin.Context, name string) {
	apierrors.BadRequestWithDetails(c, "Invalid query parameter", gin.H{
		"parameter": name,
		"value":     c.Query(name),
	})
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	detail, err := h.taskService.GetTask(task.ID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*detail))
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateTaskRequest struct {
		Title             string            `json:"title" binding:"required"`
		Description       string            `json:"description"`
		Status            models.TaskStatus `json:"status"`
		DueDate           *time.Time        `json:"due_date"`
		OrganizationID    uint64            `json:"organization_id" binding:"required"`
		CustomerPartnerID *uint64           `json:"customer_partner_id"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Status:            req.Status,
		DueDate:           req.DueDate,
		OrganizationID:    req.OrganizationID,
		CreatorID:         userID,
		CustomerPartnerID: req.CustomerPartnerID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. Only fields present in the body
// change; an explicit null clears due_date or customer_partner_id.
// Setting chat_enabled to true opens the task chat.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	// Decode into raw fields to tell absent from null
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input, err := parseUpdateTask(raw)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	updated, err := h.taskService.UpdateTask(c.Request.Context(), task.ID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

func parseUpdateTask(raw map[string]json.RawMessage) (services.UpdateTaskInput, error) {
	var input services.UpdateTaskInput

	if v, ok := raw["title"]; ok {
		var title string
		if err := json.Unmarshal(v, &title); err != nil {
			return input, errors.New("invalid title")
		}
		input.Title = &title
	}
	if v, ok := raw["description"]; ok {
		var description string
		if err := json.Unmarshal(v, &description); err != nil {
			return input, errors.New("invalid description")
		}
		input.Description = &description
	}
	if v, ok := raw["status"]; ok {
		var status models.TaskStatus
		if err := json.Unmarshal(v, &status); err != nil ||
			(status != models.TaskStatusTodo && status != models.TaskStatusDone) {
			return input, errors.New("invalid status")
		}
		input.Status = &status
	}
	if v, ok := raw["due_date"]; ok {
		if isNull(v) {
			input.ClearDueDate = true
		} else {
			var due time.Time
			if err := json.Unmarshal(v, &due); err != nil {
				return input, errors.New("invalid due_date")
			}
			input.DueDate = &due
		}
	}
	if v, ok := raw["customer_partner_id"]; ok {
		if isNull(v) {
			input.ClearCustomer = true
		} else {
			var partnerID uint64
			if err := json.Unmarshal(v, &partnerID); err != nil {
				return input, errors.New("invalid customer_partner_id")
			}
			input.CustomerPartnerID = &partnerID
		}
	}
	if v, ok := raw["chat_enabled"]; ok {
		var enabled bool
		if err := json.Unmarshal(v, &enabled); err != nil {
			return input, errors.New("invalid chat_enabled")
		}
		input.ChatEnabled = &enabled
	}

	return input, nil
}

func isNull(v json.RawMessage) bool {
	return string(v) == "null"
}

// DeleteTask deletes a task. Only the creator may delete it.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(task.ID, userID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

type assignUsersRequest struct {
	UserIDs []uint64 `json:"user_ids" binding:"required"`
}

// AssignTask assigns internal organization members to a task
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	var req assignUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.AssignUsers(services.AssignUsersInput{
		TaskID:  task.ID,
		ActorID: userID,
		UserIDs: req.UserIDs,
	}); err != nil {
		respondTaskError(c, err)
		return
	}

	h.respondAssignments(c, task.ID, "Users assigned successfully")
}

// UnassignTask removes user assignments from a task
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	var req assignUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.UnassignUsers(task.ID, userID, req.UserIDs); err != nil {
		respondTaskError(c, err)
		return
	}

	h.respondAssignments(c, task.ID, "Users unassigned successfully")
}

func (h *TaskHandler) respondAssignments(c *gin.Context, taskID uint64, message string) {
	detail, err := h.taskService.GetTask(taskID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	assignments := dto.ToTaskDTO(*detail).Assignments
	if assignments == nil {
		assignments = []dto.TaskAssignmentDTO{}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     message,
		"assignments": assignments,
	})
}

// DeleteTaskChat removes the task's chat channel. Only the creator may do
// this; enabling chat again creates a new channel.
func (h *TaskHandler) DeleteTaskChat(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.channelService.DeleteTaskChannel(c.Request.Context(), task.ID, userID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task chat deleted successfully",
	})
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrChannelNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotTaskCreator),
		errors.Is(err, services.ErrNotOrganizationMember):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrNoUserIDsProvided),
		errors.Is(err, services.ErrInvalidTaskAssignee),
		errors.Is(err, services.ErrCustomerNotFound):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
