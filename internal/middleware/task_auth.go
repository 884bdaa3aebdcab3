package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-chat-api/internal/database"
	apierrors "github.com/yukikurage/task-chat-api/internal/errors"
	"github.com/yukikurage/task-chat-api/internal/models"
)

// ContextKeyTask holds the task loaded by RequireTaskAccess
const ContextKeyTask = "task"

// RequireTaskAccess checks that the user belongs to the task's organization.
// Portal customers reach their tasks through the chat routes instead.
func RequireTaskAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var task models.Task
		if err := database.GetDB().
			Preload("Creator").
			Preload("Assignments").
			Preload("Assignments.User").
			First(&task, taskID).Error; err != nil {
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		var count int64
		if err := database.GetDB().Model(&models.OrganizationMember{}).
			Where("organization_id = ? AND user_id = ?", task.OrganizationID, userID).
			Count(&count).Error; err != nil || count == 0 {
			// 404 rather than 403 so task IDs of other organizations stay hidden
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		c.Set(ContextKeyTask, task)
		c.Next()
	}
}

// GetTask returns the task loaded by RequireTaskAccess
func GetTask(c *gin.Context) (models.Task, bool) {
	v, ok := c.Get(ContextKeyTask)
	if !ok {
		return models.Task{}, false
	}
	task, ok := v.(models.Task)
	return task, ok
}
