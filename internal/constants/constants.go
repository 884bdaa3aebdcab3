package constants

// Session and context keys
const (
	SessionCookieName = "task_session"
	ContextKeyUserID  = "user_id"
)

// Auth
const (
	MinPasswordLength = 8
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Task chat
const (
	TaskChatNamePrefix  = "Task Chat:"
	TaskChatEventType   = "task_chat/new_message"
	MaxUploadSize       = 10 * 1024 * 1024 // 10MB
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)
