package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/notify"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"github.com/yukikurage/task-chat-api/internal/services"
	"github.com/yukikurage/task-chat-api/internal/storage"
	"github.com/yukikurage/task-chat-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// handlerTestEnv wires every handler on an in-memory database. The task
// "Fix printer" belongs to org acme, is assigned to agent and has customer
// as its customer partner.
type handlerTestEnv struct {
	ctx context.Context
	db  *gorm.DB
	hub *notify.Hub

	authService *services.AuthService
	orgService  *services.OrganizationService
	taskService *services.TaskService
	channels    *services.ChannelService
	chatService *services.ChatService

	authHandler *AuthHandler
	orgHandler  *OrganizationHandler
	taskHandler *TaskHandler
	chatHandler *ChatHandler

	agent    *models.User
	teammate *models.User
	customer *models.User
	outsider *models.User
	org      *models.Organization
	task     *models.Task
}

func setupHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := zap.NewNop()
	hub := notify.NewHub(log)
	t.Cleanup(func() { hub.Close() })

	blobs, err := storage.NewLocal(t.TempDir(), log)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	env := &handlerTestEnv{ctx: context.Background(), db: db, hub: hub}
	env.authService = services.NewAuthService(userRepo)
	env.orgService = services.NewOrganizationService(orgRepo, userRepo)
	env.taskService = services.NewTaskService(taskRepo, orgRepo, userRepo)
	env.channels = services.NewChannelService(channelRepo, messageRepo, taskRepo, blobs, log)
	env.chatService = services.NewChatService(userRepo, orgRepo, taskRepo, channelRepo, messageRepo, attachmentRepo,
		env.channels, blobs, services.ChatLimits{MaxUploadBytes: 1024}, log)

	env.taskService.OnUpdate(env.channels.TaskChatHook())
	env.channels.OnMessagePosted(services.NewTaskChatNotifier(hub, log).Hook())

	env.authHandler = NewAuthHandler(env.authService)
	env.orgHandler = NewOrganizationHandler(env.orgService)
	env.taskHandler = NewTaskHandler(env.taskService, env.channels)
	env.chatHandler = NewChatHandler(env.chatService, env.authService, hub, log)

	env.agent = testutil.CreateUser(t, db, "agent", models.UserKindInternal)
	env.teammate = testutil.CreateUser(t, db, "teammate", models.UserKindInternal)
	env.customer = testutil.CreateUser(t, db, "customer", models.UserKindPortal)
	env.outsider = testutil.CreateUser(t, db, "outsider", models.UserKindPortal)
	env.org = testutil.CreateOrganization(t, db, "acme", env.agent, env.teammate)
	env.task = testutil.CreateTask(t, db, "Fix printer", env.org, env.agent, env.customer, env.agent)

	return env
}

// authContext builds a context as RequireAuth leaves it for userID.
func authContext(method, url string, body []byte, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if userID != 0 {
		c.Set(constants.ContextKeyUserID, userID)
	}
	return c, w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

// enableChat switches chat on for the task and returns the channel ID.
func (env *handlerTestEnv) enableChat(t *testing.T, taskID uint64) uint64 {
	t.Helper()
	enabled := true
	task, err := env.taskService.UpdateTask(env.ctx, taskID, services.UpdateTaskInput{ChatEnabled: &enabled})
	require.NoError(t, err)
	require.NotNil(t, task.ChannelID)
	return *task.ChannelID
}
