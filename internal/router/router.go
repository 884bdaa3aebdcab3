package router

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/task-chat-api/internal/config"
	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/handlers"
	"github.com/yukikurage/task-chat-api/internal/middleware"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Config              *config.Config
	Log                 *zap.Logger
	Sessions            sessions.Store
	AuthHandler         *handlers.AuthHandler
	OrganizationHandler *handlers.OrganizationHandler
	TaskHandler         *handlers.TaskHandler
	ChatHandler         *handlers.ChatHandler
}

// NewSessionStore builds the session store selected by session.store.
func NewSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	switch cfg.Session.Store {
	case "redis", "":
		s, err := redisStore.NewStore(
			cfg.Redis.PoolSize,
			"tcp",
			cfg.RedisAddr(),
			"",
			cfg.Redis.Password,
			[]byte(cfg.Session.Secret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis session store: %w", err)
		}
		store = s
	case "cookie":
		store = cookie.NewStore([]byte(cfg.Session.Secret))
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Session.Store)
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
		Secure:   cfg.App.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ZapLogger(d.Log))
	r.Use(middleware.Metrics())
	r.Use(sessions.Sessions(constants.SessionCookieName, d.Sessions))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Chat API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", d.AuthHandler.Signup)
			auth.POST("/login", d.AuthHandler.Login)
			auth.POST("/logout", d.AuthHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), d.AuthHandler.GetCurrentUser)
		}

		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth())
		{
			orgs.POST("", d.OrganizationHandler.CreateOrganization)
			orgs.GET("", d.OrganizationHandler.ListOrganizations)
			orgs.POST("/join", d.OrganizationHandler.JoinOrganization)
			orgs.GET("/:id", middleware.RequireOrganizationAccess(), d.OrganizationHandler.GetOrganization)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", d.TaskHandler.ListTasks)
			tasks.POST("", d.TaskHandler.CreateTask)
			tasks.GET("/:id", middleware.RequireTaskAccess(), d.TaskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireTaskAccess(), d.TaskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireTaskAccess(), d.TaskHandler.DeleteTask)
			tasks.POST("/:id/assign", middleware.RequireTaskAccess(), d.TaskHandler.AssignTask)
			tasks.POST("/:id/unassign", middleware.RequireTaskAccess(), d.TaskHandler.UnassignTask)
			tasks.DELETE("/:id/chat", middleware.RequireTaskAccess(), d.TaskHandler.DeleteTaskChat)
		}

		chat := api.Group("/chat")
		{
			// token-authenticated
			chat.GET("/attachments/:id", d.ChatHandler.Attachment)

			member := chat.Group("")
			member.Use(middleware.RequireAuth())
			member.GET("/tasks/:id", d.ChatHandler.TaskChat)
			member.POST("/post", d.ChatHandler.Post)
			member.POST("/history", d.ChatHandler.History)
			member.POST("/upload", d.ChatHandler.Upload)
			member.GET("/events", d.ChatHandler.Events)
		}
	}

	return r
}
