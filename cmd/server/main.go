package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/yukikurage/task-chat-api/internal/bootstrap"
	"github.com/yukikurage/task-chat-api/internal/config"
	"github.com/yukikurage/task-chat-api/internal/handlers"
	"github.com/yukikurage/task-chat-api/internal/notify"
	"github.com/yukikurage/task-chat-api/internal/router"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() {
		_ = log.Sync()
	}()

	gin.SetMode(cfg.App.GinMode)

	// connect and migrate before accepting traffic
	do.MustInvoke[*gorm.DB](inj)

	store, err := router.NewSessionStore(cfg)
	if err != nil {
		log.Sugar().Fatalw("failed to create session store", "error", err)
	}

	engine := router.NewRouter(router.RouterDeps{
		Config:              cfg,
		Log:                 log,
		Sessions:            store,
		AuthHandler:         do.MustInvoke[*handlers.AuthHandler](inj),
		OrganizationHandler: do.MustInvoke[*handlers.OrganizationHandler](inj),
		TaskHandler:         do.MustInvoke[*handlers.TaskHandler](inj),
		ChatHandler:         do.MustInvoke[*handlers.ChatHandler](inj),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	// Shutdown waits for streaming requests; closing the bus ends open
	// event streams.
	bus := do.MustInvoke[notify.Bus](inj)
	srv.RegisterOnShutdown(func() {
		if err := bus.Close(); err != nil {
			log.Sugar().Warnw("failed to close notification bus", "error", err)
		}
	})

	go func() {
		log.Sugar().Infow("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Sugar().Fatalw("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Sugar().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Sugar().Errorw("server forced to shutdown", "error", err)
	}

	do.MustInvoke[*bootstrap.Closers](inj).CloseAll(log)
	log.Sugar().Info("server exited")
}
