package bootstrap

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/yukikurage/task-chat-api/internal/config"
	"github.com/yukikurage/task-chat-api/internal/database"
	"github.com/yukikurage/task-chat-api/internal/handlers"
	"github.com/yukikurage/task-chat-api/internal/logger"
	"github.com/yukikurage/task-chat-api/internal/notify"
	"github.com/yukikurage/task-chat-api/internal/repository"
	"github.com/yukikurage/task-chat-api/internal/services"
	"github.com/yukikurage/task-chat-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildContainer registers every component lazily; nothing connects until
// it is first invoked.
func BuildContainer() *do.Injector {
	inj := do.New()

	do.ProvideValue(inj, &Closers{})

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		db, err := database.Connect(cfg, log)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			do.MustInvoke[*Closers](i).Add("database", sqlDB.Close)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, log); err != nil {
				return nil, err
			}
		}
		return db, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		do.MustInvoke[*Closers](i).Add("redis", rdb.Close)
		return rdb, nil
	})

	// RabbitMQ connection, only dialed when the amqp bus is selected
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*Closers](i).Add("rabbitmq", conn.Close)
		return conn, nil
	})

	// Notification bus
	do.Provide(inj, func(i *do.Injector) (notify.Bus, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		return newBus(i, cfg, log)
	})

	// Attachment storage
	do.Provide(inj, func(i *do.Injector) (storage.Storage, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return storage.New(context.Background(), cfg, do.MustInvoke[*zap.Logger](i))
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repository.UserRepository, error) {
		return repository.NewUserRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repository.OrganizationRepository, error) {
		return repository.NewOrganizationRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repository.TaskRepository, error) {
		return repository.NewTaskRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repository.ChannelRepository, error) {
		return repository.NewChannelRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repository.MessageRepository, error) {
		return repository.NewMessageRepository(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repository.AttachmentRepository, error) {
		return repository.NewAttachmentRepository(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (*services.AuthService, error) {
		return services.NewAuthService(do.MustInvoke[repository.UserRepository](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*services.OrganizationService, error) {
		return services.NewOrganizationService(
			do.MustInvoke[repository.OrganizationRepository](i),
			do.MustInvoke[repository.UserRepository](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*services.ChannelService, error) {
		channels := services.NewChannelService(
			do.MustInvoke[repository.ChannelRepository](i),
			do.MustInvoke[repository.MessageRepository](i),
			do.MustInvoke[repository.TaskRepository](i),
			do.MustInvoke[storage.Storage](i),
			do.MustInvoke[*zap.Logger](i),
		)
		notifier := services.NewTaskChatNotifier(do.MustInvoke[notify.Bus](i), do.MustInvoke[*zap.Logger](i))
		channels.OnMessagePosted(notifier.Hook())
		return channels, nil
	})
	do.Provide(inj, func(i *do.Injector) (*services.TaskService, error) {
		tasks := services.NewTaskService(
			do.MustInvoke[repository.TaskRepository](i),
			do.MustInvoke[repository.OrganizationRepository](i),
			do.MustInvoke[repository.UserRepository](i),
		)
		tasks.OnUpdate(do.MustInvoke[*services.ChannelService](i).TaskChatHook())
		return tasks, nil
	})
	do.Provide(inj, func(i *do.Injector) (*services.ChatService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return services.NewChatService(
			do.MustInvoke[repository.UserRepository](i),
			do.MustInvoke[repository.OrganizationRepository](i),
			do.MustInvoke[repository.TaskRepository](i),
			do.MustInvoke[repository.ChannelRepository](i),
			do.MustInvoke[repository.MessageRepository](i),
			do.MustInvoke[repository.AttachmentRepository](i),
			do.MustInvoke[*services.ChannelService](i),
			do.MustInvoke[storage.Storage](i),
			services.ChatLimits{
				MaxUploadBytes:      cfg.Chat.MaxUploadBytes,
				DefaultHistoryLimit: cfg.Chat.DefaultHistoryLimit,
				MaxHistoryLimit:     cfg.Chat.MaxHistoryLimit,
			},
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handlers.AuthHandler, error) {
		return handlers.NewAuthHandler(do.MustInvoke[*services.AuthService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handlers.OrganizationHandler, error) {
		return handlers.NewOrganizationHandler(do.MustInvoke[*services.OrganizationService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handlers.TaskHandler, error) {
		return handlers.NewTaskHandler(
			do.MustInvoke[*services.TaskService](i),
			do.MustInvoke[*services.ChannelService](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handlers.ChatHandler, error) {
		return handlers.NewChatHandler(
			do.MustInvoke[*services.ChatService](i),
			do.MustInvoke[*services.AuthService](i),
			do.MustInvoke[notify.Bus](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	return inj
}

func newBus(i *do.Injector, cfg *config.Config, log *zap.Logger) (notify.Bus, error) {
	switch cfg.Bus.Driver {
	case "memory", "":
		return notify.NewHub(log), nil
	case "redis":
		return notify.NewRedis(do.MustInvoke[*redis.Client](i), cfg.Bus.ChannelPrefix, log), nil
	case "amqp":
		conn, err := do.Invoke[*amqp.Connection](i)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		bus, err := notify.NewAMQP(conn, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "none":
		return notify.NewFallback(log), nil
	default:
		return nil, fmt.Errorf("unsupported bus driver %q", cfg.Bus.Driver)
	}
}
