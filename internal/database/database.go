package database

import (
	"fmt"

	"github.com/yukikurage/task-chat-api/internal/config"
	"github.com/yukikurage/task-chat-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// AllModels lists every persisted model in migration order.
var AllModels = []interface{}{
	&models.Partner{},
	&models.User{},
	&models.Organization{},
	&models.OrganizationMember{},
	&models.Channel{},
	&models.ChannelMember{},
	&models.Task{},
	&models.TaskAssignment{},
	&models.Attachment{},
	&models.Message{},
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	db := cfg.Database
	switch db.Driver {
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			db.Host,
			db.Port,
			db.User,
			db.Password,
			db.Name,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(db.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.App.GinMode == "debug" {
		level = logger.Info
	}

	DB, err = gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Sugar().Infow("database connection established", "driver", cfg.Database.Driver)
	return DB, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Sugar().Info("running database migrations")
	if err := db.AutoMigrate(AllModels...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := AddIndexes(db, log); err != nil {
		return err
	}
	log.Sugar().Info("database migrations completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (used for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
