package database

import (
	"fmt"

	"github.com/yukikurage/task-chat-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type indexSpec struct {
	model   interface{}
	name    string
	columns string
}

// indexes that AutoMigrate does not derive from struct tags
var indexes = []indexSpec{
	{&models.Task{}, "idx_tasks_organization_id", "organization_id"},
	{&models.Task{}, "idx_tasks_creator_id", "creator_id"},
	{&models.Task{}, "idx_tasks_status", "status"},
	{&models.Task{}, "idx_tasks_due_date", "due_date"},
	{&models.OrganizationMember{}, "idx_org_members_user_id", "user_id"},
	{&models.TaskAssignment{}, "idx_task_assignments_user_id", "user_id"},
	{&models.Attachment{}, "idx_attachments_res", "res_model, res_id"},
}

// AddIndexes creates missing secondary indexes on any supported dialect.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	m := db.Migrator()
	for _, idx := range indexes {
		if m.HasIndex(idx.model, idx.name) {
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(idx.model); err != nil {
			return fmt.Errorf("failed to parse model for index %s: %w", idx.name, err)
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, stmt.Schema.Table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Sugar().Debugw("created index", "index", idx.name, "table", stmt.Schema.Table)
	}

	return nil
}
