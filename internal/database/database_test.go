package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-chat-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db, zap.NewNop()))

	m := db.Migrator()
	require.True(t, m.HasTable(&models.Channel{}))
	require.True(t, m.HasTable(&models.Attachment{}))
	require.True(t, m.HasTable("message_attachments"))
	require.True(t, m.HasColumn(&models.Task{}, "chat_enabled"))
	require.True(t, m.HasColumn(&models.Task{}, "channel_id"))
	require.True(t, m.HasIndex(&models.Task{}, "idx_tasks_status"))

	// second run must be a no-op
	require.NoError(t, AddIndexes(db, zap.NewNop()))
}
