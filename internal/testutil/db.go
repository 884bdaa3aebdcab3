// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-chat-api/internal/database"
	"github.com/yukikurage/task-chat-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database private to the test.
// Shared cache keeps every pooled connection on the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels...))

	database.SetDB(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// CreateUser inserts a user together with its partner identity.
func CreateUser(t *testing.T, db *gorm.DB, username string, kind models.UserKind) *models.User {
	t.Helper()

	partner := &models.Partner{Name: username}
	require.NoError(t, db.Create(partner).Error)

	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Kind:         kind,
		PartnerID:    partner.ID,
	}
	require.NoError(t, db.Create(user).Error)
	user.Partner = *partner
	return user
}

// CreateOrganization inserts an organization with the given members.
func CreateOrganization(t *testing.T, db *gorm.DB, name string, members ...*models.User) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: name, InviteCode: name + "_CODE"}
	require.NoError(t, db.Create(org).Error)

	for i, u := range members {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleOwner
		}
		require.NoError(t, db.Create(&models.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         u.ID,
			Role:           role,
		}).Error)
	}
	return org
}

// CreateTask inserts a task, its assignments and optional customer partner.
func CreateTask(t *testing.T, db *gorm.DB, title string, org *models.Organization, creator *models.User, customer *models.User, assignees ...*models.User) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:          title,
		CreatorID:      creator.ID,
		OrganizationID: org.ID,
		Status:         models.TaskStatusTodo,
	}
	if customer != nil {
		task.CustomerPartnerID = &customer.PartnerID
	}
	require.NoError(t, db.Create(task).Error)

	for _, u := range assignees {
		require.NoError(t, db.Create(&models.TaskAssignment{TaskID: task.ID, UserID: u.ID}).Error)
	}
	return task
}
