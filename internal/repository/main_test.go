package repository

import (
	"os"
	"testing"

	"alvacus/internal/database"
	"alvacus/internal/models"
	"alvacus/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	observability.RepoLoggingEnabled = false
	os.Exit(m.Run())
}

// newTestDB returns a migrated in-memory SQLite database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		Email:       username + "@x.com",
		Slug:        username,
		Role:        models.RoleUser,
		IsActivated: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedCalculator(t *testing.T, db *gorm.DB, author *models.User, slug string, verified bool) *models.Calculator {
	t.Helper()
	c := &models.Calculator{
		Title:       slug,
		Slug:        slug,
		Description: "d",
		Category:    "health",
		Type:        models.CalculatorModular,
		Info:        "i",
		IsVerified:  verified,
	}
	if author != nil {
		c.AuthorID = &author.ID
	}
	require.NoError(t, db.Omit("Author", "SavedUsers").Create(c).Error)
	return c
}

func uintPtr(v uint) *uint { return &v }

func boolPtr(v bool) *bool { return &v }
