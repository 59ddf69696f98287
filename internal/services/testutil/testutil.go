// Package testutil provides shared test utilities for service tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-live/internal/database/models"
	"github.com/bbernstein/lacylights-live/internal/database/repositories"
	"github.com/bbernstein/lacylights-live/internal/state"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB          *gorm.DB
	ShowRepo    *repositories.ShowRepository
	SettingRepo *repositories.SettingRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// One connection, so every query sees the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:          db,
		ShowRepo:    repositories.NewShowRepository(db),
		SettingRepo: repositories.NewSettingRepository(db),
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}

	return testDB, cleanup
}

// NewFixture returns a fixture with a unique id and name.
func NewFixture(fixtureType string) state.Fixture {
	id := cuid.New()
	return state.Fixture{
		ID:         id,
		Type:       fixtureType,
		Name:       UniqueName(fixtureType),
		Properties: state.Properties{},
	}
}

// UniqueName generates a unique name for testing.
func UniqueName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
