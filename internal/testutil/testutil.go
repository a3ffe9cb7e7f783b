// Package testutil contains shared helpers for package tests.
package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/nnh1125/jumboboxd/internal/config"
	"github.com/nnh1125/jumboboxd/internal/database"
	"github.com/nnh1125/jumboboxd/internal/logging"
)

// NewDB opens an in-memory sqlite database with models migrated. It is closed
// when the test ends.
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	logger := logging.Discard()
	db, err := database.Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db, logger, models...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
