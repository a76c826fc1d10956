package db

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh migrated SQLite database in a temporary directory.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	database, err := Open("sqlite", filepath.Join(t.TempDir(), "test.sqlite3"), Options{})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return database
}
