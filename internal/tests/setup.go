// Package tests holds integration tests that need a real PostgreSQL.
// They skip when DATABASE_URL is not set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/astrobot/server/internal/db"
)

// OpenTestDB connects to DATABASE_URL, applies the migrations and empties
// the tables. The test is skipped when DATABASE_URL is unset.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	database, err := db.Open(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("open database %s: %v", db.RedactDSN(dsn), err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := TruncateTables(ctx, database); err != nil {
		t.Fatal(err)
	}
	return database
}

// TruncateTables empties every application table for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, "TRUNCATE TABLE sessions, profiles, subscriptions")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
