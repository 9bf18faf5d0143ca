// Package testutil opens a migrated Postgres pool for adapter tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// OpenMigratedPool connects to DATABASE_URL and applies migrations once per process.
// Tests are skipped when DATABASE_URL is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping postgres tests")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("NewPool() err=%v", err)
	}
	t.Cleanup(pool.Close)

	migrateOnce.Do(func() {
		_, migrateErr = postgres.Migrate(ctx, pool)
	})
	if migrateErr != nil {
		t.Fatalf("Migrate() err=%v", migrateErr)
	}
	return pool
}
