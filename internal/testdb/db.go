//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/tasktracker-api/internal/platform/postgres"
)

// GetTestDBWithT opens the test database, applies all migrations and closes
// the pool when the test ends. The test is skipped when no database is
// configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()
	if ShouldSkipDatabaseTest() {
		t.Skip("no test database configured (set DATABASE_URL)")
	}

	dbURL := GetTestDatabaseURL()
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		t.Fatalf("failed to open test database %s: %v", maskDatabaseURL(dbURL), err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database %s: %v", maskDatabaseURL(dbURL), err)
	}
	if err := postgres.Migrate(ctx, db, nil); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// WithTx runs fn inside a transaction that is always rolled back, so
// nothing fn writes outlives it.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// TruncateOnCleanup empties tables when the test ends. Use it for code that
// opens its own transactions and therefore cannot run inside WithTx.
func TruncateOnCleanup(t *testing.T, db *sql.DB, tables ...string) {
	t.Helper()
	t.Cleanup(func() {
		if _, err := db.ExecContext(context.Background(), "TRUNCATE "+strings.Join(tables, ", ")); err != nil {
			t.Logf("warning: failed to truncate %v: %v", tables, err)
		}
	})
}
