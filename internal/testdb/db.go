package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/taskboard/internal/platform/migrate"
	"github.com/phrazzld/taskboard/internal/platform/postgres"
	"github.com/phrazzld/taskboard/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// GetTestDatabaseURL returns the PostgreSQL URL for integration tests.
// It checks DATABASE_URL and TASKBOARD_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return os.Getenv("TASKBOARD_TEST_DB_URL")
}

// IsIntegrationTestEnvironment reports whether a PostgreSQL server is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// OpenSQLite returns a migrated in-memory SQLite database that is closed when
// the test finishes. Every call gets its own empty database.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err, "Failed to open in-memory SQLite database")
	t.Cleanup(func() { CleanupDB(t, db) })

	runner, err := migrate.New(db, sqlite.Dialect, sqlite.Migrations(), nil)
	require.NoError(t, err, "Failed to create migration runner")
	require.NoError(t, runner.Up(ctx), "Failed to run migrations")

	return db
}

// GetTestDBWithT returns a migrated PostgreSQL connection for testing.
// It skips the test if no database URL is configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or TASKBOARD_TEST_DB_URL not set - skipping integration test")
	}

	db, err := postgres.Open(dbURL, 10)
	require.NoError(t, err, "Failed to open database connection")
	t.Cleanup(func() { CleanupDB(t, db) })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	runner, err := migrate.New(db, postgres.Dialect, postgres.Migrations(), nil)
	require.NoError(t, err, "Failed to create migration runner")
	require.NoError(t, runner.Up(ctx), "Failed to run migrations")

	return db
}

// ResetTasks removes every task row. Sequences are left alone, so ids stay
// unique across tests sharing one server.
func ResetTasks(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	_, err := db.ExecContext(ctx, "DELETE FROM tasks")
	require.NoError(t, err, "Failed to clear tasks table")
}

// CleanupDB properly closes a database connection, logging any errors.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
}
