package postgres

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/taskboard/internal/platform/sqlstore"
	"github.com/pressly/goose/v3/database"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// Dialect is the goose dialect of this backend.
const Dialect = database.DialectPostgres

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// ALLOW-PANIC: the embed directive guarantees the directory exists
		panic(err)
	}
	return sub
}

// IsPostgresURL reports whether url selects this backend.
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// Open opens a connection pool for url. It does not contact the server;
// callers ping with their own retry policy.
func Open(url string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(max(1, maxOpenConns/2))
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// NewTaskStore returns a store.TaskStore backed by db.
func NewTaskStore(db *sql.DB, logger *slog.Logger, opts ...sqlstore.Option) *sqlstore.TaskStore {
	return sqlstore.NewTaskStore(db, MapError, logger, opts...)
}
