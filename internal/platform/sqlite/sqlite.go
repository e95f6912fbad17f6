package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/taskboard/internal/platform/sqlstore"
	"github.com/phrazzld/taskboard/internal/store"
	"github.com/pressly/goose/v3/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Dialect is the goose dialect of this backend.
const Dialect = database.DialectSQLite3

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

// IsSQLiteURL reports whether url selects this backend.
func IsSQLiteURL(url string) bool {
	return url == ":memory:" ||
		strings.HasPrefix(url, "sqlite:") ||
		strings.HasPrefix(url, "file:")
}

// DSN turns a configured URL into a modernc.org/sqlite data source name.
// "sqlite://path", "sqlite:path" and "file:path" all name a file; ":memory:"
// is a private in-memory database.
func DSN(url string) string {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return strings.TrimPrefix(url, "sqlite:")
	default:
		return url
	}
}

// Open opens the SQLite database named by url and applies connection pragmas.
// The pool is limited to one connection: SQLite serializes writers, and an
// in-memory database only lives as long as its connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	dsn := DSN(url)
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")

	if !memory {
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// NewTaskStore returns a store.TaskStore backed by db.
func NewTaskStore(db *sql.DB, logger *slog.Logger, opts ...sqlstore.Option) *sqlstore.TaskStore {
	return sqlstore.NewTaskStore(db, MapError, logger, opts...)
}

// MapError maps a SQLite error to an appropriate store error.
// It wraps the original error to preserve context.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: check constraint violation: %w", store.ErrInvalidEntity, err)
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: not null violation: %w", store.ErrInvalidEntity, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: foreign key violation: %w", store.ErrInvalidEntity, err)
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: unique violation: %w", store.ErrInvalidEntity, err)
		}
		if IsConstraintViolation(err) {
			return fmt.Errorf("%w: constraint violation: %w", store.ErrInvalidEntity, err)
		}
	}

	return err
}

// IsConstraintViolation reports whether err is any SQLite constraint failure.
func IsConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	// Extended result codes keep the primary code in the low byte.
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
