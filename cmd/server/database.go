package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/phrazzld/taskboard/internal/config"
	"github.com/phrazzld/taskboard/internal/platform/postgres"
	"github.com/phrazzld/taskboard/internal/platform/sqlite"
	"github.com/phrazzld/taskboard/internal/platform/sqlstore"
	"github.com/pressly/goose/v3/database"
	"github.com/sethvargo/go-retry"
)

const (
	pingTimeout      = 5 * time.Second
	pingInitialDelay = 200 * time.Millisecond
	pingMaxDelay     = 5 * time.Second
)

// backend is one storage engine selected by the database URL scheme.
type backend struct {
	name       string
	dialect    database.Dialect
	migrations fs.FS
	open       func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error)
	newStore   func(db *sql.DB, logger *slog.Logger, opts ...sqlstore.Option) *sqlstore.TaskStore
}

// selectBackend picks the storage engine for url.
func selectBackend(url string) (backend, error) {
	switch {
	case postgres.IsPostgresURL(url):
		return backend{
			name:       "postgres",
			dialect:    postgres.Dialect,
			migrations: postgres.Migrations(),
			open: func(_ context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
				return postgres.Open(cfg.URL, cfg.MaxOpenConns)
			},
			newStore: postgres.NewTaskStore,
		}, nil
	case sqlite.IsSQLiteURL(url):
		return backend{
			name:       "sqlite",
			dialect:    sqlite.Dialect,
			migrations: sqlite.Migrations(),
			open: func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
				return sqlite.Open(ctx, cfg.URL)
			},
			newStore: sqlite.NewTaskStore,
		}, nil
	default:
		return backend{}, fmt.Errorf("unsupported database url scheme (expected postgres://, postgresql://, sqlite:, file: or :memory:)")
	}
}

// setupAppDatabase opens the configured database and waits until it answers
// a ping, retrying with exponential backoff up to database.connect_retries
// times.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, backend, error) {
	b, err := selectBackend(cfg.Database.URL)
	if err != nil {
		return nil, backend{}, err
	}

	db, err := b.open(ctx, cfg.Database)
	if err != nil {
		return nil, backend{}, err
	}

	if err := pingWithRetry(ctx, db, cfg.Database.ConnectRetries, logger); err != nil {
		_ = db.Close()
		return nil, backend{}, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established", slog.String("backend", b.name))
	return db, b, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, retries int, logger *slog.Logger) error {
	backoff := retry.NewExponential(pingInitialDelay)
	backoff = retry.WithCappedDuration(pingMaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(max(retries, 0)), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("database ping failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return nil
	})
}
