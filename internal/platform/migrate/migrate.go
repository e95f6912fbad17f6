// Package migrate applies the embedded SQL schema migrations of a storage
// backend using goose.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// TableName is the name of the table used by goose to track migrations.
const TableName = "schema_migrations"

// Commands lists the operations Run accepts.
var Commands = []string{"up", "down", "reset", "status", "version"}

// ErrUnknownCommand is returned by Run for a command outside Commands.
var ErrUnknownCommand = errors.New("unknown migration command")

// Runner applies one backend's migrations to one database.
type Runner struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// New creates a Runner for db. fsys holds the *.sql files at its root.
func New(db *sql.DB, dialect database.Dialect, fsys fs.FS, logger *slog.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	versionStore, err := database.NewStore(dialect, TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration store for %s: %w", dialect, err)
	}

	provider, err := goose.NewProvider("", db, fsys, goose.WithStore(versionStore))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &Runner{
		provider: provider,
		logger: logger.With(
			slog.String("component", "migrations"),
			slog.String("dialect", string(dialect)),
		),
	}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.logResults(ctx, []*goose.MigrationResult{result})
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Reset rolls back every applied migration.
func (r *Runner) Reset(ctx context.Context) error {
	results, err := r.provider.DownTo(ctx, 0)
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version, 0 for a clean database.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	version, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Status reports every known migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	return statuses, nil
}

// Run executes one of Commands. Every log line of the run carries the same
// correlation id.
func (r *Runner) Run(ctx context.Context, command string) error {
	log := logger.FromContextOrDefault(ctx, r.logger).With(
		slog.String("correlation_id", uuid.New().String()),
		slog.String("command", command),
	)
	ctx = logger.WithLogger(ctx, log)

	start := time.Now()
	log.Info("starting migration operation")

	var err error
	switch command {
	case "up":
		err = r.Up(ctx)
	case "down":
		err = r.Down(ctx)
	case "reset":
		err = r.Reset(ctx)
	case "status":
		var statuses []*goose.MigrationStatus
		statuses, err = r.Status(ctx)
		for _, s := range statuses {
			log.Info("migration status",
				slog.Int64("version", s.Source.Version),
				slog.String("path", s.Source.Path),
				slog.String("state", string(s.State)))
		}
	case "version":
		var version int64
		version, err = r.Version(ctx)
		if err == nil {
			log.Info("current schema version", slog.Int64("version", version))
		}
	default:
		return fmt.Errorf("%w: %s (expected one of %v)", ErrUnknownCommand, command, Commands)
	}

	if err != nil {
		log.Error("migration command failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	log.Info("migration command completed",
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

func (r *Runner) logResults(ctx context.Context, results []*goose.MigrationResult) {
	log := logger.FromContextOrDefault(ctx, r.logger)
	for _, res := range results {
		attrs := []any{
			slog.Int64("version", res.Source.Version),
			slog.String("path", res.Source.Path),
			slog.String("direction", res.Direction),
			slog.Int64("duration_ms", res.Duration.Milliseconds()),
		}
		if res.Error != nil {
			log.Error("migration failed", append(attrs, slog.String("error", res.Error.Error()))...)
			continue
		}
		log.Info("migration applied", attrs...)
	}
}
