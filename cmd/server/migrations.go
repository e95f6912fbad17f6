package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard/internal/platform/migrate"
)

// handleMigrations runs one migration command against the backend's embedded
// migrations. It is used both for the -migrate flag and for auto-migration
// at startup.
func handleMigrations(ctx context.Context, db *sql.DB, b backend, command string, logger *slog.Logger) error {
	runner, err := migrate.New(db, b.dialect, b.migrations, logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	if err := runner.Run(ctx, command); err != nil {
		return err
	}
	return nil
}
