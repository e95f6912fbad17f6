// Package main implements the entry point for the taskboard server, which
// serves the task CRUD API and pushes every committed change to connected
// WebSocket and Server-Sent Events clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata" // tasks.timezone must resolve on hosts without zoneinfo

	"github.com/phrazzld/taskboard/internal/platform/migrate"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		fmt.Sprintf("run a database migration command %v and exit", migrate.Commands))
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrateCmd); err != nil {
		slog.Error("taskboard exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run wires the application and blocks until ctx is done or the server
// fails. A non-empty migrateCmd runs that migration command instead.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	db, b, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	if migrateCmd != "" {
		return handleMigrations(ctx, db, b, migrateCmd, logger)
	}
	if cfg.Database.AutoMigrate {
		if err := handleMigrations(ctx, db, b, "up", logger); err != nil {
			return err
		}
	}

	app, err := newApplication(cfg, logger, db, b)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
