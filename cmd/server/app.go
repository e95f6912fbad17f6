package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard/internal/config"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/sqlstore"
	"github.com/phrazzld/taskboard/internal/service"
	"github.com/phrazzld/taskboard/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore   store.TaskStore
	taskService service.TaskService

	// Push channels. publisher is the registry itself, or the relay when
	// events are shared between processes through Redis.
	registry    *events.Registry
	publisher   events.Publisher
	relay       *events.RedisRelay
	redisClient *redis.Client
}

// newApplication creates the application from an open, migrated database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB, b backend) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	loc, err := cfg.Tasks.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load task timezone: %w", err)
	}
	app.taskStore = b.newStore(db, logger, sqlstore.WithLocation(loc))

	app.registry = events.NewRegistry(logger,
		events.WithSendTimeout(cfg.Realtime.SendTimeout()),
		events.WithMaxConcurrentSends(cfg.Realtime.MaxConcurrentSends))
	app.publisher = app.registry

	if cfg.Realtime.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Realtime.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		app.redisClient = redis.NewClient(opts)
		app.relay = events.NewRedisRelay(app.redisClient, cfg.Realtime.RedisChannel, app.registry, logger)
		app.publisher = app.relay
		logger.Info("redis event relay enabled", slog.String("channel", cfg.Realtime.RedisChannel))
	}

	app.taskService, err = service.NewTaskService(app.taskStore, app.publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("application initialized successfully",
		slog.String("backend", b.name),
		slog.String("timezone", loc.String()))
	return app, nil
}

// Run serves HTTP, and relays events when Redis is configured, until ctx is
// done or one of them fails.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	router := app.setupRouter()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if app.relay != nil {
		p.Go(func(ctx context.Context) error {
			return app.relay.Run(ctx)
		})
	}
	p.Go(func(ctx context.Context) error {
		return app.startHTTPServer(ctx, router)
	})

	if err := p.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases resources owned by the application. The database is
// owned by the caller.
func (app *application) cleanup() {
	if err := app.registry.Close(); err != nil {
		app.logger.Warn("error closing subscribers", slog.String("error", err.Error()))
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
