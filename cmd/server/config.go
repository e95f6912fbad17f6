package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard/internal/config"
	"github.com/phrazzld/taskboard/internal/redact"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))
	slog.Debug("database configuration",
		slog.String("url", redact.String(cfg.Database.URL)),
		slog.Bool("auto_migrate", cfg.Database.AutoMigrate))
	if cfg.Realtime.RedisURL != "" {
		slog.Debug("redis relay configuration",
			slog.String("url", redact.String(cfg.Realtime.RedisURL)),
			slog.String("channel", cfg.Realtime.RedisChannel))
	}

	return cfg, nil
}
