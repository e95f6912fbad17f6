package config

import (
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks" validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
// The URL scheme selects the backend: postgres:// and postgresql:// use pgx,
// sqlite:, file: and :memory: use the embedded SQLite driver.
type DatabaseConfig struct {
	URL            string `mapstructure:"url" validate:"required"`
	MaxOpenConns   int    `mapstructure:"max_open_conns" validate:"gt=0"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	ConnectRetries int    `mapstructure:"connect_retries" validate:"gte=0"`
}

// TasksConfig contains settings of the task domain.
type TasksConfig struct {
	// Timezone is the IANA zone creation timestamps are captured in.
	Timezone     string `mapstructure:"timezone" validate:"required"`
	DefaultLimit int    `mapstructure:"default_limit" validate:"gt=0,ltefield=MaxLimit"`
	MaxLimit     int    `mapstructure:"max_limit" validate:"gt=0"`
}

// Location resolves Timezone. Load has already verified it, so the error is
// only reachable for hand-built configs.
func (c TasksConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RealtimeConfig contains settings of the push channels.
type RealtimeConfig struct {
	SendTimeoutMS      int    `mapstructure:"send_timeout_ms" validate:"gt=0"`
	MaxConcurrentSends int    `mapstructure:"max_concurrent_sends" validate:"gt=0"`
	RedisURL           string `mapstructure:"redis_url" validate:"omitempty,url"`
	RedisChannel       string `mapstructure:"redis_channel" validate:"required"`
}

// SendTimeout returns the per-subscriber send budget as a duration.
func (c RealtimeConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMS) * time.Millisecond
}
