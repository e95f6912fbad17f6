package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskboard/internal/config"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			level, err := logger.ParseLevel(tc.input)
			assert.Equal(t, tc.expected, level)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	t.Run("respects configured level", func(t *testing.T) {
		buf := &logger.TestLogBuffer{}
		l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, buf)
		require.NoError(t, err)
		require.NotNil(t, l)

		l.Info("hidden")
		l.Warn("visible", slog.String("key", "value"))

		entries, err := buf.GetLogEntries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "visible", entries[0]["msg"])
		assert.Equal(t, "value", entries[0]["key"])
		assert.Same(t, l, slog.Default())
	})

	t.Run("invalid level falls back to info with a warning", func(t *testing.T) {
		buf := &logger.TestLogBuffer{}
		l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "loud"}, buf)
		require.NoError(t, err)

		l.Debug("not logged")
		logger.AssertLogContains(t, buf, "invalid log level configured")
		assert.NotContains(t, buf.String(), "not logged")
	})

	t.Run("nil writer", func(t *testing.T) {
		_, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info"}, nil)
		assert.Error(t, err)
	})
}

func TestContextLogger(t *testing.T) {
	fallback, _ := logger.GetTestLogger(t)

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.NotNil(t, logger.FromContext(context.Background()))

	ctx, buf := logger.NewTestContext(t)
	logger.FromContext(ctx).Info("from context", slog.String("trace_id", "abc"))

	logger.AssertLogContains(t, buf, "from context")
	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["trace_id"])

	assert.Equal(t, context.Background(), logger.WithLogger(context.Background(), nil))
}
