package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskboard/internal/config"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/phrazzld/taskboard/internal/platform/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:                   8080,
			LogLevel:               "debug",
			ShutdownTimeoutSeconds: 5,
		},
		Database: config.DatabaseConfig{
			URL:          url,
			MaxOpenConns: 1,
		},
		Tasks: config.TasksConfig{
			Timezone:     "UTC",
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Realtime: config.RealtimeConfig{
			SendTimeoutMS:      1000,
			MaxConcurrentSends: 4,
			RedisChannel:       "taskboard:test",
		},
	}
}

// newTestApp builds the application on a migrated in-memory SQLite database.
func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	log, _ := logger.GetTestLogger(t)
	ctx := context.Background()

	db, b, err := setupAppDatabase(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, handleMigrations(ctx, db, b, "up", log))

	app, err := newApplication(cfg, log, db, b)
	require.NoError(t, err)
	return app
}

func TestSelectBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost:5432/tasks", "postgres"},
		{"postgresql://localhost/tasks", "postgres"},
		{"sqlite:data/tasks.db", "sqlite"},
		{"file:tasks.db?cache=shared", "sqlite"},
		{":memory:", "sqlite"},
	}
	for _, tc := range tests {
		b, err := selectBackend(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.want, b.name, tc.url)
		assert.NotNil(t, b.migrations)
	}

	_, err := selectBackend("mysql://localhost/tasks")
	assert.Error(t, err)
}

func TestPingWithRetryGivesUp(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = pingWithRetry(context.Background(), db, 2, log)
	require.Error(t, err)
	assert.Equal(t, 3, strings.Count(buf.String(), "database ping failed"), "one attempt plus two retries")
}

func TestServeAndGracefulShutdown(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, testConfig(":memory:"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln, app.setupRouter()) }()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/tasks", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return app.registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, err := http.Post(base+"/api/tasks", "application/json",
		strings.NewReader(`{"title":"Boot","description":"wired","status":"To Do"}`))
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event events.TaskEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, events.EventCreated, event.Event)
	require.NotNil(t, event.Task)
	assert.Equal(t, "Boot", event.Task.Title)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// Shutdown closes push channels instead of waiting on them.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, app.registry.Count())
}

func TestApplicationWithRedisRelay(t *testing.T) {
	t.Parallel()

	m := miniredis.RunT(t)
	cfg := testConfig(":memory:")
	cfg.Realtime.RedisURL = "redis://" + m.Addr()

	app := newTestApp(t, cfg)
	require.NotNil(t, app.relay)
	assert.Same(t, app.relay, app.publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.relay.Run(ctx) }()
	select {
	case <-app.relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	sub := events.NewChannelSubscriber(4)
	require.NoError(t, app.registry.Register(sub))

	task, err := app.taskService.CreateTask(ctx, "Relay", "through redis", "Done")
	require.NoError(t, err)

	select {
	case payload := <-sub.Messages():
		var event events.TaskEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, events.EventCreated, event.Event)
		require.NotNil(t, event.Task)
		assert.Equal(t, task.ID, event.Task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed")
	}

	select {
	case payload := <-sub.Messages():
		t.Fatalf("event delivered twice: %s", payload)
	case <-time.After(200 * time.Millisecond):
	}

	app.cleanup()
	assert.Zero(t, app.registry.Count())
}

func TestNewApplicationRejectsBadSettings(t *testing.T) {
	t.Parallel()

	log, _ := logger.GetTestLogger(t)
	b, err := selectBackend(":memory:")
	require.NoError(t, err)

	cfg := testConfig(":memory:")
	cfg.Tasks.Timezone = "Mars/Olympus_Mons"
	_, err = newApplication(cfg, log, &sql.DB{}, b)
	assert.Error(t, err)

	cfg = testConfig(":memory:")
	cfg.Realtime.RedisURL = "http://not-redis"
	_, err = newApplication(cfg, log, &sql.DB{}, b)
	assert.Error(t, err)
}

func TestRunMigrationCommand(t *testing.T) {
	t.Setenv("TASKBOARD_DATABASE_URL", "sqlite:"+filepath.Join(t.TempDir(), "tasks.db"))
	t.Setenv("TASKBOARD_SERVER_LOG_LEVEL", "error")

	ctx := context.Background()
	require.NoError(t, run(ctx, "up"))
	require.NoError(t, run(ctx, "version"))

	err := run(ctx, "sideways")
	require.ErrorIs(t, err, migrate.ErrUnknownCommand)
}
