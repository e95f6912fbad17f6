package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskboard/internal/api"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/phrazzld/taskboard/internal/platform/sqlite"
	"github.com/phrazzld/taskboard/internal/service"
	"github.com/phrazzld/taskboard/internal/testdb"
	"github.com/stretchr/testify/require"
)

const eventWait = 2 * time.Second

type testServer struct {
	*httptest.Server
	registry *events.Registry
}

// newTestServer starts the full router on an in-memory SQLite database.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log, _ := logger.GetTestLogger(t)
	db := testdb.OpenSQLite(t)

	registry := events.NewRegistry(log, events.WithSendTimeout(time.Second))
	svc, err := service.NewTaskService(sqlite.NewTaskStore(db, log), registry, log)
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		TaskService: svc,
		Registry:    registry,
		Logger:      log,
	}))
	t.Cleanup(func() {
		_ = registry.Close()
		srv.Close()
	})

	return &testServer{Server: srv, registry: registry}
}

// do sends a request and returns the status code and body.
func (s *testServer) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// createTask creates a task and returns its decoded response.
func (s *testServer) createTask(t *testing.T, title, description, status string) api.TaskResponse {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"title":       title,
		"description": description,
		"status":      status,
	})
	require.NoError(t, err)

	code, data := s.do(t, http.MethodPost, "/api/tasks", string(body))
	require.Equal(t, http.StatusOK, code, string(data))

	var task api.TaskResponse
	require.NoError(t, json.Unmarshal(data, &task))
	return task
}

// dialWS connects a push channel client and waits until the server has
// registered it.
func (s *testServer) dialWS(t *testing.T) *websocket.Conn {
	t.Helper()

	before := s.registry.Count()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/tasks"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return s.registry.Count() > before },
		eventWait, 10*time.Millisecond, "websocket subscriber was not registered")
	return conn
}

// readEvent reads the next push message.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(eventWait)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// expectNoEvent asserts that nothing arrives within a short window.
func expectNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected push message: %s", data)
}
