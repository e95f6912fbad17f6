package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/sqlite"
	"github.com/phrazzld/taskboard/internal/service"
	"github.com/phrazzld/taskboard/internal/store"
	"github.com/phrazzld/taskboard/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// committedCheckSubscriber records, for every event it receives, whether the
// change it reports is already visible in the store.
type committedCheckSubscriber struct {
	tasks store.TaskStore

	mu       sync.Mutex
	received []events.TaskEvent
	visible  []bool
}

func (s *committedCheckSubscriber) ID() string { return "committed-check" }

func (s *committedCheckSubscriber) Send(ctx context.Context, payload []byte) error {
	var event events.TaskEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}

	var visible bool
	switch event.Event {
	case events.EventCreated, events.EventUpdated:
		stored, err := s.tasks.Get(ctx, event.Task.ID)
		visible = err == nil && stored.Title == event.Task.Title && stored.Status == event.Task.Status
	case events.EventDeleted:
		_, err := s.tasks.Get(ctx, *event.TaskID)
		visible = store.IsNotFoundError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, event)
	s.visible = append(s.visible, visible)
	return nil
}

func (s *committedCheckSubscriber) Close() error { return nil }

func TestTaskServiceNotifiesAfterCommit(t *testing.T) {
	t.Parallel()

	db := testdb.OpenSQLite(t)
	tasks := sqlite.NewTaskStore(db, nil)
	registry := events.NewRegistry(nil)
	t.Cleanup(func() { _ = registry.Close() })

	sub := &committedCheckSubscriber{tasks: tasks}
	require.NoError(t, registry.Register(sub))

	svc, err := service.NewTaskService(tasks, registry, nil)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "Plan sprint", "Pick stories", "To Do")
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Status: domain.Some("In Progress")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	assert.Equal(t, created.Title, updated.Title)

	require.NoError(t, svc.DeleteTask(ctx, created.ID))

	// Failed mutations produce no event.
	_, err = svc.CreateTask(ctx, "x", "y", "Invalid Status")
	assert.True(t, domain.IsValidationError(err))
	assert.ErrorIs(t, svc.DeleteTask(ctx, created.ID), service.ErrTaskNotFound)
	_, err = svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Title: domain.Some("X")})
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	sub.mu.Lock()
	defer sub.mu.Unlock()

	require.Len(t, sub.received, 3)
	assert.Equal(t, events.EventCreated, sub.received[0].Event)
	assert.Equal(t, created.ID, sub.received[0].Task.ID)
	assert.Equal(t, events.EventUpdated, sub.received[1].Event)
	assert.Equal(t, domain.TaskStatusInProgress, sub.received[1].Task.Status)
	assert.Equal(t, events.EventDeleted, sub.received[2].Event)
	assert.Equal(t, created.ID, *sub.received[2].TaskID)
	assert.Equal(t, []bool{true, true, true}, sub.visible)
}

func TestTaskServiceListAndExport(t *testing.T) {
	t.Parallel()

	db := testdb.OpenSQLite(t)
	svc, err := service.NewTaskService(sqlite.NewTaskStore(db, nil), events.NewRegistry(nil), nil)
	require.NoError(t, err)
	ctx := context.Background()

	statuses := []string{"To Do", "Done", "To Do", "In Progress", "To Do"}
	for i, status := range statuses {
		_, err := svc.CreateTask(ctx, "task", "number "+string(rune('a'+i)), status)
		require.NoError(t, err)
	}

	page, err := svc.ListTasks(ctx, store.TaskFilter{Status: domain.Some("To Do"), Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, domain.TaskStatusToDo, page.Tasks[0].Status)

	_, err = svc.ListTasks(ctx, store.TaskFilter{Status: domain.Some("bogus"), Limit: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)

	all, err := svc.ExportTasks(ctx, domain.None[string]())
	require.NoError(t, err)
	require.Len(t, all, len(statuses))
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID, "export is ordered by id descending")
	}
}
