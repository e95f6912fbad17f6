package service

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/phrazzld/taskboard/internal/store"
)

// TaskPage is one page of a filtered task listing.
type TaskPage struct {
	// Total is the number of tasks matching the filter before paging.
	Total int64
	Tasks []domain.Task
}

// TaskService provides task operations
type TaskService interface {
	// CreateTask validates and stores a new task, then announces it.
	CreateTask(ctx context.Context, title, description, status string) (*domain.Task, error)

	// GetTask retrieves a task by its ID
	GetTask(ctx context.Context, id int64) (*domain.Task, error)

	// ListTasks returns one page of tasks, newest first
	ListTasks(ctx context.Context, filter store.TaskFilter) (*TaskPage, error)

	// ExportTasks returns every task matching the optional status, newest first
	ExportTasks(ctx context.Context, status domain.Optional[string]) ([]domain.Task, error)

	// UpdateTask applies a partial update, then announces the result.
	UpdateTask(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error)

	// DeleteTask removes a task, then announces its id.
	DeleteTask(ctx context.Context, id int64) error
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks     store.TaskStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	publisher events.Publisher,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "task store cannot be nil",
		}
	}
	if publisher == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "publisher cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	title, description, status string,
) (*domain.Task, error) {
	task, err := s.tasks.Create(ctx, title, description, status)
	if err != nil {
		return nil, NewTaskServiceError("create_task", "failed to create task", err)
	}

	s.publish(ctx, events.NewCreatedEvent(*task))
	return task, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter store.TaskFilter) (*TaskPage, error) {
	total, tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return &TaskPage{Total: total, Tasks: tasks}, nil
}

// ExportTasks implements TaskService.ExportTasks
func (s *taskServiceImpl) ExportTasks(
	ctx context.Context,
	status domain.Optional[string],
) ([]domain.Task, error) {
	tasks, err := s.tasks.ListAll(ctx, status)
	if err != nil {
		return nil, NewTaskServiceError("export_tasks", "failed to export tasks", err)
	}
	return tasks, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	id int64,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	task, err := s.tasks.Update(ctx, id, patch)
	if err != nil {
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	s.publish(ctx, events.NewUpdatedEvent(*task))
	return task, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.publish(ctx, events.NewDeletedEvent(id))
	return nil
}

// publish hands a committed change to the publisher. Failures are logged only.
func (s *taskServiceImpl) publish(ctx context.Context, event events.TaskEvent) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error("failed to publish task event",
			slog.String("event", string(event.Event)),
			slog.String("error", err.Error()))
		return
	}

	log.Debug("task event published", slog.String("event", string(event.Event)))
}
