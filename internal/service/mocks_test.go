package service

import (
	"context"

	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/events"
	"github.com/phrazzld/taskboard/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockTaskStore mocks the store.TaskStore interface
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, title, description, status string) (*domain.Task, error) {
	args := m.Called(ctx, title, description, status)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *MockTaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	args := m.Called(ctx, id)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) (int64, []domain.Task, error) {
	args := m.Called(ctx, filter)
	tasks, _ := args.Get(1).([]domain.Task)
	return args.Get(0).(int64), tasks, args.Error(2)
}

func (m *MockTaskStore) ListAll(ctx context.Context, status domain.Optional[string]) ([]domain.Task, error) {
	args := m.Called(ctx, status)
	tasks, _ := args.Get(0).([]domain.Task)
	return tasks, args.Error(1)
}

func (m *MockTaskStore) Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	args := m.Called(ctx, id, patch)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *MockTaskStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher mocks the events.Publisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
