package store

import (
	"context"

	"github.com/phrazzld/taskboard/internal/domain"
)

// TaskFilter selects and pages tasks for List.
type TaskFilter struct {
	// Status restricts the result to one status when set. The raw wire string
	// is validated by the store.
	Status domain.Optional[string]
	// Skip is the number of matching tasks to pass over. Must be >= 0.
	Skip int
	// Limit is the maximum number of tasks returned. Must be > 0.
	Limit int
}

// Validate checks the pagination bounds.
func (f TaskFilter) Validate() error {
	if f.Skip < 0 {
		return domain.NewValidationError("skip", "must be greater than or equal to 0", domain.ErrInvalidPagination)
	}
	if f.Limit <= 0 {
		return domain.NewValidationError("limit", "must be greater than 0", domain.ErrInvalidPagination)
	}
	return nil
}

// TaskStore defines the interface for task data persistence.
//
// Every mutating method runs in its own transaction and either commits fully
// or leaves the store unchanged. Business validation happens here, so every
// backend enforces the same rules regardless of the caller.
type TaskStore interface {
	// Create validates and persists a new task. The store assigns the id and
	// the creation timestamp.
	// Returns a *domain.ValidationError if any field is invalid.
	Create(ctx context.Context, title, description, status string) (*domain.Task, error)

	// Get retrieves a task by its id.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// List returns the number of tasks matching the filter before pagination
	// together with one page of them, newest id first.
	// Returns a *domain.ValidationError for an unknown status or bad bounds.
	List(ctx context.Context, filter TaskFilter) (int64, []domain.Task, error)

	// ListAll returns every task matching the optional status, newest id first.
	ListAll(ctx context.Context, status domain.Optional[string]) ([]domain.Task, error)

	// Update applies the supplied fields of patch to an existing task and
	// returns the stored result. Unset fields keep their value.
	// Returns ErrTaskNotFound if the task does not exist, or a
	// *domain.ValidationError if a supplied field is invalid.
	Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error)

	// Delete removes a task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64) error
}
