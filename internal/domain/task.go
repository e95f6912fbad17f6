package domain

import (
	"strings"
	"time"
)

// Task is a tracked work item. ID and CreatedAt are assigned by the store
// when the task is created; CreatedAt never changes afterwards.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskDraft holds the validated fields of a task that has not been stored yet.
type TaskDraft struct {
	Title       string
	Description string
	Status      TaskStatus
}

// NewTaskDraft validates raw creation input and returns a TaskDraft.
// Title and description must contain at least one non-whitespace character
// and status must be a canonical status string.
func NewTaskDraft(title, description, status string) (TaskDraft, error) {
	if err := ValidateTitle(title); err != nil {
		return TaskDraft{}, err
	}
	if err := ValidateDescription(description); err != nil {
		return TaskDraft{}, err
	}
	parsed, err := ParseTaskStatus(status)
	if err != nil {
		return TaskDraft{}, err
	}

	return TaskDraft{
		Title:       title,
		Description: description,
		Status:      parsed,
	}, nil
}

// ValidateTitle checks that a title is not empty or whitespace-only.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyTitle)
	}
	return nil
}

// ValidateDescription checks that a description is not empty or whitespace-only.
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return NewValidationError("description", "cannot be empty", ErrEmptyDescription)
	}
	return nil
}

// TaskPatch is the raw input of a partial update. A field that was not
// supplied is left unset and must not touch the stored value.
type TaskPatch struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[string]
}

// TaskChanges is a TaskPatch that passed validation.
type TaskChanges struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[TaskStatus]
}

// IsEmpty reports whether no field is set.
func (c TaskChanges) IsEmpty() bool {
	return !c.Title.IsSet() && !c.Description.IsSet() && !c.Status.IsSet()
}

// Validate checks every supplied field with the same rules as creation and
// returns the typed changes.
func (p TaskPatch) Validate() (TaskChanges, error) {
	var changes TaskChanges

	if title, ok := p.Title.Get(); ok {
		if err := ValidateTitle(title); err != nil {
			return TaskChanges{}, err
		}
		changes.Title = Some(title)
	}

	if description, ok := p.Description.Get(); ok {
		if err := ValidateDescription(description); err != nil {
			return TaskChanges{}, err
		}
		changes.Description = Some(description)
	}

	if raw, ok := p.Status.Get(); ok {
		status, err := ParseTaskStatus(raw)
		if err != nil {
			return TaskChanges{}, err
		}
		changes.Status = Some(status)
	}

	return changes, nil
}

// Apply returns a copy of t with the changes applied.
func (c TaskChanges) Apply(t Task) Task {
	t.Title = c.Title.ValueOr(t.Title)
	t.Description = c.Description.ValueOr(t.Description)
	t.Status = c.Status.ValueOr(t.Status)
	return t
}
