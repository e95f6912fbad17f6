package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/phrazzld/taskboard/internal/api/shared"
	"github.com/phrazzld/taskboard/internal/domain"
)

// CreateTaskRequest defines the payload for creating a task. Pointers keep a
// missing field apart from an empty one: missing fields fail structural
// validation, empty ones fail business validation in the store.
type CreateTaskRequest struct {
	Title       *string `json:"title"       validate:"required"`
	Description *string `json:"description" validate:"required"`
	Status      *string `json:"status"      validate:"required"`
}

// UpdateTaskRequest is the payload of a partial update. Each member records
// whether the field was present in the body at all.
type UpdateTaskRequest struct {
	Patch domain.TaskPatch
}

// UnmarshalJSON implements json.Unmarshaler. A field set to null is rejected
// rather than treated as absent.
func (u *UpdateTaskRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		name   string
		target *domain.Optional[string]
	}{
		{"title", &u.Patch.Title},
		{"description", &u.Patch.Description},
		{"status", &u.Patch.Status},
	}

	for _, f := range fields {
		value, ok := raw[f.name]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return domain.NewValidationError(f.name, "cannot be null", domain.ErrNullField)
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return shared.NewRequestError(f.name, "must be of type string")
		}
		*f.target = domain.Some(s)
	}
	return nil
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskListResponse is one page of tasks plus the unpaged match count.
type TaskListResponse struct {
	Total int64          `json:"total"`
	Tasks []TaskResponse `json:"tasks"`
}

// DetailResponse carries a short confirmation message.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse reports liveness and the number of push subscribers.
type HealthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
}

// ConvertRecordRequest is one element of the /convert body. Every field must
// be present; empty strings are carried through.
type ConvertRecordRequest struct {
	ID          *int64  `json:"id"          validate:"required"`
	Title       *string `json:"title"       validate:"required"`
	Description *string `json:"description" validate:"required"`
	Status      *string `json:"status"      validate:"required"`
	CreatedAt   *string `json:"created_at"  validate:"required"`
}

func (r ConvertRecordRequest) toRecord() TaskRecord {
	return TaskRecord{
		ID:          *r.ID,
		Title:       *r.Title,
		Description: *r.Description,
		Status:      *r.Status,
		CreatedAt:   *r.CreatedAt,
	}
}

// TaskRecord is one row of the CSV conversion endpoint. Every field is
// carried through verbatim.
type TaskRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func taskToResponse(task domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status.String(),
		CreatedAt:   task.CreatedAt,
	}
}

func tasksToResponse(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskToResponse(task))
	}
	return out
}
