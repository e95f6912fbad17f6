package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/taskboard/internal/domain"
)

// EventType names the kind of change a TaskEvent describes.
type EventType string

// Event types.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ErrInvalidEvent is returned for an event whose payload does not match its type.
var ErrInvalidEvent = errors.New("invalid task event")

// TaskEvent is the message pushed to subscribers after a committed mutation.
// Created and updated events carry the full task; deleted events carry only
// the id.
type TaskEvent struct {
	Event  EventType    `json:"event"`
	Task   *domain.Task `json:"task,omitempty"`
	TaskID *int64       `json:"task_id,omitempty"`
}

// NewCreatedEvent describes a newly created task.
func NewCreatedEvent(task domain.Task) TaskEvent {
	return TaskEvent{Event: EventCreated, Task: &task}
}

// NewUpdatedEvent describes the new state of an updated task.
func NewUpdatedEvent(task domain.Task) TaskEvent {
	return TaskEvent{Event: EventUpdated, Task: &task}
}

// NewDeletedEvent describes a removed task.
func NewDeletedEvent(id int64) TaskEvent {
	return TaskEvent{Event: EventDeleted, TaskID: &id}
}

// Validate checks that the payload matches the event type.
func (e TaskEvent) Validate() error {
	switch e.Event {
	case EventCreated, EventUpdated:
		if e.Task == nil || e.TaskID != nil {
			return fmt.Errorf("%w: %s event must carry a task", ErrInvalidEvent, e.Event)
		}
	case EventDeleted:
		if e.TaskID == nil || e.Task != nil {
			return fmt.Errorf("%w: deleted event must carry a task_id", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.Event)
	}
	return nil
}

// Publisher delivers task events to interested subscribers. Delivery is best
// effort; a returned error means the event could not be handed off at all.
type Publisher interface {
	Publish(ctx context.Context, event TaskEvent) error
}

// Subscriber is one live push channel.
type Subscriber interface {
	// ID identifies the subscriber within a Registry.
	ID() string
	// Send delivers one encoded event. It must return once ctx is done.
	Send(ctx context.Context, payload []byte) error
	// Close releases the underlying connection. It may be called more than once.
	Close() error
}
