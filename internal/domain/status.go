package domain

import (
	"fmt"
	"strings"
)

// TaskStatus is the workflow state of a task. It is a closed set: the only
// values that can exist are the three constants below, and the zero value is
// deliberately invalid so an unset status is never persisted.
type TaskStatus uint8

// Canonical task statuses.
const (
	TaskStatusToDo TaskStatus = iota + 1
	TaskStatusInProgress
	TaskStatusDone
)

var taskStatusNames = map[TaskStatus]string{
	TaskStatusToDo:       "To Do",
	TaskStatusInProgress: "In Progress",
	TaskStatusDone:       "Done",
}

// TaskStatuses returns the canonical statuses in workflow order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskStatusToDo, TaskStatusInProgress, TaskStatusDone}
}

// ParseTaskStatus maps a wire string to its TaskStatus.
// Matching is exact; any other string yields ErrInvalidTaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	statuses := TaskStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		if status.String() == s {
			return status, nil
		}
		names = append(names, fmt.Sprintf("%q", status.String()))
	}
	return 0, NewValidationError(
		"status",
		"must be one of "+strings.Join(names, ", "),
		ErrInvalidTaskStatus,
	)
}

// IsValid reports whether s is one of the canonical statuses.
func (s TaskStatus) IsValid() bool {
	_, ok := taskStatusNames[s]
	return ok
}

// String returns the wire form of the status.
func (s TaskStatus) String() string {
	if name, ok := taskStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TaskStatus(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, ErrInvalidTaskStatus
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TaskStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
