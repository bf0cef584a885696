package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// Session housekeeping
	TypePurgeSessions = "session:purge"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	// Sessions that expired before this instant are purged. Zero means the
	// time the task runs.
	Before time.Time `json:"before,omitempty"`
}

// NewPurgeSessionsTask creates a task that deletes expired visitor sessions
func NewPurgeSessionsTask(before time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		Before: before,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePurgeSessions, payload), nil
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
