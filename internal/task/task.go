package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task represents a unit of work accepted by the coordinator.
//
// Status transitions PENDING -> IN_PROGRESS -> COMPLETED (or, once the
// retry budget is exhausted, PENDING -> IN_PROGRESS -> FAILED).
// CompletedAt is non-nil iff Status is COMPLETED; AssignedWorker is
// empty iff Status is PENDING or FAILED.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Data           string     `json:"data"`
	Priority       int        `json:"priority"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	AssignedWorker string     `json:"assigned_worker,omitempty"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
}

// DefaultPriority is assigned when a submitter omits a priority.
const DefaultPriority = 1

// DefaultMaxRetries is the retry budget given to every new task.
const DefaultMaxRetries = 3

// New creates a task in PENDING state with the default retry budget.
// An empty id generates a fresh UUID; a zero priority falls back to
// DefaultPriority.
func New(id, name, data string, priority int) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	if priority == 0 {
		priority = DefaultPriority
	}
	now := time.Now().UTC()
	return &Task{
		ID:         id,
		Name:       name,
		Data:       data,
		Priority:   priority,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
}

// CanRetry reports whether the task still has dispatch attempts left.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// ToJSON serializes the task.
func (t *Task) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// FromJSON deserializes a task.
func FromJSON(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
