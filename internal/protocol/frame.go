// Package protocol defines the coordinator's wire frames (§6): a
// single JSON object per connection, decoded by its type field.
package protocol

import (
	"encoding/json"

	"github.com/taskmesh/coordinator/internal/errs"
)

// MaxFrameLen is the hard cap on a single frame read, per §6.
const MaxFrameLen = 4096

// Type identifies a frame's message kind.
type Type string

const (
	TypeSubmitTask    Type = "submit_task"
	TypeNewTask       Type = "new_task"
	TypeTaskCompleted Type = "task_completed"
	TypeHeartbeat     Type = "heartbeat"
	TypeCheckStatus   Type = "check_status"
)

// Envelope is the outer shape of every frame: only type is required
// to route it; the rest is re-decoded into a typed payload by the
// caller. Unknown fields are ignored by encoding/json's default
// behavior.
type Envelope struct {
	Type Type `json:"type"`
}

// SubmitTaskPayload is a client's request to accept a new task.
type SubmitTaskPayload struct {
	Type Type           `json:"type"`
	Task SubmitTaskTask `json:"task"`
}

// SubmitTaskTask carries the submitter-supplied fields of a task. ID
// and Priority are optional: ID generates a fresh UUID when empty,
// Priority defaults to 1 when zero.
type SubmitTaskTask struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Data     string `json:"data"`
	Priority int    `json:"priority"`
}

// NewTaskPayload is the coordinator's dispatch frame, sent to a
// worker's address.
type NewTaskPayload struct {
	Type Type        `json:"type"`
	Task NewTaskTask `json:"task"`
}

// NewTaskTask is fully resolved: id, name, data, priority all set.
type NewTaskTask struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Data     string `json:"data"`
	Priority int    `json:"priority"`
}

// TaskCompletedPayload is sent by a worker on completion.
type TaskCompletedPayload struct {
	Type     Type   `json:"type"`
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
}

// HeartbeatPayload is sent periodically by a worker. ListenPort
// resolves the open design question in §9: the coordinator cannot
// learn a worker's listening port from the source socket of an
// inbound heartbeat connection, so the worker reports it explicitly.
type HeartbeatPayload struct {
	Type       Type    `json:"type"`
	WorkerID   string  `json:"worker_id"`
	Load       float64 `json:"load"`
	ListenPort int     `json:"listen_port"`
}

// CheckStatusPayload is an optional client query for task completion.
type CheckStatusPayload struct {
	Type   Type   `json:"type"`
	TaskID string `json:"task_id"`
}

// CheckStatusResponse answers a CheckStatusPayload.
type CheckStatusResponse struct {
	Completed bool `json:"completed"`
}

// Decode parses a raw frame's envelope to learn its type. Callers
// then json.Unmarshal the same bytes into the typed payload for that
// type.
func Decode(data []byte) (Type, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", errs.Protocol("protocol.Decode", err)
	}
	if env.Type == "" {
		return "", errs.Protocol("protocol.Decode", errMissingType)
	}
	return env.Type, nil
}

var errMissingType = jsonFieldError("missing required field: type")

type jsonFieldError string

func (e jsonFieldError) Error() string { return string(e) }

// Encode serializes any payload to its wire bytes.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Protocol("protocol.Encode", err)
	}
	return data, nil
}
