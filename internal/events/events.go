// Package events implements the coordinator's optional lifecycle event
// bus: task and worker state changes, published for external
// observers (the admin dashboard's websocket feed, primarily) and
// otherwise inert.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TaskSubmitted  Type = "task.submitted"
	TaskDispatched Type = "task.dispatched"
	TaskCompleted  Type = "task.completed"
	TaskRequeued   Type = "task.requeued"
	TaskFailed     Type = "task.failed"

	WorkerRegistered Type = "worker.registered"
	WorkerSwept      Type = "worker.swept"
)

// Event is a single lifecycle occurrence.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// New builds an event stamped with the current time.
func New(t Type, data map[string]interface{}) *Event {
	return &Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// ToJSON serializes the event for the websocket feed or a pub/sub
// channel.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event, used by subscribers on the Redis
// side of Publisher.
func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher broadcasts lifecycle events. The supervisor builds one
// (a RedisPublisher or a NoopPublisher) and closes it on shutdown. The
// dispatcher, endpoint and registry do not hold one, and no code in
// this module calls Publish, so the Redis channels carry only events
// published by other processes.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// TaskData builds the Data map for a task lifecycle event.
func TaskData(taskID string, priority int, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{"task_id": taskID, "priority": priority}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// WorkerData builds the Data map for a worker lifecycle event.
func WorkerData(workerID, address string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{"worker_id": workerID, "address": address}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
