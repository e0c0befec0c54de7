package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	data := map[string]interface{}{"task_id": "task-123"}
	event := New(TaskSubmitted, data)

	assert.Equal(t, TaskSubmitted, event.Type)
	assert.Equal(t, data, event.Data)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestEvent_ToJSON(t *testing.T) {
	event := &Event{
		Type:      TaskCompleted,
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Data:      map[string]interface{}{"task_id": "task-456"},
	}

	data, err := event.ToJSON()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "task.completed", parsed["type"])
	assert.NotEmpty(t, parsed["timestamp"])
}

func TestFromJSON(t *testing.T) {
	raw := `{"type":"task.failed","timestamp":"2026-01-15T10:30:00Z","data":{"task_id":"task-789"}}`

	event, err := FromJSON([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, event.Type)
	assert.Equal(t, "task-789", event.Data["task_id"])
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestEvent_RoundTrip(t *testing.T) {
	original := New(WorkerRegistered, WorkerData("worker-1", "10.0.0.1:9000", nil))

	data, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, original.Type, restored.Type)
	assert.Equal(t, original.Data["worker_id"], restored.Data["worker_id"])
}

func TestTaskData(t *testing.T) {
	data := TaskData("task-1", 5, map[string]interface{}{"worker_id": "w1"})
	assert.Equal(t, "task-1", data["task_id"])
	assert.Equal(t, 5, data["priority"])
	assert.Equal(t, "w1", data["worker_id"])
}

func TestTaskData_NoExtra(t *testing.T) {
	data := TaskData("task-2", 1, nil)
	assert.Len(t, data, 2)
}

func TestWorkerData(t *testing.T) {
	data := WorkerData("w1", "10.0.0.1:9000", map[string]interface{}{"reason": "heartbeat_expired"})
	assert.Equal(t, "w1", data["worker_id"])
	assert.Equal(t, "10.0.0.1:9000", data["address"])
	assert.Equal(t, "heartbeat_expired", data["reason"])
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(nil, New(TaskSubmitted, nil)))
	require.NoError(t, p.Close())
}
