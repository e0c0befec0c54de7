package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	task := New("", "process-order", `{"order_id":42}`, 5)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "process-order", task.Name)
	assert.Equal(t, `{"order_id":42}`, task.Data)
	assert.Equal(t, 5, task.Priority)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 0, task.RetryCount)
	assert.Equal(t, DefaultMaxRetries, task.MaxRetries)
	assert.False(t, task.CreatedAt.IsZero())
	assert.False(t, task.UpdatedAt.IsZero())
	assert.Nil(t, task.CompletedAt)
	assert.Empty(t, task.AssignedWorker)
}

func TestNew_DefaultsPriorityAndID(t *testing.T) {
	task := New("", "noop", "", 0)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, DefaultPriority, task.Priority)
}

func TestNew_PreservesGivenID(t *testing.T) {
	task := New("fixed-id", "noop", "", 1)
	assert.Equal(t, "fixed-id", task.ID)
}

func TestTask_CanRetry(t *testing.T) {
	task := New("", "test", "", 1)
	task.MaxRetries = 3

	task.RetryCount = 0
	assert.True(t, task.CanRetry())

	task.RetryCount = 2
	assert.True(t, task.CanRetry())

	task.RetryCount = 3
	assert.False(t, task.CanRetry())

	task.RetryCount = 5
	assert.False(t, task.CanRetry())
}

func TestTask_ToJSON_FromJSON(t *testing.T) {
	original := New("", "test", "payload", 2)

	data, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Name, restored.Name)
	assert.Equal(t, original.Priority, restored.Priority)
	assert.Equal(t, original.Status, restored.Status)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestTask_JSONMarshal_Unmarshal(t *testing.T) {
	task := New("test-id", "email", `{"to":"a@b.com"}`, 7)

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var restored Task
	err = json.Unmarshal(data, &restored)
	require.NoError(t, err)

	assert.Equal(t, task.ID, restored.ID)
	assert.Equal(t, task.Name, restored.Name)
	assert.Equal(t, task.Priority, restored.Priority)
	assert.Equal(t, task.Status, restored.Status)
}

func TestTask_JSON_OmitsEmptyAssignedWorker(t *testing.T) {
	task := New("", "test", "", 1)

	data, err := task.ToJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "assigned_worker")
}
