package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/coordinator/internal/task"
)

func mkTask(id string, priority int, createdAt time.Time) *task.Task {
	t := task.New(id, "t", "", priority)
	t.CreatedAt = createdAt
	return t
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := New()
	now := time.Now().UTC()

	q.Enqueue(mkTask("a", 1, now))
	q.Enqueue(mkTask("b", 5, now))
	q.Enqueue(mkTask("c", 3, now))

	first := q.Pop()
	second := q.Pop()
	third := q.Pop()

	assert.Equal(t, "b", first.ID)
	assert.Equal(t, "c", second.ID)
	assert.Equal(t, "a", third.ID)
}

func TestQueue_TieBreakByCreatedAt(t *testing.T) {
	q := New()
	now := time.Now().UTC()

	q.Enqueue(mkTask("later", 1, now.Add(time.Second)))
	q.Enqueue(mkTask("earlier", 1, now))

	first := q.Pop()
	assert.Equal(t, "earlier", first.ID)
}

func TestQueue_TieBreakByID(t *testing.T) {
	q := New()
	now := time.Now().UTC()

	q.Enqueue(mkTask("zzz", 1, now))
	q.Enqueue(mkTask("aaa", 1, now))

	first := q.Pop()
	assert.Equal(t, "aaa", first.ID)
}

func TestQueue_TryPop_EmptyReturnsNil(t *testing.T) {
	q := New()
	assert.Nil(t, q.TryPop())
}

func TestQueue_NonEmpty(t *testing.T) {
	q := New()
	assert.False(t, q.NonEmpty())

	q.Enqueue(mkTask("a", 1, time.Now().UTC()))
	assert.True(t, q.NonEmpty())

	q.TryPop()
	assert.False(t, q.NonEmpty())
}

func TestQueue_Prime(t *testing.T) {
	now := time.Now().UTC()
	q := New()
	q.Prime([]*task.Task{
		mkTask("low", 1, now),
		mkTask("high", 9, now),
	})

	assert.Equal(t, 2, q.Len())
	first := q.Pop()
	assert.Equal(t, "high", first.ID)
}

func TestQueue_Pop_BlocksUntilEnqueue(t *testing.T) {
	q := New()
	done := make(chan *task.Task, 1)

	go func() {
		done <- q.Pop()
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any task was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(mkTask("late", 1, time.Now().UTC()))

	select {
	case got := <-done:
		require.NotNil(t, got)
		assert.Equal(t, "late", got.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after enqueue")
	}
}
