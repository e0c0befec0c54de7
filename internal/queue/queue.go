// Package queue implements the Ready Queue (§4.2): an in-memory
// priority queue of tasks awaiting dispatch. It is primed from the
// store's ListPending at startup and is safe for multiple producers
// with a single consumer.
package queue

import (
	"container/heap"
	"sync"

	"github.com/taskmesh/coordinator/internal/task"
)

// Queue is a thread-safe priority queue ordered by priority DESC,
// created_at ASC, id byte order (all tie-broken in heapItems.Less).
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items heapItems
}

// New returns an empty Ready Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Prime seeds the queue with tasks already PENDING in the store (the
// order store.ListPending returns them in is preserved as the heap's
// initial ordering, then re-heapified).
func (q *Queue) Prime(tasks []*task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make(heapItems, len(tasks))
	copy(q.items, tasks)
	heap.Init(&q.items)
}

// Enqueue adds a task, O(log n), and wakes one blocked consumer.
func (q *Queue) Enqueue(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, t)
	q.cond.Signal()
}

// Pop blocks until a task is available, then removes and returns the
// highest-priority one.
func (q *Queue) Pop() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	return heap.Pop(&q.items).(*task.Task)
}

// TryPop is the non-blocking variant: returns nil if the queue is
// empty.
func (q *Queue) TryPop() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*task.Task)
}

// NonEmpty is an advisory snapshot predicate; callers must retry on
// race (another consumer may drain the queue between this call and a
// subsequent Pop/TryPop).
func (q *Queue) NonEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}

// Len reports the current queue depth, used by internal/metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// heapItems implements container/heap.Interface over *task.Task,
// ordered priority DESC, created_at ASC, id byte order.
type heapItems []*task.Task

func (h heapItems) Len() int { return len(h) }

func (h heapItems) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (h heapItems) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapItems) Push(x any) {
	*h = append(*h, x.(*task.Task))
}

func (h *heapItems) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
