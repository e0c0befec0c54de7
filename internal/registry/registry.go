// Package registry implements the Worker Registry (§4.3): the
// coordinator's in-memory view of connected workers, their
// availability, and liveness.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/store"
	"github.com/taskmesh/coordinator/internal/task"
)

// Worker is a single registered worker and its liveness bookkeeping.
type Worker struct {
	ID            string
	Address       string
	Available     bool
	LastHeartbeat time.Time
}

// Alive reports whether the worker has heartbeated within timeout.
func (w *Worker) Alive(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastHeartbeat) < timeout
}

// Registry holds every known worker, guarded by a single mutex, with
// a round-robin cursor over the slice for next_available selection.
type Registry struct {
	mu               sync.Mutex
	workers          []*Worker
	byID             map[string]int
	byAddress        map[string]int
	cursor           int
	heartbeatTimeout time.Duration
}

// New returns an empty registry.
func New(heartbeatTimeout time.Duration) *Registry {
	return &Registry{
		byID:             make(map[string]int),
		byAddress:        make(map[string]int),
		heartbeatTimeout: heartbeatTimeout,
	}
}

// Register adds a worker (or idempotently re-adds by address),
// returning its worker_id. A re-registration at an already-known
// address refreshes its heartbeat and marks it available rather than
// creating a duplicate entry.
func (r *Registry) Register(address string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byAddress[address]; ok {
		w := r.workers[idx]
		w.LastHeartbeat = time.Now().UTC()
		w.Available = true
		return w.ID
	}

	w := &Worker{
		ID:            uuid.New().String(),
		Address:       address,
		Available:     true,
		LastHeartbeat: time.Now().UTC(),
	}
	r.workers = append(r.workers, w)
	idx := len(r.workers) - 1
	r.byID[w.ID] = idx
	r.byAddress[address] = idx
	return w.ID
}

// Remove drops a worker from the registry.
func (r *Registry) Remove(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(workerID)
}

func (r *Registry) removeLocked(workerID string) {
	idx, ok := r.byID[workerID]
	if !ok {
		return
	}
	w := r.workers[idx]
	r.workers = append(r.workers[:idx], r.workers[idx+1:]...)
	delete(r.byID, workerID)
	delete(r.byAddress, w.Address)

	for id, i := range r.byID {
		if i > idx {
			r.byID[id] = i - 1
		}
	}
	for addr, i := range r.byAddress {
		if i > idx {
			r.byAddress[addr] = i - 1
		}
	}
	if r.cursor > 0 {
		r.cursor--
	}
}

// Touch refreshes last_heartbeat for workerID. If the worker is
// unknown, it is registered at address with available=true, matching
// §4.5's heartbeat handling.
func (r *Registry) Touch(workerID, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byID[workerID]; ok {
		r.workers[idx].LastHeartbeat = time.Now().UTC()
		return
	}

	w := &Worker{
		ID:            workerID,
		Address:       address,
		Available:     true,
		LastHeartbeat: time.Now().UTC(),
	}
	r.workers = append(r.workers, w)
	idx := len(r.workers) - 1
	r.byID[w.ID] = idx
	r.byAddress[address] = idx
}

// SetAvailable marks a worker available or busy.
func (r *Registry) SetAvailable(workerID string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.byID[workerID]; ok {
		r.workers[idx].Available = available
	}
}

// NextAvailable returns a worker that is both available and alive,
// chosen by round-robin over up to len(workers) slots starting after
// the cursor. Returns nil if none qualify.
func (r *Registry) NextAvailable() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.workers)
	if n == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		r.cursor = (r.cursor + 1) % n
		w := r.workers[r.cursor]
		if w.Available && w.Alive(now, r.heartbeatTimeout) {
			return w
		}
	}
	return nil
}

// snapshot returns a copy of the current worker list for iteration
// outside the lock (used by Sweep, which must call back into the
// store without holding the registry mutex).
func (r *Registry) snapshot() []*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Worker, len(r.workers))
	copy(out, r.workers)
	return out
}

// Sweep evicts workers not alive for 2x heartbeat timeout. Any task
// still assigned to an evicted worker is reset to PENDING in the
// store (assigned_worker cleared) and re-enqueued.
func (r *Registry) Sweep(ctx context.Context, st *store.Store, q *queue.Queue) {
	log := logger.WithComponent("registry")
	now := time.Now().UTC()
	deadTimeout := 2 * r.heartbeatTimeout

	for _, w := range r.snapshot() {
		if w.Alive(now, deadTimeout) {
			continue
		}

		log.Warn().Str("worker_id", w.ID).Str("address", w.Address).Msg("worker swept: heartbeat expired")
		r.Remove(w.ID)
		metrics.RecordWorkerSweep()
		metrics.SetActiveWorkers(float64(r.Len()))

		orphaned, err := st.ListInProgressByWorker(ctx, w.ID)
		if err != nil {
			log.Error().Err(err).Str("worker_id", w.ID).Msg("sweep: failed to list in-progress tasks")
			continue
		}

		for _, t := range orphaned {
			if err := st.Requeue(ctx, t.ID); err != nil {
				log.Error().Err(err).Str("task_id", t.ID).Msg("sweep: failed to requeue orphaned task")
				continue
			}
			if err := task.NewStateMachine(t).Requeue(); err != nil {
				log.Error().Err(err).Str("task_id", t.ID).Msg("sweep: local PENDING transition rejected")
				continue
			}
			q.Enqueue(t)
			metrics.UpdateQueueDepth(float64(q.Len()))
			log.Info().Str("task_id", t.ID).Str("worker_id", w.ID).Msg("orphaned task requeued")
		}
	}
}

// List returns a snapshot of every registered worker, used by
// internal/adminapi to render the worker listing.
func (r *Registry) List() []*Worker {
	return r.snapshot()
}

// Len reports the current worker count, used by internal/metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
