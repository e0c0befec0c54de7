// Package dispatcher implements the dispatch pump (§4.4): the single
// long-running activity matching ready tasks to available workers.
package dispatcher

import (
	"context"
	"net"
	"time"

	"github.com/taskmesh/coordinator/internal/errs"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/task"
)

// TaskStore is the slice of internal/store.Store the dispatcher
// needs, extracted so tests can substitute a fake in place of
// Postgres.
type TaskStore interface {
	Assign(ctx context.Context, id, workerID string, status task.Status) error
	Requeue(ctx context.Context, id string) error
	Fail(ctx context.Context, id string) error
}

// Sender delivers a new_task frame to a worker's address. Extracted
// as an interface so tests can substitute a fake transport instead of
// dialing real sockets.
type Sender interface {
	SendTask(ctx context.Context, address string, t *task.Task) error
}

// TCPSender dials a fresh TCP connection per send, matching §6's
// "plain TCP, single JSON object per connection" transport.
type TCPSender struct {
	DialTimeout time.Duration
}

// SendTask connects to address, writes a new_task frame, and closes
// the write side.
func (s TCPSender) SendTask(ctx context.Context, address string, t *task.Task) error {
	d := net.Dialer{Timeout: s.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return errs.Transport("dispatcher.SendTask: dial", err)
	}
	defer conn.Close()

	payload := protocol.NewTaskPayload{
		Type: protocol.TypeNewTask,
		Task: protocol.NewTaskTask{
			ID:       t.ID,
			Name:     t.Name,
			Data:     t.Data,
			Priority: t.Priority,
		},
	}
	data, err := protocol.Encode(payload)
	if err != nil {
		return err
	}

	if _, err := conn.Write(data); err != nil {
		return errs.Transport("dispatcher.SendTask: write", err)
	}
	return nil
}

// Dispatcher is the single consumer of the Ready Queue and the only
// caller of registry.NextAvailable.
type Dispatcher struct {
	store       TaskStore
	queue       *queue.Queue
	registry    *registry.Registry
	sender      Sender
	idleBackoff time.Duration
	maxRetries  int
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New builds a Dispatcher. idleBackoff is the sleep between empty
// polls (§4.4: 100ms); maxRetries bounds how many times a task may be
// requeued before it is escalated to FAILED (§9).
func New(st TaskStore, q *queue.Queue, reg *registry.Registry, sender Sender, idleBackoff time.Duration, maxRetries int) *Dispatcher {
	return &Dispatcher{
		store:       st,
		queue:       q,
		registry:    reg,
		sender:      sender,
		idleBackoff: idleBackoff,
		maxRetries:  maxRetries,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the dispatch loop in a goroutine. It runs until Stop
// is called.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop signals the loop to exit and waits for it to drain its current
// iteration.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)
	log := logger.WithComponent("dispatcher")

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !d.queue.NonEmpty() {
			d.sleep()
			continue
		}

		worker := d.registry.NextAvailable()
		if worker == nil {
			d.sleep()
			continue
		}

		t := d.queue.TryPop()
		if t == nil {
			// Race: another consumer (there shouldn't be one, but
			// NonEmpty is advisory) drained it first.
			continue
		}
		readyAt := time.Now()
		metrics.UpdateQueueDepth(float64(d.queue.Len()))

		if err := d.store.Assign(ctx, t.ID, worker.ID, task.StatusInProgress); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("assign failed, leaving task for next iteration")
			d.queue.Enqueue(t)
			continue
		}
		sm := task.NewStateMachine(t)
		if err := sm.Assign(worker.ID); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("local IN_PROGRESS transition rejected")
		}
		d.registry.SetAvailable(worker.ID, false)

		if err := d.sender.SendTask(ctx, worker.Address, t); err != nil {
			logger.WithDispatch(t.ID, worker.ID).Warn().Err(err).Msg("send failed, evicting worker")
			d.registry.Remove(worker.ID)
			d.requeueOrFail(ctx, t)
			continue
		}

		metrics.RecordTaskDispatch(time.Since(readyAt).Seconds())
		metrics.SetActiveWorkers(float64(d.registry.Len()))
		logger.WithDispatch(t.ID, worker.ID).Info().Msg("task dispatched")
	}
}

// requeueOrFail re-enqueues t after a failed send, or escalates it to
// terminal FAILED once max_retries consecutive dispatches have
// failed.
func (d *Dispatcher) requeueOrFail(ctx context.Context, t *task.Task) {
	log := logger.WithComponent("dispatcher")
	sm := task.NewStateMachine(t)

	if t.RetryCount+1 >= d.maxRetries {
		if err := d.store.Fail(ctx, t.ID); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("failed to mark task FAILED")
			return
		}
		if err := sm.Fail(); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("local FAILED transition rejected")
		}
		metrics.RecordTaskFailure()
		log.Warn().Str("task_id", t.ID).Msg("task exhausted retry budget, marked FAILED")
		return
	}

	if err := d.store.Requeue(ctx, t.ID); err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("failed to requeue task")
		return
	}
	if err := sm.Requeue(); err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("local PENDING transition rejected")
		return
	}
	metrics.RecordTaskRetry()
	d.queue.Enqueue(t)
	metrics.UpdateQueueDepth(float64(d.queue.Len()))
}

func (d *Dispatcher) sleep() {
	select {
	case <-time.After(d.idleBackoff):
	case <-d.stopCh:
	}
}
