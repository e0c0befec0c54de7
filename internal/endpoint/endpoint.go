// Package endpoint implements the Message Endpoint (§4.5): a plain TCP
// acceptor that reads one JSON frame per connection and routes it by
// its type field into the store, queue, and registry.
package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/protocol"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/task"
)

// Store is the slice of internal/store.Store the endpoint needs,
// extracted so tests can substitute a fake in place of Postgres.
type Store interface {
	Insert(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id string) (*task.Task, error)
	Complete(ctx context.Context, id, workerID string) error
}

// Endpoint accepts connections on a listening socket and spawns one
// short-lived handler per connection, per §5's Acceptor activity.
type Endpoint struct {
	listener    net.Listener
	store       Store
	queue       *queue.Queue
	registry    *registry.Registry
	maxFrameLen int
	readTimeout time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New wraps an already-open listener. Callers obtain the listener
// (e.g. via net.Listen) so the supervisor can fail fast on bind
// errors before starting any other activity.
func New(ln net.Listener, st Store, q *queue.Queue, reg *registry.Registry, maxFrameLen int) *Endpoint {
	return &Endpoint{
		listener:    ln,
		store:       st,
		queue:       q,
		registry:    reg,
		maxFrameLen: maxFrameLen,
		readTimeout: 5 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the accept loop in a goroutine.
func (e *Endpoint) Start(ctx context.Context) {
	go e.acceptLoop(ctx)
}

// Stop closes the listener, unblocking any pending Accept, and waits
// for the accept loop to exit. In-flight handlers are not waited on:
// each is a single read + decode + apply and is expected to finish
// within readTimeout.
func (e *Endpoint) Stop() {
	close(e.stopCh)
	e.listener.Close()
	<-e.doneCh
}

func (e *Endpoint) acceptLoop(ctx context.Context) {
	defer close(e.doneCh)
	log := logger.WithComponent("endpoint")
	log.Info().Str("addr", e.listener.Addr().String()).Msg("accepting connections")

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-e.stopCh:
				return
			default:
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go e.handle(ctx, conn)
	}
}

// handle performs a single read, decode, and apply, then closes the
// connection. Parse failures, unknown types, and malformed ids are
// logged and dropped; they never take down the acceptor.
func (e *Endpoint) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logger.WithComponent("endpoint")

	conn.SetReadDeadline(time.Now().Add(e.readTimeout))

	buf := make([]byte, e.maxFrameLen)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("read failed, dropping connection")
		return
	}
	data := buf[:n]

	typ, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("frame decode failed, dropping connection")
		return
	}

	switch typ {
	case protocol.TypeSubmitTask:
		e.handleSubmitTask(ctx, data, log)
	case protocol.TypeTaskCompleted:
		e.handleTaskCompleted(ctx, data, log)
	case protocol.TypeHeartbeat:
		e.handleHeartbeat(data, conn, log)
	case protocol.TypeCheckStatus:
		e.handleCheckStatus(ctx, data, conn, log)
	default:
		log.Warn().Str("type", string(typ)).Msg("unknown frame type, dropping connection")
	}
}

func (e *Endpoint) handleSubmitTask(ctx context.Context, data []byte, log zerolog.Logger) {
	var p protocol.SubmitTaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("submit_task: malformed payload")
		return
	}

	t := task.New(p.Task.ID, p.Task.Name, p.Task.Data, p.Task.Priority)
	if err := e.store.Insert(ctx, t); err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("submit_task: insert failed")
		return
	}
	e.queue.Enqueue(t)
	metrics.RecordTaskSubmission()
	metrics.UpdateQueueDepth(float64(e.queue.Len()))
	log.Info().Str("task_id", t.ID).Int("priority", t.Priority).Msg("task submitted")
}

func (e *Endpoint) handleTaskCompleted(ctx context.Context, data []byte, log zerolog.Logger) {
	var p protocol.TaskCompletedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("task_completed: malformed payload")
		return
	}
	if p.TaskID == "" || p.WorkerID == "" {
		log.Warn().Msg("task_completed: missing task_id or worker_id")
		return
	}

	if err := e.store.Complete(ctx, p.TaskID, p.WorkerID); err != nil {
		log.Error().Err(err).Str("task_id", p.TaskID).Msg("task_completed: store update failed")
		return
	}
	e.registry.SetAvailable(p.WorkerID, true)
	metrics.RecordTaskCompletion()
	log.Info().Str("task_id", p.TaskID).Str("worker_id", p.WorkerID).Msg("task completed")
}

func (e *Endpoint) handleHeartbeat(data []byte, conn net.Conn, log zerolog.Logger) {
	var p protocol.HeartbeatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("heartbeat: malformed payload")
		return
	}
	if p.WorkerID == "" {
		log.Warn().Msg("heartbeat: missing worker_id")
		return
	}

	address := workerAddress(conn, p.ListenPort)
	e.registry.Touch(p.WorkerID, address)
}

func (e *Endpoint) handleCheckStatus(ctx context.Context, data []byte, conn net.Conn, log zerolog.Logger) {
	var p protocol.CheckStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("check_status: malformed payload")
		return
	}

	t, err := e.store.Get(ctx, p.TaskID)
	if err != nil {
		log.Warn().Err(err).Str("task_id", p.TaskID).Msg("check_status: task lookup failed")
		return
	}

	resp, err := protocol.Encode(protocol.CheckStatusResponse{Completed: t.Status == task.StatusCompleted})
	if err != nil {
		log.Error().Err(err).Msg("check_status: encode failed")
		return
	}
	if _, err := conn.Write(resp); err != nil {
		log.Warn().Err(err).Msg("check_status: write failed")
	}
}

// workerAddress derives the worker's listening address from its
// heartbeat's source IP and its self-reported listen_port, resolving
// §9's open question about learning a worker's inbound port.
func workerAddress(conn net.Conn, listenPort int) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil || listenPort == 0 {
		return conn.RemoteAddr().String()
	}
	return net.JoinHostPort(host, strconv.Itoa(listenPort))
}
