// Command worker is the reference worker process for the coordinator
// protocol (§6): it connects out to heartbeat and receive dispatched
// tasks on its own listening socket, processes them with one of a
// small set of example handlers, and reports completion.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/protocol"
)

const heartbeatInterval = 10 * time.Second

// handler processes a dispatched task's data and returns a result
// summary for logging. An error marks the task failed for logging
// purposes only: the wire protocol has no failure report, so a failed
// handler still sends task_completed (matching §9's decision that a
// worker crash, not a handler error, is how the coordinator learns of
// failure via heartbeat timeout).
type handler func(ctx context.Context, data string) (string, error)

var handlers = map[string]handler{
	"echo":    echoHandler,
	"sleep":   sleepHandler,
	"compute": computeHandler,
	"fail":    failHandler,
}

func main() {
	coordinatorAddr := flag.String("coordinator", "localhost:8080", "coordinator TCP address")
	listenAddr := flag.String("listen", "0.0.0.0:0", "address this worker listens on for dispatched tasks")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Init(*logLevel, os.Getenv("ENV") != "production")
	log := logger.WithComponent("worker")

	w := &worker{
		id:              uuid.New().String(),
		coordinatorAddr: *coordinatorAddr,
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind listener")
	}
	w.listenPort = ln.Addr().(*net.TCPAddr).Port

	log.Info().
		Str("worker_id", w.id).
		Str("coordinator", w.coordinatorAddr).
		Int("listen_port", w.listenPort).
		Msg("worker starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.heartbeatLoop(ctx)
	go w.acceptLoop(ctx, ln)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	ln.Close()
}

// worker tracks this process's identity and a simulated load figure,
// reported in every heartbeat the way the original worker node does.
type worker struct {
	id              string
	coordinatorAddr string
	listenPort      int

	mu   sync.Mutex
	load float64
}

func (w *worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	w.sendHeartbeat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sendHeartbeat()
		}
	}
}

func (w *worker) sendHeartbeat() {
	log := logger.WithComponent("worker")

	w.updateLoad()

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", w.coordinatorAddr)
	if err != nil {
		log.Error().Err(err).Msg("failed to send heartbeat")
		return
	}
	defer conn.Close()

	payload := protocol.HeartbeatPayload{
		Type:       protocol.TypeHeartbeat,
		WorkerID:   w.id,
		Load:       w.currentLoad(),
		ListenPort: w.listenPort,
	}
	data, err := protocol.Encode(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode heartbeat")
		return
	}
	if _, err := conn.Write(data); err != nil {
		log.Error().Err(err).Msg("failed to write heartbeat")
		return
	}

	log.Info().Float64("load", payload.Load).Int("listen_port", w.listenPort).Msg("heartbeat sent")
}

func (w *worker) acceptLoop(ctx context.Context, ln net.Listener) {
	log := logger.WithComponent("worker")
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go w.handleConn(ctx, conn)
	}
}

func (w *worker) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := logger.WithComponent("worker")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, protocol.MaxFrameLen)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return
	}
	data := buf[:n]

	typ, err := protocol.Decode(data)
	if err != nil || typ != protocol.TypeNewTask {
		log.Warn().Msg("dropping non new_task frame")
		return
	}

	var payload protocol.NewTaskPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("malformed new_task payload")
		return
	}

	w.processTask(ctx, payload.Task)
}

func (w *worker) processTask(ctx context.Context, t protocol.NewTaskTask) {
	log := logger.WithComponent("worker")
	log.Info().Str("task_id", t.ID).Str("name", t.Name).Int("priority", t.Priority).Msg("processing task")

	h, ok := handlers[t.Name]
	if !ok {
		h = echoHandler
	}

	w.updateLoad()
	result, err := h(ctx, t.Data)
	if err != nil {
		log.Warn().Err(err).Str("task_id", t.ID).Msg("handler reported failure")
	} else {
		log.Info().Str("task_id", t.ID).Str("result", result).Msg("task processed")
	}

	w.reportCompletion(t.ID)
}

func (w *worker) reportCompletion(taskID string) {
	log := logger.WithComponent("worker")
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", w.coordinatorAddr)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("failed to report completion")
		return
	}
	defer conn.Close()

	payload := protocol.TaskCompletedPayload{
		Type:     protocol.TypeTaskCompleted,
		TaskID:   taskID,
		WorkerID: w.id,
	}
	data, err := protocol.Encode(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode task_completed")
		return
	}
	if _, err := conn.Write(data); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("failed to send task_completed")
	}
}

// updateLoad simulates load with a bounded random walk, matching the
// original worker node's dashboard figure.
func (w *worker) updateLoad() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.load += (rand.Float64() - 0.5) * 0.2
	if w.load < 0 {
		w.load = 0
	}
	if w.load > 1 {
		w.load = 1
	}
}

func (w *worker) currentLoad() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load
}

func echoHandler(ctx context.Context, data string) (string, error) {
	return data, nil
}

func sleepHandler(ctx context.Context, data string) (string, error) {
	select {
	case <-time.After(2 * time.Second):
		return "slept", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func computeHandler(ctx context.Context, data string) (string, error) {
	sum := 0
	for i := 0; i < 1_000_000; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			sum += i
		}
	}
	return strconv.Itoa(sum), nil
}

func failHandler(ctx context.Context, data string) (string, error) {
	return "", fmt.Errorf("intentional failure")
}
