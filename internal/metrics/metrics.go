package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task metrics
	TasksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
	)

	TasksDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_tasks_dispatched_total",
			Help: "Total number of tasks dispatched to a worker",
		},
	)

	TasksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_tasks_completed_total",
			Help: "Total number of tasks marked completed",
		},
	)

	TasksFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_tasks_failed_total",
			Help: "Total number of tasks that exhausted their retry budget",
		},
	)

	TaskRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_task_retries_total",
			Help: "Total number of task requeues after a failed dispatch",
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coordinator_dispatch_duration_seconds",
			Help:    "Time from the dispatcher popping a task to its new_task send completing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_queue_depth",
			Help: "Current number of tasks waiting in the Ready Queue",
		},
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_active_workers",
			Help: "Current number of workers in the registry",
		},
	)

	WorkersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coordinator_workers_swept_total",
			Help: "Total number of workers evicted for a missed heartbeat",
		},
	)

	// Redis metrics (lifecycle event bus)
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// Admin API / WebSocket metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_http_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_websocket_connections",
			Help: "Current number of connected admin dashboard clients",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_websocket_messages_total",
			Help: "Total number of events broadcast to dashboard clients",
		},
		[]string{"type"},
	)
)

// RecordTaskSubmission records a task entering the store via submit_task.
func RecordTaskSubmission() {
	TasksSubmitted.Inc()
}

// RecordTaskDispatch records a successful new_task send and its latency
// from the dispatcher popping the task to the send completing.
func RecordTaskDispatch(duration float64) {
	TasksDispatched.Inc()
	DispatchDuration.Observe(duration)
}

// RecordTaskCompletion records a task_completed frame applied to the store.
func RecordTaskCompletion() {
	TasksCompleted.Inc()
}

// RecordTaskFailure records a task escalated to FAILED.
func RecordTaskFailure() {
	TasksFailed.Inc()
}

// RecordTaskRetry records a requeue after a failed dispatch.
func RecordTaskRetry() {
	TaskRetries.Inc()
}

// UpdateQueueDepth sets the Ready Queue depth gauge.
func UpdateQueueDepth(depth float64) {
	QueueDepth.Set(depth)
}

// SetActiveWorkers sets the registry size gauge.
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerSweep records a worker evicted by the liveness sweeper.
func RecordWorkerSweep() {
	WorkersSwept.Inc()
}

// RecordRedisOperation records a Redis operation's latency.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis operation failure.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an admin API request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
}

// SetWebSocketConnections sets the admin dashboard connection gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records an event broadcast to dashboard clients.
func RecordWebSocketMessage(eventType string) {
	WebSocketMessages.WithLabelValues(eventType).Inc()
}
