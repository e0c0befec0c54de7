// Package adminapi implements the coordinator's ambient observability
// surface: health, Prometheus metrics, a read/submit view over tasks
// and workers, and a websocket feed of lifecycle events for a
// dashboard. It runs on its own port, separate from the TCP message
// endpoint, and never participates in task dispatch.
package adminapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/events"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/metrics"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/task"
)

// Store is the slice of internal/store.Store the admin API reads and
// writes, narrowed so tests can substitute a fake.
type Store interface {
	Insert(ctx context.Context, t *task.Task) error
	Get(ctx context.Context, id string) (*task.Task, error)
	ListPending(ctx context.Context) ([]*task.Task, error)
	ListCompleted(ctx context.Context, limit int) ([]*task.Task, error)
}

// Registry is the slice of internal/registry.Registry the admin API
// reads from.
type Registry interface {
	List() []*registry.Worker
}

// EventSource optionally streams lifecycle events for the dashboard's
// websocket feed. A coordinator running without Redis has none, and
// then the /ws route is not registered.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan *events.Event, error)
}

// Server hosts the admin HTTP surface.
type Server struct {
	router   *chi.Mux
	store    Store
	queue    *queue.Queue
	registry Registry
	hub      *hub

	httpServer *http.Server
	cfg        config.AdminAPIConfig
	authCfg    config.AuthConfig
}

// New builds the router and, if source is non-nil, the dashboard hub
// subscribed to it. source is nil when no event bus is configured.
func New(cfg config.AdminAPIConfig, authCfg config.AuthConfig, st Store, q *queue.Queue, reg Registry, source EventSource) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		queue:    q,
		registry: reg,
		cfg:      cfg,
	}

	if source != nil {
		ch, err := source.Subscribe(context.Background())
		if err != nil {
			logger.WithComponent("adminapi").Error().Err(err).Msg("failed to subscribe to event bus, dashboard feed disabled")
		} else {
			s.hub = newHub(ch)
		}
	}

	s.setupMiddleware(authCfg)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) setupMiddleware(authCfg config.AuthConfig) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/healthz"))
	s.router.Use(recordRequestMetrics)
	s.authCfg = authCfg
}

// recordRequestMetrics wraps the response writer the way chi's own
// middleware.Logger does, to capture the status code after the
// handler runs, and reports it to coordinator_http_request_duration_seconds.
func recordRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.RecordHTTPRequest(r.Method, routePattern(r), strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}

// routePattern prefers chi's matched route pattern over the raw path
// so the path label set stays bounded (no per-task-id cardinality).
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.healthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth(s.authCfg))
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.submitTask)
			r.Get("/{taskID}", s.getTask)
		})
		r.Get("/workers", s.listWorkers)
	})

	if s.hub != nil {
		s.router.Get("/ws", s.hub.serveWS)
	}
}

// Start runs the dashboard hub (if configured) and the HTTP listener.
// The listener runs in its own goroutine and Start returns without
// waiting for it to bind; Stop performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) {
	if s.hub != nil {
		s.hub.run(ctx)
	}

	go func() {
		log := logger.WithComponent("adminapi")
		log.Info().Str("addr", s.httpServer.Addr).Msg("admin API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin API server error")
		}
	}()
}

// Stop gracefully shuts down the HTTP server and the dashboard hub.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.WithComponent("adminapi").Warn().Err(err).Msg("admin API shutdown error")
	}
	if s.hub != nil {
		s.hub.stop()
	}
}
