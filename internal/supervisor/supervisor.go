// Package supervisor wires the coordinator's activities together and
// governs their lifecycle (§4.6): the Task Store, Ready Queue, Worker
// Registry, Dispatcher, Message Endpoint, liveness sweeper, optional
// event bus, and admin API. Shutdown stops the endpoint first, then
// the dispatcher, the sweeper and the admin API, and closes the store
// last.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskmesh/coordinator/internal/adminapi"
	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/endpoint"
	"github.com/taskmesh/coordinator/internal/events"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/store"
)

// Supervisor owns every long-lived activity's lifecycle.
type Supervisor struct {
	cfg *config.Config

	store    *store.Store
	queue    *queue.Queue
	registry *registry.Registry
	dispatch *dispatcher.Dispatcher
	endpoint *endpoint.Endpoint
	admin    *adminapi.Server
	pub      events.Publisher

	listener net.Listener

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New opens the store, primes the Ready Queue from pending tasks, and
// wires every activity. It returns before anything starts accepting
// traffic; call Run to begin serving.
func New(ctx context.Context, cfg *config.Config) (*Supervisor, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open store: %w", err)
	}

	if cfg.Store.SeedSamples {
		if err := st.SeedSamples(ctx); err != nil {
			logger.WithComponent("supervisor").Warn().Err(err).Msg("failed to seed sample tasks")
		}
	}

	q := queue.New()
	pending, err := st.ListPending(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("supervisor: list pending tasks: %w", err)
	}
	q.Prime(pending)

	reg := registry.New(cfg.Registry.HeartbeatTimeout)

	sender := dispatcher.TCPSender{DialTimeout: 5 * time.Second}
	d := dispatcher.New(st, q, reg, sender, cfg.Dispatcher.IdleBackoff, cfg.Dispatcher.MaxRetries)

	addr := net.JoinHostPort(cfg.Coordinator.Host, strconv.Itoa(cfg.Coordinator.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("supervisor: listen %s: %w", addr, err)
	}
	ep := endpoint.New(ln, st, q, reg, cfg.Coordinator.MaxFrameLen)

	var pub events.Publisher = events.NoopPublisher{}
	var source adminapi.EventSource
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		rp := events.NewRedisPublisher(redisClient)
		pub = rp
		source = rp
	}

	var admin *adminapi.Server
	if cfg.AdminAPI.Enabled {
		admin = adminapi.New(cfg.AdminAPI, cfg.Auth, st, q, reg, source)
	}

	return &Supervisor{
		cfg:       cfg,
		store:     st,
		queue:     q,
		registry:  reg,
		dispatch:  d,
		endpoint:  ep,
		admin:     admin,
		pub:       pub,
		listener:  ln,
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}, nil
}

// Run starts every activity and blocks until ctx is cancelled, then
// calls Shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	log := logger.WithComponent("supervisor")

	s.endpoint.Start(ctx)
	s.dispatch.Start(ctx)
	if s.admin != nil {
		s.admin.Start(ctx)
	}
	go s.sweepLoop(ctx)

	log.Info().
		Str("coordinator_addr", s.listener.Addr().String()).
		Msg("coordinator running")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	s.Shutdown()
	return nil
}

// Shutdown stops the endpoint (no new frames are accepted), then the
// dispatcher, the sweeper and the admin API, and finally releases the
// Redis and store connections.
func (s *Supervisor) Shutdown() {
	log := logger.WithComponent("supervisor")

	s.endpoint.Stop()
	s.dispatch.Stop()

	close(s.sweepStop)
	<-s.sweepDone

	if s.admin != nil {
		s.admin.Stop()
	}

	if err := s.pub.Close(); err != nil {
		log.Warn().Err(err).Msg("event publisher close error")
	}

	s.store.Close()
	log.Info().Msg("coordinator stopped")
}

// Addr returns the coordinator's bound TCP address, useful when the
// configured port is 0 and the OS assigns one.
func (s *Supervisor) Addr() string {
	return s.listener.Addr().String()
}

func (s *Supervisor) sweepLoop(ctx context.Context) {
	defer close(s.sweepDone)

	interval := s.cfg.Registry.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.registry.Sweep(ctx, s.store, s.queue)
		}
	}
}
