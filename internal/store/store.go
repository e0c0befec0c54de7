// Package store implements the Task Store (§4.1): the coordinator's
// durable record of every task, backed by Postgres via pgxpool.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/errs"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/task"
)

// Store is a connection-pooled, Postgres-backed Task Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres (pool bounded by cfg.MinConns/MaxConns),
// verifies the connection, and ensures the tasks table exists. It
// fails loudly on any connection error, matching the original's
// "fail loudly on connection error" contract.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Storage("store.Open: parse dsn", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, errs.Storage("store.Open: connect", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errs.Storage("store.Open: ping", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(connectCtx, cfg.DestructiveInit); err != nil {
		pool.Close()
		return nil, err
	}

	logger.WithComponent("store").Info().Msg("database connected")
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context, destructive bool) error {
	log := logger.WithComponent("store")

	if destructive {
		if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS tasks`); err != nil {
			return errs.Storage("store.ensureSchema: drop", err)
		}
		log.Warn().Msg("destructive init: tasks table dropped")
	}

	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			data TEXT,
			priority INTEGER NOT NULL DEFAULT 1,
			status VARCHAR(50) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ,
			assigned_worker UUID,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3
		)
	`)
	if err != nil {
		return errs.Storage("store.ensureSchema: create", err)
	}

	log.Info().Msg("tasks table ready")
	return nil
}

// Insert persists a new task with status PENDING, retry_count 0.
func (s *Store) Insert(ctx context.Context, t *task.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, name, data, priority, status, created_at, updated_at, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.Name, t.Data, t.Priority, t.Status, t.CreatedAt, t.UpdatedAt, t.RetryCount, t.MaxRetries)
	if err != nil {
		return errs.Storage("store.Insert", err)
	}
	return nil
}

// Get looks up a task by id.
func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, data, priority, status, created_at, updated_at,
		       completed_at, assigned_worker, retry_count, max_retries
		FROM tasks WHERE id = $1
	`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("store.Get", errs.ErrTaskNotFound)
		}
		return nil, errs.Storage("store.Get", err)
	}
	return t, nil
}

// SetStatus updates status, bumps updated_at, and sets completed_at
// iff status is COMPLETED (cleared otherwise).
func (s *Store) SetStatus(ctx context.Context, id string, status task.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $2,
			updated_at = now(),
			completed_at = CASE WHEN $2 = 'COMPLETED' THEN now() ELSE NULL END
		WHERE id = $1
	`, id, status)
	if err != nil {
		return errs.Storage("store.SetStatus", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("store.SetStatus", errs.ErrTaskNotFound)
	}
	return nil
}

// Assign atomically sets assigned_worker and status, refreshing
// updated_at and completed_at. Never leaves a row with a non-empty
// assigned_worker and status PENDING, because callers only invoke
// this with status IN_PROGRESS, COMPLETED, or FAILED.
func (s *Store) Assign(ctx context.Context, id, workerID string, status task.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			assigned_worker = $2,
			status = $3,
			updated_at = now(),
			completed_at = CASE WHEN $3 = 'COMPLETED' THEN now() ELSE NULL END
		WHERE id = $1
	`, id, workerID, status)
	if err != nil {
		return errs.Storage("store.Assign", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("store.Assign", errs.ErrTaskNotFound)
	}
	return nil
}

// Complete is shorthand for Assign(id, workerID, COMPLETED).
func (s *Store) Complete(ctx context.Context, id, workerID string) error {
	return s.Assign(ctx, id, workerID, task.StatusCompleted)
}

// Requeue resets a task to PENDING, clears its assignment, and bumps
// retry_count. Used when a dispatch send fails or a worker is swept.
func (s *Store) Requeue(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = 'PENDING',
			assigned_worker = NULL,
			retry_count = retry_count + 1,
			updated_at = now(),
			completed_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return errs.Storage("store.Requeue", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("store.Requeue", errs.ErrTaskNotFound)
	}
	return nil
}

// Fail transitions a task to the terminal FAILED status after its
// retry budget is exhausted.
func (s *Store) Fail(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = 'FAILED',
			assigned_worker = NULL,
			updated_at = now(),
			completed_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return errs.Storage("store.Fail", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("store.Fail", errs.ErrTaskNotFound)
	}
	return nil
}

// ListPending returns every PENDING task ordered by priority DESC,
// created_at ASC — the order the Ready Queue is primed in.
func (s *Store) ListPending(ctx context.Context) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, data, priority, status, created_at, updated_at,
		       completed_at, assigned_worker, retry_count, max_retries
		FROM tasks
		WHERE status = 'PENDING'
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, errs.Storage("store.ListPending", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListCompleted returns up to limit COMPLETED tasks ordered by
// priority ASC.
func (s *Store) ListCompleted(ctx context.Context, limit int) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, data, priority, status, created_at, updated_at,
		       completed_at, assigned_worker, retry_count, max_retries
		FROM tasks
		WHERE status = 'COMPLETED'
		ORDER BY priority ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errs.Storage("store.ListCompleted", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListInProgressByWorker returns every task currently assigned to
// workerID, used by the registry's sweep to reclaim a dead worker's
// in-flight tasks.
func (s *Store) ListInProgressByWorker(ctx context.Context, workerID string) ([]*task.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, data, priority, status, created_at, updated_at,
		       completed_at, assigned_worker, retry_count, max_retries
		FROM tasks
		WHERE status = 'IN_PROGRESS' AND assigned_worker = $1
	`, workerID)
	if err != nil {
		return nil, errs.Storage("store.ListInProgressByWorker", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

type row interface {
	Scan(dest ...any) error
}

func scanTask(r row) (*task.Task, error) {
	var t task.Task
	var completedAt *time.Time
	var assignedWorker *string

	err := r.Scan(
		&t.ID, &t.Name, &t.Data, &t.Priority, &t.Status,
		&t.CreatedAt, &t.UpdatedAt, &completedAt, &assignedWorker,
		&t.RetryCount, &t.MaxRetries,
	)
	if err != nil {
		return nil, err
	}

	t.CompletedAt = completedAt
	if assignedWorker != nil {
		t.AssignedWorker = *assignedWorker
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*task.Task, error) {
	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errs.Storage("store.scanTasks", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("store.scanTasks", err)
	}
	return out, nil
}

// sampleTasks mirrors the original's addSampleTasks: a handful of
// named tasks with distinct priorities, for local smoke-testing only.
var sampleTasks = []struct {
	name string
	data string
}{
	{"DataProcessing", "Process customer data batch #1234"},
	{"ImageResizing", "Resize product images for mobile app"},
	{"EmailCampaign", "Send newsletter to subscribers"},
	{"DatabaseBackup", "Perform weekly database backup"},
	{"LogAnalysis", "Analyze system logs for errors"},
	{"ReportGeneration", "Generate monthly sales report"},
	{"UserSync", "Synchronize user data with CRM"},
	{"SecurityScan", "Perform security vulnerability scan"},
}

// SeedSamples inserts the sample task set, each with a distinct
// priority from 1 to len(sampleTasks). Never called on a production
// path; the supervisor calls it only when the store.seedsamples config
// key is set.
func (s *Store) SeedSamples(ctx context.Context) error {
	log := logger.WithComponent("store")
	for i, sample := range sampleTasks {
		t := task.New("", sample.name, sample.data, i+1)
		if err := s.Insert(ctx, t); err != nil {
			return fmt.Errorf("store.SeedSamples: %w", err)
		}
		log.Info().Str("task", sample.name).Int("priority", i+1).Msg("sample task added")
	}
	return nil
}
