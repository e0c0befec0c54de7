package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/errs"
	"github.com/taskmesh/coordinator/internal/queue"
	"github.com/taskmesh/coordinator/internal/registry"
	"github.com/taskmesh/coordinator/internal/task"
)

type fakeStore struct {
	mu        sync.Mutex
	inserted  []*task.Task
	pending   []*task.Task
	completed []*task.Task
	getResult *task.Task
	getErr    error
}

func (f *fakeStore) Insert(ctx context.Context, t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, t)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*task.Task, error) {
	return f.getResult, f.getErr
}

func (f *fakeStore) ListPending(ctx context.Context) ([]*task.Task, error) {
	return f.pending, nil
}

func (f *fakeStore) ListCompleted(ctx context.Context, limit int) ([]*task.Task, error) {
	return f.completed, nil
}

func testConfig() config.AdminAPIConfig {
	return config.AdminAPIConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}
}

func TestServer_HealthCheck(t *testing.T) {
	st := &fakeStore{}
	s := New(testConfig(), config.AuthConfig{}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_ListTasks_Pending(t *testing.T) {
	st := &fakeStore{pending: []*task.Task{task.New("", "job", "d", 1)}}
	s := New(testConfig(), config.AuthConfig{}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestServer_ListTasks_Completed(t *testing.T) {
	st := &fakeStore{completed: []*task.Task{task.New("", "job", "d", 1)}}
	s := New(testConfig(), config.AuthConfig{}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=completed", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestServer_GetTask_NotFound(t *testing.T) {
	st := &fakeStore{getErr: errs.NotFound("store.Get", errs.ErrTaskNotFound)}
	s := New(testConfig(), config.AuthConfig{}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SubmitTask(t *testing.T) {
	st := &fakeStore{}
	q := queue.New()
	s := New(testConfig(), config.AuthConfig{}, st, q, registry.New(time.Minute), nil)

	body := `{"name":"echo","data":"hi","priority":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, st.inserted, 1)
	assert.Equal(t, 1, q.Len())
}

func TestServer_SubmitTask_MissingName(t *testing.T) {
	st := &fakeStore{}
	s := New(testConfig(), config.AuthConfig{}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"data":"hi"}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ListWorkers(t *testing.T) {
	reg := registry.New(time.Minute)
	reg.Register("127.0.0.1:9000")
	s := New(testConfig(), config.AuthConfig{}, &fakeStore{}, queue.New(), reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestServer_AuthRequired(t *testing.T) {
	st := &fakeStore{}
	authCfg := config.AuthConfig{Enabled: true, JWTSecret: "secret"}
	s := New(testConfig(), authCfg, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_AuthDisabledByDefault(t *testing.T) {
	st := &fakeStore{}
	s := New(testConfig(), config.AuthConfig{Enabled: false}, st, queue.New(), registry.New(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
