package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskmesh/coordinator/internal/errs"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/task"
)

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// listTasks handles GET /api/tasks. ?status=completed returns up to 100
// completed tasks, lowest priority first, instead of the pending set.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("status") == "completed" {
		tasks, err := s.store.ListCompleted(ctx, 100)
		if err != nil {
			logger.WithComponent("adminapi").Error().Err(err).Msg("failed to list completed tasks")
			respondError(w, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
		return
	}

	tasks, err := s.store.ListPending(ctx)
	if err != nil {
		logger.WithComponent("adminapi").Error().Err(err).Msg("failed to list pending tasks")
		respondError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}

// getTask handles GET /api/tasks/{taskID}.
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			respondError(w, http.StatusNotFound, "task not found")
			return
		}
		logger.WithComponent("adminapi").Error().Err(err).Str("task_id", id).Msg("failed to get task")
		respondError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// submitTaskRequest mirrors protocol.SubmitTaskPayload's task fields,
// letting the dashboard submit work over HTTP instead of the TCP wire
// protocol.
type submitTaskRequest struct {
	Name     string `json:"name"`
	Data     string `json:"data"`
	Priority int    `json:"priority,omitempty"`
}

// submitTask handles POST /api/tasks.
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	t := task.New("", req.Name, req.Data, req.Priority)
	if err := s.store.Insert(r.Context(), t); err != nil {
		logger.WithComponent("adminapi").Error().Err(err).Msg("failed to insert task")
		respondError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}
	s.queue.Enqueue(t)

	respondJSON(w, http.StatusCreated, t)
}

// listWorkers handles GET /api/workers.
func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	workers := s.registry.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{"workers": workers, "count": len(workers)})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WithComponent("adminapi").Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
