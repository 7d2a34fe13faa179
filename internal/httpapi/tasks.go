package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

type createTaskRequest struct {
	Repo        string `json:"repo"`
	IssueNumber int    `json:"issue_number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// handleListTasks returns every task reduced to its list-view Summary
// (§6: "full Task minus large diff fields").
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasksByStatus(r.Context(), taskstate.AllStatuses)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries := make([]task.Summary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, t.ToSummary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleCreateTask creates a task directly through the API, bypassing
// ingress's label-trigger dispatch (§6: "POST /api/tasks → create from
// {repo, issue_number}").
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Repo == "" {
		writeBadRequest(w, "repo is required")
		return
	}

	t := task.New(req.Repo, req.IssueNumber, req.Title, req.Body)
	if err := s.store.CreateTask(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.AppendEvent(r.Context(), task.NewEvent(t.ID, task.EventCreated)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleStartTask runs a task through its Task Driver to suspension or a
// terminal status, detached from the request's lifetime.
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.registerCancel(id, cancel)

	go func() {
		defer s.unregisterCancel(id)
		defer cancel()
		if _, err := s.driver.Run(runCtx, t); err != nil {
			s.logger.Error("task driver run", "task_id", id, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, t)
}

// handleCancelTask cancels an in-flight handleStartTask run. It has no
// effect on a task driven as part of a Job; use /api/jobs/{id}/cancel there.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.cancelTask(id) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "task is not running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleRefreshTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) registerCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Server) unregisterCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func (s *Server) cancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[id]
	if !ok {
		return false
	}
	cancel()
	delete(s.cancels, id)
	return true
}
