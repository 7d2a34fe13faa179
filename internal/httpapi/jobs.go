package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/limaronaldo/orc-task/internal/task"
)

type createJobRequest struct {
	Repo         string `json:"repo"`
	IssueNumbers []int  `json:"issue_numbers"`
}

// handleListJobs lists active jobs — the store has no ListAllJobs, and
// every job this process can act on is, by construction, either pending
// or running.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListActiveJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleCreateJob creates one task per issue number and a Job grouping
// them (§6: "POST /api/jobs with {repo, issue_numbers} → creates tasks
// and the job").
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Repo == "" || len(req.IssueNumbers) == 0 {
		writeBadRequest(w, "repo and issue_numbers are required")
		return
	}

	taskIDs := make([]string, 0, len(req.IssueNumbers))
	for _, issueNumber := range req.IssueNumbers {
		t := task.New(req.Repo, issueNumber, "", "")
		if err := s.store.CreateTask(r.Context(), t); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.AppendEvent(r.Context(), task.NewEvent(t.ID, task.EventCreated)); err != nil {
			writeError(w, err)
			return
		}
		taskIDs = append(taskIDs, t.ID)
	}

	j := task.NewJob(req.Repo, taskIDs)
	if err := s.store.CreateJob(r.Context(), j); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.store.ListTasksByJob(r.Context(), j.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	var events []task.Event
	for _, t := range tasks {
		taskEvents, err := s.store.ListEvents(r.Context(), t.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events = append(events, taskEvents...)
	}
	writeJSON(w, http.StatusOK, events)
}

// handleRunJob dispatches the Job Runner in the background, detached from
// the request's lifetime, since a Job can take far longer than one HTTP
// round trip to drive every task to suspension or completion.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	go func() {
		if _, err := s.runner.Run(context.Background(), j); err != nil {
			s.logger.Error("job runner run", "job_id", j.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, j)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.runner.CancelJob(id) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "job is not running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
