package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/limaronaldo/orc-task/internal/ingress"
)

// webhookPayload is the normalized event body §6 describes:
// {type, repo, issue_number?, check_run?, pr?}. issue_labeled events also
// carry label/title/body, since the label decides which trigger fires and
// title/body seed the created task.
type webhookPayload struct {
	Type        string                   `json:"type"`
	Repo        string                   `json:"repo"`
	IssueNumber int                      `json:"issue_number,omitempty"`
	Title       string                   `json:"title,omitempty"`
	Body        string                   `json:"body,omitempty"`
	Label       string                   `json:"label,omitempty"`
	CheckRun    *ingress.CheckRunPayload `json:"check_run,omitempty"`
	PR          *ingress.PRPayload       `json:"pr,omitempty"`
}

// handleWebhook is the single HTTP entry point into Ingress.Normalize,
// alongside the direct API handlers that create tasks/jobs without going
// through a webhook at all (§4.8).
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid webhook body")
		return
	}
	if payload.Repo == "" {
		writeBadRequest(w, "repo is required")
		return
	}

	ev := ingress.RawEvent{
		Kind:        ingress.Kind(payload.Type),
		Repo:        payload.Repo,
		IssueNumber: payload.IssueNumber,
		Title:       payload.Title,
		Body:        payload.Body,
		Label:       payload.Label,
		CheckRun:    payload.CheckRun,
		PR:          payload.PR,
	}

	t, j, err := s.ingress.Normalize(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t, "job": j})
}
