// Package httpapi exposes the orchestrator's REST surface (§6): tasks,
// jobs, model configuration, and the ingress webhook, over a stdlib
// net/http 1.22+ pattern-based ServeMux, the way the reference API server
// registers its routes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/limaronaldo/orc-task/internal/ingress"
	"github.com/limaronaldo/orc-task/internal/taskerr"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// apiError is the standard error response body.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a successful JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError inspects err's type and writes the appropriate status and
// body, following the reference HandleError's errors.As dispatch.
func writeError(w http.ResponseWriter, err error) {
	var terr *taskerr.Error
	if errors.As(err, &terr) {
		writeJSON(w, terr.HTTPStatus(), apiError{Error: terr.UserMessage(), Code: string(terr.Code)})
		return
	}
	if errors.Is(err, taskstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error(), Code: string(taskerr.CodeNotFound)})
		return
	}
	if errors.Is(err, ingress.ErrRepoNotAllowed) {
		writeJSON(w, http.StatusForbidden, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, apiError{Error: message})
}
