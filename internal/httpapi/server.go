package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/limaronaldo/orc-task/internal/ingress"
	"github.com/limaronaldo/orc-task/internal/jobrunner"
	"github.com/limaronaldo/orc-task/internal/taskdriver"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// availableModels lists the model identifiers the selector can be pointed
// at (§6's `available_models`), matching modelselect's hardcoded fallback
// defaults.
var availableModels = []string{"claude-haiku-4-5", "claude-sonnet-4-5", "claude-opus-4-1"}

// Server is the orchestrator's HTTP API server.
type Server struct {
	store   taskstore.Store
	driver  *taskdriver.Driver
	runner  *jobrunner.Runner
	ingress *ingress.Ingress
	logger  *slog.Logger

	mux *http.ServeMux

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Config wires a Server's collaborators.
type Config struct {
	Store   taskstore.Store
	Driver  *taskdriver.Driver
	Runner  *jobrunner.Runner
	Ingress *ingress.Ingress
	Logger  *slog.Logger
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   cfg.Store,
		driver:  cfg.Driver,
		runner:  cfg.Runner,
		ingress: cfg.Ingress,
		logger:  logger,
		mux:     http.NewServeMux(),
		cancels: map[string]context.CancelFunc{},
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/start", s.handleStartTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/cancel", s.handleCancelTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/refresh", s.handleRefreshTask)
	s.mux.HandleFunc("GET /api/tasks/{id}/events", s.handleTaskEvents)

	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/jobs/{id}/events", s.handleJobEvents)
	s.mux.HandleFunc("POST /api/jobs/{id}/run", s.handleRunJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)

	s.mux.HandleFunc("GET /api/config/models", s.handleListModelConfigs)
	s.mux.HandleFunc("PUT /api/config/models/{position}", s.handlePutModelConfig)

	s.mux.HandleFunc("POST /webhooks/source", s.handleWebhook)
}

func availableModelsJSON() []string {
	out := make([]string, len(availableModels))
	copy(out, availableModels)
	return out
}
