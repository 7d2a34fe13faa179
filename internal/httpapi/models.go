package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
)

type modelConfigsResponse struct {
	Configs         []*task.ModelConfig `json:"configs"`
	AvailableModels []string            `json:"available_models"`
}

type putModelConfigRequest struct {
	ModelID string `json:"model_id"`
}

func (s *Server) handleListModelConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListModelConfigs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelConfigsResponse{
		Configs:         configs,
		AvailableModels: availableModelsJSON(),
	})
}

func (s *Server) handlePutModelConfig(w http.ResponseWriter, r *http.Request) {
	var req putModelConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ModelID == "" {
		writeBadRequest(w, "model_id is required")
		return
	}

	cfg := &task.ModelConfig{
		Position:  r.PathValue("position"),
		ModelID:   req.ModelID,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SetModelConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
