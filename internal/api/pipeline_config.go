package api

import (
	"encoding/json"
	"net/http"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// getConfig returns the persisted pipeline configuration.
// GET /api/pipeline/config
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.GetConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// updateConfig replaces the pipeline configuration row.
// PUT /api/pipeline/config
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg newsroom.PipelineConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if cfg.HeadlinesToFetch < 0 {
		http.Error(w, "headlines_to_fetch must not be negative", http.StatusBadRequest)
		return
	}
	if cfg.PublishStatus != "" && cfg.PublishStatus != "draft" && cfg.PublishStatus != "publish" {
		http.Error(w, `publish_status must be "draft" or "publish"`, http.StatusBadRequest)
		return
	}

	if err := s.config.UpdateConfig(r.Context(), &cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&cfg)
}
