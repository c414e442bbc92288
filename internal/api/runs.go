package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
	"github.com/pivotnews/newsroom/internal/services"
)

// startRun accepts a new manual run. The response carries the run id as
// soon as the record is durably created; the pipeline itself runs in the
// background and the caller polls /api/runs/{id}.
// POST /api/pipeline/run
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArticleCount  int    `json:"article_count"`
		HeadlinesDate string `json:"headlines_date"`
	}
	// An empty body is a valid request for a default run.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	run, err := s.pipeline.StartRun(r.Context(), services.RunOptions{
		Trigger:       newsroom.TriggerManual,
		ArticleCount:  req.ArticleCount,
		HeadlinesDate: req.HeadlinesDate,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"run_id": run.ID, "status": run.Status})
}

// stopRun flags a run for cooperative cancellation. Without a run_id the
// most recent running run is flagged.
// POST /api/pipeline/stop
func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string `json:"run_id"`
	}
	// The body is optional; without a run_id the latest running run is
	// targeted.
	json.NewDecoder(r.Body).Decode(&req)

	runID, err := s.history.RequestCancel(r.Context(), req.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "no running run found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"run_id": runID, "cancel_requested": true})
}

// listRuns returns recent runs, newest first.
// GET /api/runs?limit=50
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": runs})
}

// getRun returns one run with its ordered steps.
// GET /api/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := s.history.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}
