package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// RunHistory is the read/cancel surface exposed to the API: run and step
// projections plus the cancellation flag.
type RunHistory struct {
	runs  repository.RunRepository
	steps repository.StepRepository
}

func NewRunHistory(runs repository.RunRepository, steps repository.StepRepository) *RunHistory {
	return &RunHistory{runs: runs, steps: steps}
}

// RunDetail is a run with its ordered steps.
type RunDetail struct {
	Run   *newsroom.Run    `json:"run"`
	Steps []*newsroom.Step `json:"steps"`
}

// GetRun returns a run and its steps.
func (h *RunHistory) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	run, err := h.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := h.steps.ListSteps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list steps for %s: %w", id, err)
	}
	return &RunDetail{Run: run, Steps: steps}, nil
}

// ListRuns returns recent runs, newest first.
func (h *RunHistory) ListRuns(ctx context.Context, limit int) ([]*newsroom.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return h.runs.ListRuns(ctx, limit)
}

// RequestCancel flags a run for cooperative cancellation. With an empty
// id, the most recent running run is flagged. Returns the flagged run id.
func (h *RunHistory) RequestCancel(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		running, err := h.runs.LatestRunning(ctx)
		if err != nil {
			return "", err
		}
		runID = running.ID
	}
	if err := h.runs.RequestCancel(ctx, runID, time.Now()); err != nil {
		return "", err
	}
	return runID, nil
}
