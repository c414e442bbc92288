package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// Recorder owns run and step record writes. Step logging failures are
// observed, never propagated: the pipeline favors finishing articles over
// perfect observability.
type Recorder struct {
	runs  repository.RunRepository
	steps repository.StepRepository
}

func NewRecorder(runs repository.RunRepository, steps repository.StepRepository) *Recorder {
	return &Recorder{runs: runs, steps: steps}
}

// CreateRun inserts a new running run.
func (r *Recorder) CreateRun(ctx context.Context, trigger newsroom.Trigger) (*newsroom.Run, error) {
	run := &newsroom.Run{
		ID:        newsroom.GenerateID("run"),
		Status:    newsroom.RunStatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun moves a run to its terminal state. Status only ever moves
// forward; terminal states never revert.
func (r *Recorder) FinishRun(ctx context.Context, run *newsroom.Run, status newsroom.RunStatus, articleCount int, errMsg string) {
	now := time.Now()
	run.Status = status
	run.ArticleCount = articleCount
	run.FinishedAt = &now
	if errMsg != "" {
		run.Error = &errMsg
	}
	if err := r.runs.UpdateRun(ctx, run); err != nil {
		slog.Error("recorder: failed to finalize run", "run_id", run.ID, "status", status, "err", err)
	}
}

// Checkpoint raises ErrRunCancelled when the run's cancellation flag is
// set. Called before starting any article or step; cancellation is
// cooperative and never interrupts an in-flight call.
func (r *Recorder) Checkpoint(ctx context.Context, runID string) error {
	cancelled, err := r.runs.CancelRequested(ctx, runID)
	if err != nil {
		// A flag we cannot read is treated as unset; the run presses on.
		slog.Warn("recorder: cancel flag read failed", "run_id", runID, "err", err)
		return nil
	}
	if cancelled {
		return newsroom.ErrRunCancelled
	}
	return nil
}

// LogStep creates a running step record and returns it. On recorder
// failure it returns a step with an empty ID, which later updates ignore.
func (r *Recorder) LogStep(ctx context.Context, runID string, articleIndex int, kind newsroom.StepKind, siteSlug, inputSummary string) *newsroom.Step {
	step := &newsroom.Step{
		ID:           newsroom.GenerateID("step"),
		RunID:        runID,
		ArticleIndex: articleIndex,
		Kind:         kind,
		Name:         kind.StepName(siteSlug),
		Status:       newsroom.StepStatusRunning,
		InputSummary: inputSummary,
		StartedAt:    time.Now(),
	}
	if err := r.steps.CreateStep(ctx, step); err != nil {
		slog.Error("recorder: failed to log step", "run_id", runID, "step", step.Name, "err", err)
		step.ID = ""
	}
	return step
}

// CompleteStep marks a step completed with an output summary.
func (r *Recorder) CompleteStep(ctx context.Context, step *newsroom.Step, outputSummary string) {
	r.finishStep(ctx, step, newsroom.StepStatusCompleted, outputSummary, "")
}

// SkipStep marks a step skipped. Skipping is an outcome, not a failure.
func (r *Recorder) SkipStep(ctx context.Context, step *newsroom.Step, outputSummary string) {
	r.finishStep(ctx, step, newsroom.StepStatusSkipped, outputSummary, "")
}

// FailStep marks a step failed with the error text.
func (r *Recorder) FailStep(ctx context.Context, step *newsroom.Step, errMsg string) {
	r.finishStep(ctx, step, newsroom.StepStatusFailed, "", errMsg)
}

func (r *Recorder) finishStep(ctx context.Context, step *newsroom.Step, status newsroom.StepStatus, outputSummary, errMsg string) {
	if step == nil || step.ID == "" {
		return
	}
	now := time.Now()
	step.Status = status
	step.OutputSummary = outputSummary
	step.Error = errMsg
	step.FinishedAt = &now
	if err := r.steps.UpdateStep(ctx, step); err != nil {
		slog.Error("recorder: failed to update step", "step_id", step.ID, "status", status, "err", err)
	}
}
