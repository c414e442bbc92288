package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// Scheduler triggers pipeline runs on a cron expression. A tick is
// skipped when a run is already in flight; runs never overlap.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	runs     repository.RunRepository
	spec     string
	logger   *slog.Logger
}

func NewScheduler(pipeline *Pipeline, runs repository.RunRepository, spec string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		runs:     runs,
		spec:     spec,
		logger:   logger,
	}
}

// Start registers the cron entry and begins ticking.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.logger.Info("scheduler disabled: no cron expression configured")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("register cron entry %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "cron", s.spec)
	return nil
}

// Stop halts the cron loop. In-flight runs are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) tick() {
	ctx := context.Background()

	if running, err := s.runs.LatestRunning(ctx); err == nil {
		s.logger.Info("scheduled run skipped: run already in progress", "run_id", running.ID)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("scheduled run: running-run check failed, starting anyway", "err", err)
	}

	run, err := s.pipeline.StartRun(ctx, RunOptions{Trigger: newsroom.TriggerCron})
	if err != nil {
		s.logger.Error("scheduled run failed to start", "err", err)
		return
	}
	s.logger.Info("scheduled run started", "run_id", run.ID)
}
