// Package repository abstracts persistence for the pipeline's durable
// records. Each interface has an in-memory implementation for tests and a
// PostgreSQL implementation backed by internal/db.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunRepository stores pipeline run records. The orchestrator is the only
// writer of run fields; the single exception is the cancellation flag,
// which a second actor sets through RequestCancel and which UpdateRun
// never touches.
type RunRepository interface {
	CreateRun(ctx context.Context, run *newsroom.Run) error
	GetRun(ctx context.Context, id string) (*newsroom.Run, error)
	// UpdateRun persists status, article_count, error, and finished_at.
	// It must not write cancel_requested_at.
	UpdateRun(ctx context.Context, run *newsroom.Run) error
	// ListRuns returns runs newest-first.
	ListRuns(ctx context.Context, limit int) ([]*newsroom.Run, error)
	// LatestRunning returns the most recently started run still in the
	// running state, or ErrNotFound.
	LatestRunning(ctx context.Context) (*newsroom.Run, error)
	RequestCancel(ctx context.Context, id string, at time.Time) error
	CancelRequested(ctx context.Context, id string) (bool, error)
	// MarkOrphanedRunsFailed fails every run still marked running. Called
	// once at startup to clean up after a dead process.
	MarkOrphanedRunsFailed(ctx context.Context) (int64, error)
}

// StepRepository stores step records. Steps are append-then-update: one
// record per (run, article index, step name) occurrence, created running
// and moved to exactly one terminal status.
type StepRepository interface {
	CreateStep(ctx context.Context, step *newsroom.Step) error
	UpdateStep(ctx context.Context, step *newsroom.Step) error
	// ListSteps returns a run's steps ordered by article index, then start
	// time.
	ListSteps(ctx context.Context, runID string) ([]*newsroom.Step, error)
}

// FeedRepository stores the headline history used for deduplication.
type FeedRepository interface {
	// FindByLink resolves a canonical URL against history. When duplicate
	// rows exist it returns the one with the lowest identifier. Returns
	// ErrNotFound when the link is unknown.
	FindByLink(ctx context.Context, link string) (*newsroom.FeedItem, error)
	InsertItem(ctx context.Context, item *newsroom.FeedItem) error
	MarkShouldDraft(ctx context.Context, id string) error
}

// ArticleRepository stores the final article/site linkage rows.
type ArticleRepository interface {
	InsertArticle(ctx context.Context, article *newsroom.AIArticle) error
}

// SiteRepository lists publishing targets.
type SiteRepository interface {
	ListActiveSites(ctx context.Context) ([]newsroom.Site, error)
}

// ConfigRepository reads the single pipeline configuration row.
type ConfigRepository interface {
	GetConfig(ctx context.Context) (*newsroom.PipelineConfig, error)
	UpdateConfig(ctx context.Context, cfg *newsroom.PipelineConfig) error
}
