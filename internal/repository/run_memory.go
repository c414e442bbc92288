package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// MemoryRunRepository stores run and step records in memory.
type MemoryRunRepository struct {
	mu    sync.RWMutex
	runs  map[string]*newsroom.Run
	steps []*newsroom.Step
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]*newsroom.Run)}
}

func (r *MemoryRunRepository) CreateRun(_ context.Context, run *newsroom.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *MemoryRunRepository) GetRun(_ context.Context, id string) (*newsroom.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	cp := *run
	return &cp, nil
}

func (r *MemoryRunRepository) UpdateRun(_ context.Context, run *newsroom.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, run.ID)
	}
	existing.Status = run.Status
	existing.ArticleCount = run.ArticleCount
	existing.Error = run.Error
	existing.FinishedAt = run.FinishedAt
	return nil
}

func (r *MemoryRunRepository) ListRuns(_ context.Context, limit int) ([]*newsroom.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*newsroom.Run, 0, len(r.runs))
	for _, run := range r.runs {
		cp := *run
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRunRepository) LatestRunning(ctx context.Context) (*newsroom.Run, error) {
	all, _ := r.ListRuns(ctx, 0)
	for _, run := range all {
		if run.Status == newsroom.RunStatusRunning {
			return run, nil
		}
	}
	return nil, fmt.Errorf("%w: no running run", ErrNotFound)
}

func (r *MemoryRunRepository) RequestCancel(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if run.CancelRequestedAt == nil {
		run.CancelRequestedAt = &at
	}
	return nil
}

func (r *MemoryRunRepository) CancelRequested(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return false, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return run.CancelRequestedAt != nil, nil
}

func (r *MemoryRunRepository) MarkOrphanedRunsFailed(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var n int64
	for _, run := range r.runs {
		if run.Status == newsroom.RunStatusRunning {
			run.Status = newsroom.RunStatusFailed
			msg := "orphaned: process terminated mid-run"
			run.Error = &msg
			run.FinishedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *MemoryRunRepository) CreateStep(_ context.Context, step *newsroom.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *step
	r.steps = append(r.steps, &cp)
	return nil
}

func (r *MemoryRunRepository) UpdateStep(_ context.Context, step *newsroom.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.steps {
		if existing.ID == step.ID {
			*existing = *step
			return nil
		}
	}
	return fmt.Errorf("%w: step %s", ErrNotFound, step.ID)
}

func (r *MemoryRunRepository) ListSteps(_ context.Context, runID string) ([]*newsroom.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*newsroom.Step
	for _, step := range r.steps {
		if step.RunID == runID {
			cp := *step
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ArticleIndex != out[j].ArticleIndex {
			return out[i].ArticleIndex < out[j].ArticleIndex
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}
