package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// CreateRun stores a new run record.
func (d *DB) CreateRun(ctx context.Context, r *newsroom.Run) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO runs (id, status, trigger, article_count, error, started_at, finished_at, cancel_requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, string(r.Status), string(r.Trigger), r.ArticleCount, r.Error,
		r.StartedAt, r.FinishedAt, r.CancelRequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (d *DB) GetRun(ctx context.Context, id string) (*newsroom.Run, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, status, trigger, article_count, error, started_at, finished_at, cancel_requested_at
		 FROM runs WHERE id = $1`, id)
	return scanRun(row)
}

// UpdateRun persists the orchestrator-owned run fields. The cancellation
// flag is deliberately excluded: it belongs to RequestCancel and is never
// cleared during a run.
func (d *DB) UpdateRun(ctx context.Context, r *newsroom.Run) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE runs SET status = $1, article_count = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(r.Status), r.ArticleCount, r.Error, r.FinishedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns runs newest-first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]*newsroom.Run, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, status, trigger, article_count, error, started_at, finished_at, cancel_requested_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []*newsroom.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LatestRunning returns the most recently started run still running.
func (d *DB) LatestRunning(ctx context.Context) (*newsroom.Run, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT id, status, trigger, article_count, error, started_at, finished_at, cancel_requested_at
		 FROM runs WHERE status = 'running' ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

// RequestCancel sets the cancellation flag on a run. Once set it is never
// overwritten.
func (d *DB) RequestCancel(ctx context.Context, id string, at time.Time) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE runs SET cancel_requested_at = $1
		 WHERE id = $2 AND status = 'running' AND cancel_requested_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the run is unknown or the flag is already set; the latter
		// is not an error.
		if _, err := d.GetRun(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CancelRequested reports whether the run's cancellation flag is set.
func (d *DB) CancelRequested(ctx context.Context, id string) (bool, error) {
	var at sql.NullTime
	err := d.Pool.QueryRowContext(ctx,
		`SELECT cancel_requested_at FROM runs WHERE id = $1`, id).Scan(&at)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: run %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("get cancel flag: %w", err)
	}
	return at.Valid, nil
}

// MarkOrphanedRunsFailed fails every run left in the running state by a
// previous process. Called once at startup.
func (d *DB) MarkOrphanedRunsFailed(ctx context.Context) (int64, error) {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE runs SET status = 'failed', error = 'orphaned: process terminated mid-run', finished_at = NOW()
		 WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("mark orphaned runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*newsroom.Run, error) {
	r := &newsroom.Run{}
	var status, trigger string
	var finishedAt, cancelAt sql.NullTime
	err := row.Scan(&r.ID, &status, &trigger, &r.ArticleCount, &r.Error,
		&r.StartedAt, &finishedAt, &cancelAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run", repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Status = newsroom.RunStatus(status)
	r.Trigger = newsroom.Trigger(trigger)
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if cancelAt.Valid {
		r.CancelRequestedAt = &cancelAt.Time
	}
	return r, nil
}
