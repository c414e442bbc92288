package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// CreateStep stores a new step record.
func (d *DB) CreateStep(ctx context.Context, s *newsroom.Step) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO steps (id, run_id, article_index, kind, step_name, status, input_summary, output_summary, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.RunID, s.ArticleIndex, string(s.Kind), s.Name, string(s.Status),
		s.InputSummary, s.OutputSummary, s.Error, s.StartedAt, s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// UpdateStep sets a step's terminal status and summaries.
func (d *DB) UpdateStep(ctx context.Context, s *newsroom.Step) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE steps SET status = $1, output_summary = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(s.Status), s.OutputSummary, s.Error, s.FinishedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return nil
}

// ListSteps returns a run's steps ordered by article index, then start time.
func (d *DB) ListSteps(ctx context.Context, runID string) ([]*newsroom.Step, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, run_id, article_index, kind, step_name, status, input_summary, output_summary, error, started_at, finished_at
		 FROM steps WHERE run_id = $1 ORDER BY article_index, started_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var result []*newsroom.Step
	for rows.Next() {
		s := &newsroom.Step{}
		var kind, status string
		var finishedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.RunID, &s.ArticleIndex, &kind, &s.Name, &status,
			&s.InputSummary, &s.OutputSummary, &s.Error, &s.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Kind = newsroom.StepKind(kind)
		s.Status = newsroom.StepStatus(status)
		if finishedAt.Valid {
			s.FinishedAt = &finishedAt.Time
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
