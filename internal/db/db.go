// Package db implements the PostgreSQL record store. *DB satisfies the
// repository interfaces directly; reads always hit the database so that a
// cancellation flag written by another actor is observed promptly.
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// New creates a new database connection.
// The caller must import a PostgreSQL driver (e.g., _ "github.com/lib/pq").
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

const migrationSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id                  TEXT PRIMARY KEY,
    status              TEXT NOT NULL,
    trigger             TEXT NOT NULL,
    article_count       INTEGER NOT NULL DEFAULT 0,
    error               TEXT,
    started_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at         TIMESTAMPTZ,
    cancel_requested_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS steps (
    id             TEXT PRIMARY KEY,
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    article_index  INTEGER NOT NULL,
    kind           TEXT NOT NULL,
    step_name      TEXT NOT NULL,
    status         TEXT NOT NULL,
    input_summary  TEXT NOT NULL DEFAULT '',
    output_summary TEXT NOT NULL DEFAULT '',
    error          TEXT NOT NULL DEFAULT '',
    started_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id);

CREATE TABLE IF NOT EXISTS rss_feed (
    id                   TEXT PRIMARY KEY,
    title                TEXT NOT NULL,
    link                 TEXT NOT NULL,
    pub_date             TEXT NOT NULL DEFAULT '',
    content              TEXT NOT NULL DEFAULT '',
    img_url              TEXT NOT NULL DEFAULT '',
    should_draft_article BOOLEAN NOT NULL DEFAULT FALSE,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rss_feed_link ON rss_feed(link);

CREATE TABLE IF NOT EXISTS sites (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    slug         TEXT UNIQUE NOT NULL,
    wp_base_url  TEXT NOT NULL,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    category_map JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS ai_articles (
    id               TEXT PRIMARY KEY,
    rss_feed_id      TEXT NOT NULL REFERENCES rss_feed(id),
    title            TEXT NOT NULL,
    content          TEXT NOT NULL,
    site_id          TEXT NOT NULL,
    wp_post_id       INTEGER,
    wp_media_id      INTEGER,
    wp_image_url     TEXT,
    image_source     TEXT,
    source_image_url TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipeline_config (
    id                 INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    headlines_to_fetch INTEGER NOT NULL DEFAULT 6,
    headlines_date     TEXT NOT NULL DEFAULT 'today',
    publish_status     TEXT NOT NULL DEFAULT 'draft',
    editor_prompts     JSONB,
    category_map       JSONB
);

INSERT INTO pipeline_config (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`
