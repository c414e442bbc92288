package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// FindByLink resolves a headline URL against history. Duplicate rows are
// tolerated; the lowest identifier wins.
func (d *DB) FindByLink(ctx context.Context, link string) (*newsroom.FeedItem, error) {
	item := &newsroom.FeedItem{}
	err := d.Pool.QueryRowContext(ctx,
		`SELECT id, title, link, pub_date, content, img_url, should_draft_article, created_at
		 FROM rss_feed WHERE link = $1 ORDER BY id ASC LIMIT 1`, link,
	).Scan(&item.ID, &item.Title, &item.Link, &item.PubDate, &item.Content,
		&item.ImageURL, &item.ShouldDraftArticle, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: feed item with link %s", repository.ErrNotFound, link)
	}
	if err != nil {
		return nil, fmt.Errorf("find feed item: %w", err)
	}
	return item, nil
}

// InsertItem stores a new headline history row.
func (d *DB) InsertItem(ctx context.Context, item *newsroom.FeedItem) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO rss_feed (id, title, link, pub_date, content, img_url, should_draft_article, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.Title, item.Link, item.PubDate, item.Content,
		item.ImageURL, item.ShouldDraftArticle, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feed item: %w", err)
	}
	return nil
}

// MarkShouldDraft flags an existing history row as eligible for drafting.
func (d *DB) MarkShouldDraft(ctx context.Context, id string) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE rss_feed SET should_draft_article = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark should draft: %w", err)
	}
	return nil
}

// InsertArticle stores the final article/site linkage row.
func (d *DB) InsertArticle(ctx context.Context, a *newsroom.AIArticle) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO ai_articles (id, rss_feed_id, title, content, site_id, wp_post_id, wp_media_id, wp_image_url, image_source, source_image_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.FeedItemID, a.Title, a.Content, a.SiteID,
		a.WPPostID, a.WPMediaID, a.WPImageURL, a.ImageSource, a.SourceImageURL, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ai article: %w", err)
	}
	return nil
}

// ListActiveSites returns every active publishing target.
func (d *DB) ListActiveSites(ctx context.Context) ([]newsroom.Site, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, name, slug, wp_base_url, active, category_map FROM sites WHERE active = TRUE ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var result []newsroom.Site
	for rows.Next() {
		var s newsroom.Site
		var catMapJSON []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.BaseURL, &s.Active, &catMapJSON); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		json.Unmarshal(catMapJSON, &s.CategoryMap)
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetConfig reads the single pipeline configuration row.
func (d *DB) GetConfig(ctx context.Context) (*newsroom.PipelineConfig, error) {
	cfg := &newsroom.PipelineConfig{}
	var promptsJSON, catMapJSON []byte
	err := d.Pool.QueryRowContext(ctx,
		`SELECT headlines_to_fetch, headlines_date, publish_status, editor_prompts, category_map
		 FROM pipeline_config WHERE id = 1`,
	).Scan(&cfg.HeadlinesToFetch, &cfg.HeadlinesDate, &cfg.PublishStatus, &promptsJSON, &catMapJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: pipeline config", repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline config: %w", err)
	}
	if len(promptsJSON) > 0 {
		json.Unmarshal(promptsJSON, &cfg.EditorPrompts)
	}
	if len(catMapJSON) > 0 {
		json.Unmarshal(catMapJSON, &cfg.CategoryMap)
	}
	return cfg, nil
}

// UpdateConfig replaces the pipeline configuration row.
func (d *DB) UpdateConfig(ctx context.Context, cfg *newsroom.PipelineConfig) error {
	var promptsParam, catMapParam any // SQL NULL when nil; lib/pq rejects nil []byte for JSONB
	if cfg.EditorPrompts != nil {
		b, _ := json.Marshal(cfg.EditorPrompts)
		promptsParam = b
	}
	if cfg.CategoryMap != nil {
		b, _ := json.Marshal(cfg.CategoryMap)
		catMapParam = b
	}
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE pipeline_config SET headlines_to_fetch = $1, headlines_date = $2, publish_status = $3, editor_prompts = $4, category_map = $5
		 WHERE id = 1`,
		cfg.HeadlinesToFetch, cfg.HeadlinesDate, cfg.PublishStatus, promptsParam, catMapParam,
	)
	if err != nil {
		return fmt.Errorf("update pipeline config: %w", err)
	}
	return nil
}
