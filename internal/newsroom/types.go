// Package newsroom defines the typed records shared across the pipeline:
// runs, steps, headlines, drafted articles, processed images, and the
// per-site publishing artifacts.
package newsroom

import (
	"errors"
	"time"
)

// ErrRunCancelled is the distinguished cancellation signal. It is raised by
// the checkpoint when a run's cancel flag is set, is never retried, and is
// the only path to the "cancelled" terminal run state.
var ErrRunCancelled = errors.New("pipeline run was cancelled")

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
)

// Run is one full pipeline execution covering N articles.
type Run struct {
	ID                string     `json:"id"`
	Status            RunStatus  `json:"status"`
	Trigger           Trigger    `json:"trigger"`
	ArticleCount      int        `json:"article_count"`
	Error             *string    `json:"error,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CancelRequestedAt *time.Time `json:"cancel_requested_at,omitempty"`
}

type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// RunLevelIndex is the article index used by steps that belong to the run
// as a whole rather than to one article.
const RunLevelIndex = -1

// Step is one logged stage of execution, scoped to a run and an article
// index (RunLevelIndex for run-level steps such as the headline fetch).
type Step struct {
	ID            string     `json:"id"`
	RunID         string     `json:"run_id"`
	ArticleIndex  int        `json:"article_index"`
	Kind          StepKind   `json:"kind"`
	Name          string     `json:"step_name"`
	Status        StepStatus `json:"status"`
	InputSummary  string     `json:"input_summary,omitempty"`
	OutputSummary string     `json:"output_summary,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// HeadlineItem is a normalized external news item. Transient: consumed to
// produce a FeedItem and never persisted on its own.
type HeadlineItem struct {
	NewsID      string
	Title       string
	URL         string
	ImageURL    string
	Text        string
	PublishedAt string
}

// Reference is one external search result used as drafting context.
type Reference struct {
	Title       string
	URL         string
	Description string
	Content     string
}

// FeedItem is the durable history row a headline upserts into.
type FeedItem struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Link               string    `json:"link"`
	PubDate            string    `json:"pub_date"`
	Content            string    `json:"content"`
	ImageURL           string    `json:"img_url,omitempty"`
	ShouldDraftArticle bool      `json:"should_draft_article"`
	CreatedAt          time.Time `json:"created_at"`
}

// ArticleResult is the drafting output for one headline. Immutable after
// creation; consumed by the image, SEO, and publish steps.
type ArticleResult struct {
	Headline      string
	CleanedHTML   string
	Category      string
	CategoryID    int
	CategoryColor string
	Tags          []string
}

// ImageSource tags which tier of the fallback chain supplied the original
// image buffer.
type ImageSource string

const (
	ImageSourceOG     ImageSource = "og:image"
	ImageSourceFeed   ImageSource = "img_url"
	ImageSourceSearch ImageSource = "google_cse"
)

// ProcessedImage is the final image artifact. The provenance fields are
// carried forward unchanged from whichever tier supplied the source buffer.
type ProcessedImage struct {
	Data           []byte
	MIMEType       string
	FileName       string
	Source         ImageSource
	SourceImageURL string
}

// Site is a publishing target with its own taxonomy mapping.
type Site struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	BaseURL     string      `json:"wp_base_url"`
	Active      bool        `json:"active"`
	CategoryMap CategoryMap `json:"category_map,omitempty"`
}

// SiteArticle is the per-site SEO package: rewritten metadata plus the
// site's own category resolution. Independent of other sites' packages.
type SiteArticle struct {
	Site            Site
	MetaTitle       string
	MetaDescription string
	Keyword         string
	CategoryID      int
	CategoryColor   string
}

// PublishResult is the per-site outcome of the publish step.
type PublishResult struct {
	SiteSlug string
	PostID   int
	MediaID  int
	PostLink string
	ImageURL string
}

// AIArticle records the final article/site linkage after a successful
// publish.
type AIArticle struct {
	ID             string    `json:"id"`
	FeedItemID     string    `json:"rss_feed_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	SiteID         string    `json:"site_id"`
	WPPostID       int       `json:"wp_post_id,omitempty"`
	WPMediaID      int       `json:"wp_media_id,omitempty"`
	WPImageURL     string    `json:"wp_image_url,omitempty"`
	ImageSource    string    `json:"image_source,omitempty"`
	SourceImageURL string    `json:"source_image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CategoryInfo maps a category name to a WordPress category id and the
// accent color used for the selective-colour image treatment.
type CategoryInfo struct {
	ID    int    `json:"id"`
	Color string `json:"color"`
}

type CategoryMap map[string]CategoryInfo

// EditorPrompts holds the database-configurable prompt templates. Empty
// fields fall back to the built-in defaults.
type EditorPrompts struct {
	ArticleWritingSystem    string `json:"article_writing_system,omitempty"`
	ArticleWritingUser      string `json:"article_writing_user,omitempty"`
	ImageSelectionSystem    string `json:"image_selection_system,omitempty"`
	ImageSelectionUser      string `json:"image_selection_user,omitempty"`
	ImageEditDirectTemplate string `json:"image_edit_direct_template,omitempty"`
}

// PipelineConfig is the single durable configuration row read at run start.
type PipelineConfig struct {
	HeadlinesToFetch int            `json:"headlines_to_fetch"`
	HeadlinesDate    string         `json:"headlines_date,omitempty"`
	PublishStatus    string         `json:"publish_status"`
	EditorPrompts    *EditorPrompts `json:"editor_prompts,omitempty"`
	CategoryMap      CategoryMap    `json:"category_map,omitempty"`
}
