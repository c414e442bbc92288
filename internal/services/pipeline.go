package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

const (
	defaultHeadlineCount = 6
	defaultHeadlinesDate = "today"
	defaultPublishStatus = "draft"
)

// Pipeline runs the full fetch-draft-image-seo-publish sequence for one
// run. All external collaborators are explicit handles injected at
// construction; the pipeline itself holds no global state.
type Pipeline struct {
	recorder *Recorder
	feeds    repository.FeedRepository
	articles repository.ArticleRepository
	sites    repository.SiteRepository
	config   repository.ConfigRepository

	headlines   HeadlineSource
	refs        ReferenceSearcher
	imageSearch ImageSearcher
	writer      ArticleWriter
	selector    ImageSelector
	editor      ImageEditor
	seo         SEORewriter
	fetcher     ImageFetcher
	transform   ImageTransformer
	publisher   Publisher
	notifier    RunNotifier

	logger *slog.Logger
}

// RunNotifier reports terminal runs to operator channels. Optional; a nil
// notifier disables notifications.
type RunNotifier interface {
	RunFinished(ctx context.Context, run *newsroom.Run)
}

// PipelineDeps bundles the constructor arguments.
type PipelineDeps struct {
	Recorder *Recorder
	Feeds    repository.FeedRepository
	Articles repository.ArticleRepository
	Sites    repository.SiteRepository
	Config   repository.ConfigRepository

	Headlines   HeadlineSource
	References  ReferenceSearcher
	ImageSearch ImageSearcher
	Writer      ArticleWriter
	Selector    ImageSelector
	Editor      ImageEditor
	SEO         SEORewriter
	Fetcher     ImageFetcher
	Transform   ImageTransformer
	Publisher   Publisher
	Notifier    RunNotifier

	Logger *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		recorder:    deps.Recorder,
		feeds:       deps.Feeds,
		articles:    deps.Articles,
		sites:       deps.Sites,
		config:      deps.Config,
		headlines:   deps.Headlines,
		refs:        deps.References,
		imageSearch: deps.ImageSearch,
		writer:      deps.Writer,
		selector:    deps.Selector,
		editor:      deps.Editor,
		seo:         deps.SEO,
		fetcher:     deps.Fetcher,
		transform:   deps.Transform,
		publisher:   deps.Publisher,
		notifier:    deps.Notifier,
		logger:      logger,
	}
}

// RunOptions parameterize one run. Zero values fall back to the persisted
// pipeline configuration, then to the built-in defaults.
type RunOptions struct {
	Trigger      newsroom.Trigger
	ArticleCount int
	// HeadlinesDate is "today", "yesterday", or "MMDDYYYY-MMDDYYYY".
	HeadlinesDate string
}

// StartRun durably creates the run record, then executes the pipeline in a
// background goroutine. The caller gets the run id as soon as the record
// exists and polls for progress; there is no artificial wait.
func (p *Pipeline) StartRun(ctx context.Context, opts RunOptions) (*newsroom.Run, error) {
	run, err := p.recorder.CreateRun(ctx, opts.Trigger)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	go func() {
		// The run outlives the request that started it.
		p.Execute(context.Background(), run, opts)
	}()

	return run, nil
}

// Execute runs the pipeline to completion and finalizes the run record.
func (p *Pipeline) Execute(ctx context.Context, run *newsroom.Run, opts RunOptions) {
	cfg := p.loadConfig(ctx)
	opts = p.resolveOptions(opts, cfg)

	processed := 0
	var errs []string

	headlines, err := p.fetchHeadlines(ctx, run, opts)
	if err != nil {
		if errors.Is(err, newsroom.ErrRunCancelled) {
			p.finalizeCancelled(ctx, run, processed)
			return
		}
		p.recorder.FinishRun(ctx, run, newsroom.RunStatusFailed, 0, err.Error())
		p.logger.Error("run failed during headline fetch", "run_id", run.ID, "err", err)
		p.notifyFinished(ctx, run)
		return
	}

	for i, headline := range headlines {
		if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
			p.finalizeCancelled(ctx, run, processed)
			return
		}

		ok, err := p.processArticle(ctx, run, i, headline, cfg)
		if err != nil {
			if errors.Is(err, newsroom.ErrRunCancelled) {
				p.finalizeCancelled(ctx, run, processed)
				return
			}
			errs = append(errs, fmt.Sprintf("Article %d (%s): %v", i, headline.Title, err))
			p.logger.Error("article failed", "run_id", run.ID, "article_index", i, "err", err)
			continue
		}
		if ok {
			processed++
			p.logger.Info("article processed", "run_id", run.ID, "article_index", i)
		}
	}

	status := newsroom.RunStatusCompleted
	if len(headlines) > 0 && len(errs) == len(headlines) {
		status = newsroom.RunStatusFailed
	}
	p.recorder.FinishRun(ctx, run, status, processed, strings.Join(errs, "; "))
	p.logger.Info("run finished", "run_id", run.ID, "status", status, "article_count", processed, "errors", len(errs))
	p.notifyFinished(ctx, run)
}

func (p *Pipeline) notifyFinished(ctx context.Context, run *newsroom.Run) {
	if p.notifier != nil {
		p.notifier.RunFinished(ctx, run)
	}
}

// fetchHeadlines runs the retried run-level fetch step.
func (p *Pipeline) fetchHeadlines(ctx context.Context, run *newsroom.Run, opts RunOptions) ([]newsroom.HeadlineItem, error) {
	if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
		return nil, err
	}

	step := p.recorder.LogStep(ctx, run.ID, newsroom.RunLevelIndex, newsroom.StepFetchHeadlines, "", "")

	headlines, err := Retry(ctx, string(newsroom.StepFetchHeadlines), DefaultRetry,
		func(ctx context.Context) ([]newsroom.HeadlineItem, error) {
			return p.headlines.Fetch(ctx, opts.ArticleCount, opts.HeadlinesDate)
		})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Fetched %d headlines", len(headlines)))
	p.logger.Info("headlines fetched", "run_id", run.ID, "count", len(headlines))
	return headlines, nil
}

// processArticle runs one article through the fixed step order. It
// returns true when the article was fully processed; a duplicate headline
// returns (false, nil) and counts as neither processed nor failed.
func (p *Pipeline) processArticle(ctx context.Context, run *newsroom.Run, index int, headline newsroom.HeadlineItem, cfg *newsroom.PipelineConfig) (bool, error) {
	item, duplicate, err := p.upsertFeedItem(ctx, run, index, headline)
	if err != nil || duplicate {
		return false, err
	}

	article, err := p.draftArticle(ctx, run, index, item, cfg)
	if err != nil {
		return false, err
	}

	image, err := p.processImage(ctx, run, index, item, article, cfg)
	if err != nil {
		return false, err
	}

	siteArticles, err := p.seoPerSite(ctx, run, index, article)
	if err != nil {
		return false, err
	}

	if err := p.publishAll(ctx, run, index, item, article, image, siteArticles, cfg); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) loadConfig(ctx context.Context) *newsroom.PipelineConfig {
	cfg, err := p.config.GetConfig(ctx)
	if err != nil {
		p.logger.Warn("pipeline config read failed, using defaults", "err", err)
		return &newsroom.PipelineConfig{}
	}
	return cfg
}

func (p *Pipeline) resolveOptions(opts RunOptions, cfg *newsroom.PipelineConfig) RunOptions {
	if opts.ArticleCount <= 0 {
		opts.ArticleCount = cfg.HeadlinesToFetch
	}
	if opts.ArticleCount <= 0 {
		opts.ArticleCount = defaultHeadlineCount
	}
	if strings.TrimSpace(opts.HeadlinesDate) == "" {
		opts.HeadlinesDate = cfg.HeadlinesDate
	}
	if strings.TrimSpace(opts.HeadlinesDate) == "" {
		opts.HeadlinesDate = defaultHeadlinesDate
	}
	return opts
}

func (p *Pipeline) finalizeCancelled(ctx context.Context, run *newsroom.Run, processed int) {
	p.recorder.FinishRun(ctx, run, newsroom.RunStatusCancelled, processed, "Cancelled by user")
	p.logger.Info("run cancelled", "run_id", run.ID, "article_count", processed)
	p.notifyFinished(ctx, run)
}

// publishStatus resolves the post status new posts are created with.
func publishStatus(cfg *newsroom.PipelineConfig) string {
	if cfg != nil && strings.TrimSpace(cfg.PublishStatus) != "" {
		return cfg.PublishStatus
	}
	return defaultPublishStatus
}
