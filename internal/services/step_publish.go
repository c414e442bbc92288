package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// publishRetry allows a single re-attempt per site. Post creation is not
// idempotent, so a retry after a half-completed attempt can leave a
// duplicate draft behind; the retry warns so an operator can check.
var publishRetry = RetryOptions{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 15 * time.Second}

// publishAll fans the article out to every active site. Each site is an
// independent failure domain: a failed site gets a failed step and an
// entry in the error list, and its siblings still attempt to publish. The
// article as a whole fails only when no site succeeded.
func (p *Pipeline) publishAll(ctx context.Context, run *newsroom.Run, index int, item *newsroom.FeedItem, article *newsroom.ArticleResult, image *newsroom.ProcessedImage, siteArticles []newsroom.SiteArticle, cfg *newsroom.PipelineConfig) error {
	if len(siteArticles) == 0 {
		return nil
	}

	var siteErrs []error
	for _, sa := range siteArticles {
		if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
			return err
		}

		if err := p.publishToSite(ctx, run, index, item, article, image, sa, cfg); err != nil {
			if errors.Is(err, newsroom.ErrRunCancelled) {
				return err
			}
			siteErrs = append(siteErrs, fmt.Errorf("%s: %w", sa.Site.Slug, err))
		}
	}

	if len(siteErrs) == len(siteArticles) {
		return fmt.Errorf("publish failed on every site: %w", errors.Join(siteErrs...))
	}
	for _, err := range siteErrs {
		p.logger.Error("site publish failed", "run_id", run.ID, "article_index", index, "err", err)
	}
	return nil
}

// publishToSite uploads the media, creates the post, and sets the
// featured image as one retried unit, then pushes SEO metadata and
// persists the article record outside it.
func (p *Pipeline) publishToSite(ctx context.Context, run *newsroom.Run, index int, item *newsroom.FeedItem, article *newsroom.ArticleResult, image *newsroom.ProcessedImage, sa newsroom.SiteArticle, cfg *newsroom.PipelineConfig) error {
	step := p.recorder.LogStep(ctx, run.ID, index, newsroom.StepPublish, sa.Site.Slug, "")
	label := step.Name

	opts := publishRetry
	opts.ShouldRetry = func(err error) bool {
		// Post creation is not idempotent. The retry is still worth it
		// for transient failures, but the possible duplicate draft is
		// surfaced to operators rather than silently accepted.
		p.logger.Warn("retrying publish; a duplicate draft post may exist on the site",
			"site", sa.Site.Slug, "run_id", run.ID, "err", err)
		return true
	}

	result, err := Retry(ctx, label, opts, func(ctx context.Context) (*newsroom.PublishResult, error) {
		media, err := p.publisher.UploadMedia(ctx, sa.Site, image.Data, image.FileName, image.MIMEType)
		if err != nil {
			return nil, err
		}
		post, err := p.publisher.CreatePost(ctx, sa.Site, sa.MetaTitle, article.CleanedHTML, sa.CategoryID, publishStatus(cfg))
		if err != nil {
			return nil, err
		}
		if err := p.publisher.SetFeaturedImage(ctx, sa.Site, post.ID, media.ID); err != nil {
			return nil, err
		}
		return &newsroom.PublishResult{
			SiteSlug: sa.Site.Slug,
			PostID:   post.ID,
			MediaID:  media.ID,
			PostLink: post.Link,
			ImageURL: media.SourceURL,
		}, nil
	})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return err
	}

	// SEO-plugin metadata rides outside the retried unit: its failure
	// never re-creates the post, and the post is considered published
	// without it.
	if err := p.publisher.UpdateRankMathMeta(ctx, sa.Site, result.PostID, sa.MetaTitle, sa.MetaDescription, sa.Keyword); err != nil {
		p.logger.Warn("SEO metadata push failed (non-fatal)",
			"site", sa.Site.Slug, "post_id", result.PostID, "err", err)
	}

	record := &newsroom.AIArticle{
		ID:             newsroom.GenerateID("art"),
		FeedItemID:     item.ID,
		Title:          sa.MetaTitle,
		Content:        article.CleanedHTML,
		SiteID:         sa.Site.ID,
		WPPostID:       result.PostID,
		WPMediaID:      result.MediaID,
		WPImageURL:     result.ImageURL,
		ImageSource:    string(image.Source),
		SourceImageURL: image.SourceImageURL,
		CreatedAt:      time.Now(),
	}
	if err := p.articles.InsertArticle(ctx, record); err != nil {
		err = fmt.Errorf("save article record: %w", err)
		p.recorder.FailStep(ctx, step, err.Error())
		return err
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Published post %d to %s", result.PostID, sa.Site.Slug))
	return nil
}
