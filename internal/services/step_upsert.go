package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
)

// upsertFeedItem resolves a headline against history by canonical URL.
// A known link is a duplicate, not a failure: the existing row is marked
// eligible for drafting, the step is recorded as skipped, and the article
// pipeline stops here.
func (p *Pipeline) upsertFeedItem(ctx context.Context, run *newsroom.Run, index int, headline newsroom.HeadlineItem) (*newsroom.FeedItem, bool, error) {
	if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
		return nil, false, err
	}

	step := p.recorder.LogStep(ctx, run.ID, index, newsroom.StepUpsertRSSFeed, "", headline.Title)

	type upsertResult struct {
		item      *newsroom.FeedItem
		duplicate bool
	}

	result, err := Retry(ctx, string(newsroom.StepUpsertRSSFeed), DefaultRetry,
		func(ctx context.Context) (upsertResult, error) {
			existing, err := p.feeds.FindByLink(ctx, headline.URL)
			if err == nil {
				if err := p.feeds.MarkShouldDraft(ctx, existing.ID); err != nil {
					return upsertResult{}, fmt.Errorf("mark existing item: %w", err)
				}
				return upsertResult{item: existing, duplicate: true}, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return upsertResult{}, fmt.Errorf("look up link: %w", err)
			}

			item := &newsroom.FeedItem{
				ID:       newsroom.GenerateID("rss"),
				Title:    headline.Title,
				Link:     headline.URL,
				PubDate:  headline.PublishedAt,
				Content:  headline.Text,
				ImageURL: headline.ImageURL,
			}
			if err := p.feeds.InsertItem(ctx, item); err != nil {
				return upsertResult{}, fmt.Errorf("insert feed item: %w", err)
			}
			return upsertResult{item: item}, nil
		})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return nil, false, err
	}

	if result.duplicate {
		p.recorder.SkipStep(ctx, step, "Already exists, marked should_draft_article")
		return result.item, true, nil
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Created RSS feed item: %s", result.item.ID))
	return result.item, false, nil
}
