package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pivotnews/newsroom/internal/images"
	"github.com/pivotnews/newsroom/internal/model"
	"github.com/pivotnews/newsroom/internal/newsroom"
)

const searchCandidateMax = 5

// imageRetry allows one re-attempt; image work is expensive and a second
// failure usually means the sources are genuinely unusable.
var imageRetry = RetryOptions{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 15 * time.Second}

// processImage sources, selects, edits, and transforms the article image.
func (p *Pipeline) processImage(ctx context.Context, run *newsroom.Run, index int, item *newsroom.FeedItem, article *newsroom.ArticleResult, cfg *newsroom.PipelineConfig) (*newsroom.ProcessedImage, error) {
	if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
		return nil, err
	}

	step := p.recorder.LogStep(ctx, run.ID, index, newsroom.StepProcessImage, "", "")

	image, err := Retry(ctx, string(newsroom.StepProcessImage), imageRetry,
		func(ctx context.Context) (*newsroom.ProcessedImage, error) {
			return p.sourceAndTransformImage(ctx, item, article, cfg)
		})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return nil, err
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Image: %s", image.FileName))
	return image, nil
}

// candidate is one downloaded source image with its origin URL.
type candidate struct {
	url  string
	data []byte
	mime string
}

// sourceAndTransformImage walks the 3-tier fallback chain for a source
// buffer, then runs the selection, edit, and resize stages.
func (p *Pipeline) sourceAndTransformImage(ctx context.Context, item *newsroom.FeedItem, article *newsroom.ArticleResult, cfg *newsroom.PipelineConfig) (*newsroom.ProcessedImage, error) {
	var (
		candidates []candidate
		source     newsroom.ImageSource
	)

	// Tier 1: the publisher's own editorial image from the article page.
	if c := p.scrapeSourceImage(ctx, item.Link); c != nil {
		candidates = []candidate{*c}
		source = newsroom.ImageSourceOG
	}

	// Tier 2: the image URL the feed itself carried.
	if candidates == nil && item.ImageURL != "" {
		dl, err := p.fetcher.Download(ctx, item.ImageURL, "")
		if err != nil {
			p.logger.Info("feed image download failed, falling back to image search", "img_url", item.ImageURL, "err", err)
		} else {
			candidates = []candidate{{url: item.ImageURL, data: dl.Data, mime: dl.MIMEType}}
			source = newsroom.ImageSourceFeed
		}
	}

	// Tier 3: image search.
	if candidates == nil {
		found, err := p.searchSourceImages(ctx, item.Title)
		if err != nil {
			return nil, err
		}
		candidates = found
		source = newsroom.ImageSourceSearch
	}

	selection, err := p.selectCandidate(ctx, candidates, article, cfg)
	if err != nil {
		return nil, err
	}
	idx := selection.SelectedIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	chosen := candidates[idx]

	editPrompt := fillTemplate(editTemplate(cfg.EditorPrompts), map[string]string{
		"subjectDescription": selection.SubjectDescription,
		"reason":             selection.Reason,
		"colorTarget":        selection.ColorTarget,
		"hexColor":           article.CategoryColor,
		"headline":           article.Headline,
	})

	p.logger.Info("image selected for edit",
		"source", source, "subject", selection.SubjectDescription,
		"color_target", selection.ColorTarget, "hex", article.CategoryColor,
		"bytes", len(chosen.data))

	edited, err := p.editor.EditImage(ctx, chosen.data, chosen.mime, editPrompt)
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}

	final, mime, err := p.transform.Resize(edited)
	if err != nil {
		return nil, fmt.Errorf("transform image: %w", err)
	}

	return &newsroom.ProcessedImage{
		Data:           final,
		MIMEType:       mime,
		FileName:       images.FileName(article.Headline, time.Now()),
		Source:         source,
		SourceImageURL: chosen.url,
	}, nil
}

// scrapeSourceImage attempts tier 1. All failures are logged and return
// nil; this tier never raises.
func (p *Pipeline) scrapeSourceImage(ctx context.Context, articleURL string) *candidate {
	ogURL, err := p.fetcher.ScrapeArticleImage(ctx, articleURL)
	if err != nil {
		p.logger.Info("article page scrape failed, falling back", "url", articleURL, "err", err)
		return nil
	}
	if ogURL == "" {
		p.logger.Info("article page has no og:image meta tag", "url", articleURL)
		return nil
	}

	// The article page goes along as Referer; some CDNs enforce hotlink
	// protection on editorial images.
	dl, err := p.fetcher.Download(ctx, ogURL, articleURL)
	if err != nil {
		p.logger.Info("og:image download failed, falling back", "og_url", ogURL, "err", err)
		return nil
	}
	return &candidate{url: ogURL, data: dl.Data, mime: dl.MIMEType}
}

// searchSourceImages attempts tier 3: search, then download each hit
// independently. The step fails only when zero candidates download.
func (p *Pipeline) searchSourceImages(ctx context.Context, query string) ([]candidate, error) {
	hits, err := p.imageSearch.SearchImages(ctx, query, searchCandidateMax)
	if err != nil {
		return nil, fmt.Errorf("image search: %w", err)
	}
	if len(hits) == 0 {
		return nil, errors.New("no images found from image search")
	}

	var (
		mu         sync.Mutex
		candidates []candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, hit := range hits {
		hit := hit
		g.Go(func() error {
			dl, err := p.fetcher.Download(gctx, hit.URL, "")
			if err != nil {
				p.logger.Info("candidate image download failed", "url", hit.URL, "err", err)
				return nil
			}
			mu.Lock()
			candidates = append(candidates, candidate{url: hit.URL, data: dl.Data, mime: dl.MIMEType})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("failed to download any candidate images")
	}
	return candidates, nil
}

// selectCandidate sends the candidate buffers to the vision model and
// decodes its structured choice.
func (p *Pipeline) selectCandidate(ctx context.Context, candidates []candidate, article *newsroom.ArticleResult, cfg *newsroom.PipelineConfig) (*model.ImageSelection, error) {
	system, userTmpl := selectionPrompts(cfg.EditorPrompts)
	user := fillTemplate(userTmpl, map[string]string{
		"imageCount":    strconv.Itoa(len(candidates)),
		"imageCountMax": strconv.Itoa(len(candidates) - 1),
		"articleTitle":  article.Headline,
		"category":      article.Category,
		"colorHint":     article.CategoryColor,
	})

	inputs := make([]model.ImageCandidate, len(candidates))
	for i, c := range candidates {
		inputs[i] = model.ImageCandidate{URL: c.url, Data: c.data, MIMEType: c.mime}
	}

	selection, err := p.selector.SelectImage(ctx, inputs, system, user)
	if err != nil {
		return nil, fmt.Errorf("select image: %w", err)
	}
	return selection, nil
}
