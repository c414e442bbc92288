package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pivotnews/newsroom/internal/model"
	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/search"
)

func imageTestArticle() *newsroom.ArticleResult {
	return &newsroom.ArticleResult{
		Headline:      "Fed Cuts Rates",
		Category:      "Finance",
		CategoryColor: "#00AB76",
		CleanedHTML:   "<p>Body.</p>",
	}
}

func TestSourceImage_OGImageWins(t *testing.T) {
	env := newTestEnv(t, nil)
	item := &newsroom.FeedItem{
		ID:       "rss-1",
		Title:    "Fed Cuts Rates",
		Link:     "https://pub.example/story",
		ImageURL: "https://feed.example/feed.jpg",
	}
	env.fetcher.available["https://feed.example/feed.jpg"] = []byte("feed-bytes")

	img, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err != nil {
		t.Fatalf("sourceAndTransformImage: %v", err)
	}
	if img.Source != newsroom.ImageSourceOG {
		t.Errorf("source = %s, want og:image", img.Source)
	}
	if img.SourceImageURL != "https://pub.example/og.jpg" {
		t.Errorf("source url = %s, want the scraped og:image", img.SourceImageURL)
	}
	if !strings.HasSuffix(img.FileName, ".jpg") || !strings.HasPrefix(img.FileName, "fed-cuts-rates-") {
		t.Errorf("file name = %s, want slug-timestamp.jpg", img.FileName)
	}
}

func TestSourceImage_FeedURLWhenScrapeEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.ogURL = ""
	env.fetcher.available["https://feed.example/feed.jpg"] = []byte("feed-bytes")

	item := &newsroom.FeedItem{
		ID:       "rss-1",
		Title:    "Fed Cuts Rates",
		Link:     "https://pub.example/story",
		ImageURL: "https://feed.example/feed.jpg",
	}

	img, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err != nil {
		t.Fatalf("sourceAndTransformImage: %v", err)
	}
	if img.Source != newsroom.ImageSourceFeed {
		t.Errorf("source = %s, want img_url", img.Source)
	}
	if img.SourceImageURL != "https://feed.example/feed.jpg" {
		t.Errorf("source url = %s, want the feed image", img.SourceImageURL)
	}
}

func TestSourceImage_ScrapeErrorFallsThrough(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.scrapeErr = errors.New("page fetch refused")
	env.fetcher.available["https://feed.example/feed.jpg"] = []byte("feed-bytes")

	item := &newsroom.FeedItem{
		ID:       "rss-1",
		Title:    "Fed Cuts Rates",
		Link:     "https://pub.example/story",
		ImageURL: "https://feed.example/feed.jpg",
	}

	img, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err != nil {
		t.Fatalf("scrape failures must never fail the step: %v", err)
	}
	if img.Source != newsroom.ImageSourceFeed {
		t.Errorf("source = %s, want img_url after scrape failure", img.Source)
	}
}

func TestSourceImage_SearchTierPartialDownloads(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.ogURL = ""
	env.pipeline.imageSearch = &fakeImageSearch{hits: []search.ImageHit{
		{Title: "A", URL: "https://img.example/a.jpg"},
		{Title: "B", URL: "https://img.example/b.jpg"},
		{Title: "C", URL: "https://img.example/c.jpg"},
	}}
	// Only one of the three hits actually downloads.
	env.fetcher.available = map[string][]byte{
		"https://img.example/b.jpg": []byte("b-bytes"),
	}

	item := &newsroom.FeedItem{ID: "rss-1", Title: "Fed Cuts Rates", Link: "https://pub.example/story"}

	img, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err != nil {
		t.Fatalf("one downloadable candidate is enough: %v", err)
	}
	if img.Source != newsroom.ImageSourceSearch {
		t.Errorf("source = %s, want google_cse", img.Source)
	}
	if img.SourceImageURL != "https://img.example/b.jpg" {
		t.Errorf("source url = %s, want the downloadable hit", img.SourceImageURL)
	}
}

func TestSourceImage_SearchTierZeroDownloadsFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.ogURL = ""
	env.pipeline.imageSearch = &fakeImageSearch{hits: []search.ImageHit{
		{Title: "A", URL: "https://img.example/a.jpg"},
	}}
	env.fetcher.available = nil

	item := &newsroom.FeedItem{ID: "rss-1", Title: "Fed Cuts Rates", Link: "https://pub.example/story"}

	_, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err == nil {
		t.Fatal("want error when no candidate downloads")
	}
	if !strings.Contains(err.Error(), "failed to download any candidate images") {
		t.Errorf("err = %v, want the zero-candidates error", err)
	}
}

func TestSourceImage_SearchTierNoHitsFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.ogURL = ""
	env.pipeline.imageSearch = &fakeImageSearch{}

	item := &newsroom.FeedItem{ID: "rss-1", Title: "Fed Cuts Rates", Link: "https://pub.example/story"}

	_, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err == nil {
		t.Fatal("want error when image search returns nothing")
	}
	if !strings.Contains(err.Error(), "no images found from image search") {
		t.Errorf("err = %v, want the no-results error", err)
	}
}

// outOfRangeSelector returns a fixed index to exercise the clamp.
type outOfRangeSelector struct{ index int }

func (s outOfRangeSelector) SelectImage(_ context.Context, _ []model.ImageCandidate, _, _ string) (*model.ImageSelection, error) {
	return &model.ImageSelection{
		SelectedIndex:      s.index,
		Reason:             "best available",
		SubjectDescription: "a building",
		ColorTarget:        "the sign",
	}, nil
}

func TestSourceImage_SelectionIndexClamped(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.selector = outOfRangeSelector{index: 99}

	item := &newsroom.FeedItem{ID: "rss-1", Title: "Fed Cuts Rates", Link: "https://pub.example/story"}

	img, err := env.pipeline.sourceAndTransformImage(context.Background(), item, imageTestArticle(), &newsroom.PipelineConfig{})
	if err != nil {
		t.Fatalf("sourceAndTransformImage: %v", err)
	}
	// The only candidate is the og:image; index 99 clamps to it.
	if img.SourceImageURL != "https://pub.example/og.jpg" {
		t.Errorf("source url = %s, want the single candidate", img.SourceImageURL)
	}
}
