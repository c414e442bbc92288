package headlines

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// RSSSource is an alternative headline source backed by a public RSS or
// Atom feed. Items with no usable body are expanded by fetching the linked
// page and extracting the readable article text.
type RSSSource struct {
	feedURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewRSSSource(feedURL string, logger *slog.Logger) *RSSSource {
	return &RSSSource{
		feedURL: feedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Fetch parses the feed and returns up to count items, newest first as the
// feed orders them. The date selector is ignored; feeds only expose their
// current window.
func (s *RSSSource) Fetch(ctx context.Context, count int, _ string) ([]newsroom.HeadlineItem, error) {
	fp := gofeed.NewParser()
	fp.Client = s.client

	feed, err := fp.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feedURL, err)
	}

	items := make([]newsroom.HeadlineItem, 0, count)
	for _, entry := range feed.Items {
		if len(items) >= count {
			break
		}
		if entry.Link == "" || entry.Title == "" {
			continue
		}

		body := entry.Content
		if strings.TrimSpace(body) == "" {
			body = entry.Description
		}
		if strings.TrimSpace(body) == "" {
			body = s.extractBody(ctx, entry.Link)
		}

		var imageURL string
		if entry.Image != nil {
			imageURL = entry.Image.URL
		}
		var published string
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.Format(time.RFC3339)
		} else {
			published = entry.Published
		}

		items = append(items, newsroom.HeadlineItem{
			NewsID:      feedItemID(entry),
			Title:       entry.Title,
			URL:         entry.Link,
			ImageURL:    imageURL,
			Text:        body,
			PublishedAt: published,
		})
	}
	return items, nil
}

// extractBody fetches the linked page and pulls the readable article text.
// Extraction failure is tolerated; the drafting prompt degrades to the
// title alone.
func (s *RSSSource) extractBody(ctx context.Context, link string) string {
	reqCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", link, nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("feed item body fetch failed", "url", link, "err", err)
		return ""
	}
	defer resp.Body.Close()

	article, err := readability.FromReader(resp.Body, resp.Request.URL)
	if err != nil {
		s.logger.Warn("feed item body extraction failed", "url", link, "err", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func feedItemID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Link
}
