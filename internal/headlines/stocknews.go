// Package headlines fetches trending news headlines and expands them into
// normalized items ready for the drafting pipeline.
package headlines

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

const defaultStockNewsBaseURL = "https://stocknewsapi.com/api/v1"

// StockNewsClient talks to the StockNews API. Fetch returns trending
// headlines for a date selector; each item is then expanded with the full
// article excerpt when one is available.
type StockNewsClient struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type StockNewsOption func(*StockNewsClient)

// WithStockNewsBaseURL overrides the API endpoint, used by tests.
func WithStockNewsBaseURL(u string) StockNewsOption {
	return func(c *StockNewsClient) { c.baseURL = u }
}

func NewStockNewsClient(token string, logger *slog.Logger, opts ...StockNewsOption) *StockNewsClient {
	c := &StockNewsClient{
		token:   token,
		baseURL: defaultStockNewsBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type stockNewsItem struct {
	NewsID     string `json:"news_id"`
	Title      string `json:"title"`
	NewsURL    string `json:"news_url"`
	ImageURL   string `json:"image_url"`
	Text       string `json:"text"`
	Date       string `json:"date"`
	SourceName string `json:"source_name"`
}

type stockNewsResponse struct {
	Data []stockNewsItem `json:"data"`
}

// Fetch returns up to count trending headlines for the given date selector
// ("today", "yesterday", or "MMDDYYYY-MMDDYYYY"). Fewer items than requested
// is not an error. Each headline is expanded with its article excerpt; an
// expansion failure falls back to the trending item's own fields.
func (c *StockNewsClient) Fetch(ctx context.Context, count int, dateSelector string) ([]newsroom.HeadlineItem, error) {
	if dateSelector == "" {
		dateSelector = "today"
	}

	params := url.Values{
		"token": {c.token},
		"date":  {dateSelector},
		"items": {strconv.Itoa(count)},
	}
	var trending stockNewsResponse
	if err := c.getJSON(ctx, c.baseURL+"/trending-headlines?"+params.Encode(), &trending); err != nil {
		return nil, fmt.Errorf("fetch trending headlines: %w", err)
	}

	items := make([]newsroom.HeadlineItem, 0, len(trending.Data))
	for _, h := range trending.Data {
		source := h
		expanded, err := c.fetchExcerpt(ctx, h.NewsID)
		if err != nil {
			c.logger.Warn("headline excerpt expansion failed", "news_id", h.NewsID, "err", err)
		} else if expanded != nil {
			source = mergeHeadline(h, *expanded)
		}

		items = append(items, newsroom.HeadlineItem{
			NewsID:      h.NewsID,
			Title:       source.Title,
			URL:         source.NewsURL,
			ImageURL:    source.ImageURL,
			Text:        source.Text,
			PublishedAt: source.Date,
		})
	}
	return items, nil
}

// fetchExcerpt looks up the full article record for one headline. A missing
// record returns (nil, nil).
func (c *StockNewsClient) fetchExcerpt(ctx context.Context, newsID string) (*stockNewsItem, error) {
	params := url.Values{
		"token":   {c.token},
		"news_id": {newsID},
		"type":    {"article"},
	}
	var resp stockNewsResponse
	if err := c.getJSON(ctx, c.baseURL+"/category?section=general&items=100&"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

// mergeHeadline overlays the expanded record on the trending item, keeping
// trending values for any field the expansion left empty.
func mergeHeadline(base, expanded stockNewsItem) stockNewsItem {
	out := expanded
	if out.Title == "" {
		out.Title = base.Title
	}
	if out.NewsURL == "" {
		out.NewsURL = base.NewsURL
	}
	if out.ImageURL == "" {
		out.ImageURL = base.ImageURL
	}
	if out.Text == "" {
		out.Text = base.Text
	}
	if out.Date == "" {
		out.Date = base.Date
	}
	return out
}

func (c *StockNewsClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stocknews returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
