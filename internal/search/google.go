package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultCSEBaseURL = "https://www.googleapis.com/customsearch/v1"

// GoogleCSEClient performs image searches via the Google Custom Search
// Engine API. Used as the last resort in the image fallback chain, so
// provider errors degrade to an empty candidate list.
type GoogleCSEClient struct {
	apiKey  string
	cx      string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type GoogleCSEOption func(*GoogleCSEClient)

func WithCSEBaseURL(u string) GoogleCSEOption {
	return func(c *GoogleCSEClient) { c.baseURL = u }
}

func NewGoogleCSEClient(apiKey, cx string, logger *slog.Logger, opts ...GoogleCSEOption) *GoogleCSEClient {
	c := &GoogleCSEClient{
		apiKey:  apiKey,
		cx:      cx,
		baseURL: defaultCSEBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImageHit is one image search result with the page it came from, for use
// as a download referer.
type ImageHit struct {
	Title       string
	URL         string
	ContextLink string
}

type cseResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Image struct {
			ContextLink string `json:"contextLink"`
		} `json:"image"`
	} `json:"items"`
}

// SearchImages returns up to num large photo results for the query.
func (c *GoogleCSEClient) SearchImages(ctx context.Context, query string, num int) ([]ImageHit, error) {
	params := url.Values{
		"key":        {c.apiKey},
		"cx":         {c.cx},
		"searchType": {"image"},
		"num":        {strconv.Itoa(num)},
		"imgSize":    {"large"},
		"imgType":    {"photo"},
		"q":          {query},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("image search failed", "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("image search returned error status", "status", resp.StatusCode)
		return nil, nil
	}

	var payload cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("image search returned malformed payload", "err", err)
		return nil, nil
	}

	hits := make([]ImageHit, 0, len(payload.Items))
	for _, item := range payload.Items {
		hits = append(hits, ImageHit{
			Title:       item.Title,
			URL:         item.Link,
			ContextLink: item.Image.ContextLink,
		})
	}
	return hits, nil
}
