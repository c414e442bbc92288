// Package search wraps the external search providers used by the pipeline:
// reference search for drafting context and image search for the tier-3
// editorial image fallback.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

const defaultJinaBaseURL = "https://s.jina.ai"

// JinaClient queries the Jina search API for reference material on a
// headline. Search failures are not fatal to drafting; the client returns
// an empty result set and logs the cause.
type JinaClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type JinaOption func(*JinaClient)

func WithJinaBaseURL(u string) JinaOption {
	return func(c *JinaClient) { c.baseURL = u }
}

func NewJinaClient(apiKey string, logger *slog.Logger, opts ...JinaOption) *JinaClient {
	c := &JinaClient{
		apiKey:  apiKey,
		baseURL: defaultJinaBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type jinaResponse struct {
	Code int `json:"code"`
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Content     string `json:"content"`
	} `json:"data"`
}

// SearchReferences returns reference snippets for the query. Provider
// errors and malformed payloads degrade to an empty slice.
func (c *JinaClient) SearchReferences(ctx context.Context, query string) ([]newsroom.Reference, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Respond-With", "no-content")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("reference search failed", "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("reference search returned error status", "status", resp.StatusCode)
		return nil, nil
	}

	var payload jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("reference search returned non-JSON payload", "err", err)
		return nil, nil
	}

	refs := make([]newsroom.Reference, 0, len(payload.Data))
	for _, d := range payload.Data {
		refs = append(refs, newsroom.Reference{
			Title:       d.Title,
			URL:         d.URL,
			Description: d.Description,
			Content:     d.Content,
		})
	}
	return refs, nil
}
