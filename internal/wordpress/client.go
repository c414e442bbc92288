// Package wordpress is a minimal WordPress REST client covering the calls
// the publish step needs: media upload, post creation, featured image, and
// RankMath SEO metadata.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

const (
	mediaUploadTimeout = 60 * time.Second
	postTimeout        = 30 * time.Second
)

// Credentials is one site's application-password login, keyed by site slug.
type Credentials struct {
	Slug        string
	Username    string
	AppPassword string
}

// Client publishes to WordPress instances. Credentials are resolved per
// site slug at call time so one client serves every active site.
type Client struct {
	creds  map[string]Credentials
	client *http.Client
}

func NewClient(creds []Credentials) *Client {
	m := make(map[string]Credentials, len(creds))
	for _, c := range creds {
		m[c.Slug] = c
	}
	return &Client{creds: m, client: &http.Client{}}
}

// Media is an uploaded media attachment.
type Media struct {
	ID        int
	SourceURL string
}

// Post is a created post.
type Post struct {
	ID   int
	Link string
}

func (c *Client) credsFor(slug string) (Credentials, error) {
	creds, ok := c.creds[slug]
	if !ok {
		return Credentials{}, fmt.Errorf("no WordPress credentials configured for site %q", slug)
	}
	return creds, nil
}

func authHeader(creds Credentials) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds.Username+":"+creds.AppPassword))
}

func siteBase(site newsroom.Site) string {
	return strings.TrimRight(site.BaseURL, "/")
}

// UploadMedia uploads an image as a media attachment.
func (c *Client) UploadMedia(ctx context.Context, site newsroom.Site, data []byte, fileName, mimeType string) (*Media, error) {
	creds, err := c.credsFor(site.Slug)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, mediaUploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", siteBase(site)+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader(creds))
	req.Header.Set("Content-Disposition", "attachment; filename="+fileName)
	req.Header.Set("Content-Type", mimeType)

	var payload struct {
		ID        int    `json:"id"`
		SourceURL string `json:"source_url"`
	}
	if err := c.do(req, site.Slug, "media upload", &payload); err != nil {
		return nil, err
	}
	return &Media{ID: payload.ID, SourceURL: payload.SourceURL}, nil
}

// CreatePost creates a post in the given category with the given status
// ("draft" or "publish").
func (c *Client) CreatePost(ctx context.Context, site newsroom.Site, title, content string, categoryID int, status string) (*Post, error) {
	creds, err := c.credsFor(site.Slug)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"title":      title,
		"content":    content,
		"status":     status,
		"categories": []int{categoryID},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal post body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", siteBase(site)+"/wp-json/wp/v2/posts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader(creds))
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		ID   int    `json:"id"`
		Link string `json:"link"`
	}
	if err := c.do(req, site.Slug, "create post", &payload); err != nil {
		return nil, err
	}
	return &Post{ID: payload.ID, Link: payload.Link}, nil
}

// SetFeaturedImage attaches an uploaded media item as the post's featured
// image.
func (c *Client) SetFeaturedImage(ctx context.Context, site newsroom.Site, postID, mediaID int) error {
	creds, err := c.credsFor(site.Slug)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{"featured_media": mediaID})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d", siteBase(site), postID)
	req, err := http.NewRequestWithContext(reqCtx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader(creds))
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, site.Slug, "set featured image", nil)
}

// UpdateRankMathMeta pushes SEO metadata to the RankMath plugin endpoint.
// Callers treat a failure here as a warning, not a publish failure.
func (c *Client) UpdateRankMathMeta(ctx context.Context, site newsroom.Site, postID int, metaTitle, metaDescription, focusKeyword string) error {
	creds, err := c.credsFor(site.Slug)
	if err != nil {
		return err
	}

	form := url.Values{
		"post_id":                 {strconv.Itoa(postID)},
		"rank_math_title":         {metaTitle},
		"rank_math_description":   {metaDescription},
		"rank_math_focus_keyword": {focusKeyword},
	}

	reqCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", siteBase(site)+"/wp-json/rank-math-api/v1/update-meta", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader(creds))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, site.Slug, "rankmath meta update", nil)
}

func (c *Client) do(req *http.Request, slug, op string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s (%s): %w", op, slug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s (%s): HTTP %d: %s", op, slug, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s (%s): decode response: %w", op, slug, err)
	}
	return nil
}
