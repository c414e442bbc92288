// Package images resolves and prepares editorial images: og:image scraping,
// hotlink-tolerant downloads, and the final resize/re-encode.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	scrapeTimeout   = 12 * time.Second
	downloadTimeout = 15 * time.Second

	// Raw page HTML is capped before parsing.
	maxPageBytes = 2 * 1024 * 1024
	// Candidate image downloads are capped as well.
	maxImageBytes = 20 * 1024 * 1024

	browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Fetcher scrapes article pages for editorial images and downloads image
// URLs with browser-like headers.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{}}
}

// Downloaded is an image buffer with its content type.
type Downloaded struct {
	Data     []byte
	MIMEType string
}

// ScrapeArticleImage fetches the article page and extracts the first
// og:image, og:image:url, or twitter:image meta tag. Returns "" when the
// page has no such tag; errors only on fetch/parse failure. Relative URLs
// are resolved against the page origin.
func (f *Fetcher) ScrapeArticleImage(ctx context.Context, articleURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	// Browser-like headers get past basic bot blocking on publisher pages.
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("article page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse article HTML: %w", err)
	}

	imageURL := firstMetaContent(doc,
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
	)
	if imageURL == "" {
		return "", nil
	}

	return resolveImageURL(articleURL, imageURL)
}

// firstMetaContent returns the content attribute of the first selector that
// matches. goquery matches on attributes, so tag attribute order in the
// source HTML does not matter.
func firstMetaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

// resolveImageURL resolves a possibly-relative image URL against the
// article page origin.
func resolveImageURL(pageURL, imageURL string) (string, error) {
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page URL: %w", err)
	}
	ref, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("parse image URL: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Download fetches an image URL. Pass referer to satisfy CDN hotlink
// protection; its origin (with a trailing slash) is sent as the Referer
// header. Non-image content types are rejected.
func (f *Fetcher) Download(ctx context.Context, imageURL, referer string) (*Downloaded, error) {
	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if referer != "" {
		if origin, err := url.Parse(referer); err == nil && origin.Scheme != "" {
			req.Header.Set("Referer", origin.Scheme+"://"+origin.Host+"/")
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("image download failed: HTTP %d from %s", resp.StatusCode, imageURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL returned non-image content-type %q: %s", contentType, imageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image download returned empty body: %s", imageURL)
	}

	return &Downloaded{Data: data, MIMEType: contentType}, nil
}
