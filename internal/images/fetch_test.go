package images

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeArticleImage_OGImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `<html><head>
			<meta property="og:image" content="https://cdn.example/hero.jpg"/>
			<meta name="twitter:image" content="https://cdn.example/tw.jpg"/>
		</head><body></body></html>`)
	}))
	defer server.Close()

	f := NewFetcher()
	got, err := f.ScrapeArticleImage(context.Background(), server.URL+"/story")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/hero.jpg", got)
}

func TestScrapeArticleImage_TwitterFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta name="twitter:image" content="https://cdn.example/tw.jpg"/></head></html>`)
	}))
	defer server.Close()

	f := NewFetcher()
	got, err := f.ScrapeArticleImage(context.Background(), server.URL+"/story")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/tw.jpg", got)
}

func TestScrapeArticleImage_RelativeURLResolved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/images/hero.jpg"/></head></html>`)
	}))
	defer server.Close()

	f := NewFetcher()
	got, err := f.ScrapeArticleImage(context.Background(), server.URL+"/news/story")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/images/hero.jpg", got)
}

func TestScrapeArticleImage_NoTagReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>no meta here</title></head></html>`)
	}))
	defer server.Close()

	f := NewFetcher()
	got, err := f.ScrapeArticleImage(context.Background(), server.URL)
	require.NoError(t, err, "a missing tag is not an error")
	assert.Empty(t, got)
}

func TestScrapeArticleImage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.ScrapeArticleImage(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestDownload(t *testing.T) {
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	f := NewFetcher()
	dl, err := f.Download(context.Background(), server.URL+"/img.png", "https://pub.example/news/story?a=1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), dl.Data)
	assert.Equal(t, "image/png", dl.MIMEType)

	// Only the origin of the referring page is sent, not the full path.
	assert.Equal(t, "https://pub.example/", gotReferer)
}

func TestDownload_NoReferer(t *testing.T) {
	var sawReferer bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawReferer = r.Header.Get("Referer") != ""
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Download(context.Background(), server.URL+"/img.jpg", "")
	require.NoError(t, err)
	assert.False(t, sawReferer)
}

func TestDownload_RejectsNonImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not an image</html>")
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Download(context.Background(), server.URL+"/img.jpg", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-image content-type")
}

func TestDownload_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Download(context.Background(), server.URL+"/img.jpg", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty body")
}
