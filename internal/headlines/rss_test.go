package headlines

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssFeed(itemsXML string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title><link>https://pub.example</link>%s</channel></rss>`, itemsXML)
}

func TestRSSFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(`
			<item>
				<guid>guid-1</guid>
				<title>First Story</title>
				<link>https://pub.example/one</link>
				<description>Body of the first story.</description>
				<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
			</item>
			<item>
				<guid>guid-2</guid>
				<title>Second Story</title>
				<link>https://pub.example/two</link>
				<description>Body of the second story.</description>
			</item>
			<item>
				<title>No Link</title>
				<description>skipped</description>
			</item>`))
	}))
	defer server.Close()

	src := NewRSSSource(server.URL, slog.Default())
	items, err := src.Fetch(context.Background(), 5, "")
	require.NoError(t, err)
	require.Len(t, items, 2, "an item without a link is skipped")

	assert.Equal(t, "guid-1", items[0].NewsID)
	assert.Equal(t, "First Story", items[0].Title)
	assert.Equal(t, "https://pub.example/one", items[0].URL)
	assert.Equal(t, "Body of the first story.", items[0].Text)
	assert.NotEmpty(t, items[0].PublishedAt)

	assert.Equal(t, "guid-2", items[1].NewsID)
}

func TestRSSFetch_CountLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items string
		for i := 0; i < 10; i++ {
			items += fmt.Sprintf(`<item><guid>g-%d</guid><title>Story %d</title><link>https://pub.example/%d</link><description>b</description></item>`, i, i, i)
		}
		fmt.Fprint(w, rssFeed(items))
	}))
	defer server.Close()

	src := NewRSSSource(server.URL, slog.Default())
	items, err := src.Fetch(context.Background(), 3, "today")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRSSFetch_BodyExtractedFromLinkedPage(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(fmt.Sprintf(
			`<item><guid>g-1</guid><title>Story</title><link>%s/article</link></item>`, server.URL)))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Story</title></head><body><article>
			<h1>Story</h1>
			<p>The readable body of the article, long enough for the extractor to keep.
			It continues with several sentences so the content scores above the noise
			threshold and survives extraction.</p>
		</article></body></html>`)
	})

	src := NewRSSSource(server.URL+"/feed", slog.Default())
	items, err := src.Fetch(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Text, "readable body of the article")
}

func TestRSSFetch_BadFeedFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not xml at all")
	}))
	defer server.Close()

	src := NewRSSSource(server.URL, slog.Default())
	_, err := src.Fetch(context.Background(), 3, "")
	require.Error(t, err)
}
