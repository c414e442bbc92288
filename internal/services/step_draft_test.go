package services

import (
	"strings"
	"testing"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

func TestCleanText_EntitiesAndUnicode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"html entities", "Bonds &amp; yields &hellip; fell", `Bonds & yields ... fell`},
		{"curly quotes", "The Fed said “cut” and didn’t blink", `The Fed said "cut" and didn't blink`},
		{"dashes to hyphen", "a 2–3 point move — large", "a 2-3 point move - large"},
		{"literal backslash n removed", `line one\nline two`, "line oneline two"},
		{"run spaces collapsed", "a   b\t\tc", "a b c"},
		{"inter tag whitespace removed", "<p>a</p>  \n <p>b</p>", "<p>a</p><p>b</p>"},
		{"nbsp flattened", "one&nbsp;two", "one two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanText(tc.in); got != tc.want {
				t.Errorf("cleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanText_CollapsesBlankRuns(t *testing.T) {
	got := cleanText("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("got %q, want a single blank line", got)
	}
}

func TestExtractMetadata_FullMarkers(t *testing.T) {
	html := `<article><h1>Fed Cuts Rates</h1><p>The cut landed today.</p><p><strong>Tags:</strong> fed, rates, policy</p><p><strong>Category:</strong> Finance</p></article>`

	headline, category, tags, body := extractMetadata(html)

	if headline != "Fed Cuts Rates" {
		t.Errorf("headline = %q", headline)
	}
	if category != "Finance" {
		t.Errorf("category = %q, want Finance", category)
	}
	if len(tags) != 3 || tags[0] != "fed" || tags[1] != "rates" || tags[2] != "policy" {
		t.Errorf("tags = %v", tags)
	}
	if strings.Contains(body, "<h1") {
		t.Errorf("body still contains the h1: %q", body)
	}
	if strings.Contains(body, "Category:") || strings.Contains(body, "Tags:") {
		t.Errorf("body still contains marker lines: %q", body)
	}
	if !strings.Contains(body, "The cut landed today.") {
		t.Errorf("body lost its content: %q", body)
	}
}

func TestExtractMetadata_MissingMarkersDefault(t *testing.T) {
	headline, category, tags, body := extractMetadata("<p>Just a paragraph.</p>")

	if headline != "" {
		t.Errorf("headline = %q, want empty", headline)
	}
	if category != "Uncategorized" {
		t.Errorf("category = %q, want Uncategorized", category)
	}
	if tags != nil {
		t.Errorf("tags = %v, want none", tags)
	}
	if body != "<p>Just a paragraph.</p>" {
		t.Errorf("body = %q", body)
	}
}

func TestExtractMetadata_OnlyFirstH1Stripped(t *testing.T) {
	html := `<h1>Main Title</h1><p>Intro.</p><h1>Section Title</h1><p>More.</p>`

	headline, _, _, body := extractMetadata(html)

	if headline != "Main Title" {
		t.Errorf("headline = %q", headline)
	}
	if !strings.Contains(body, "Section Title") {
		t.Errorf("second h1 should survive: %q", body)
	}
	if strings.Contains(body, "Main Title") {
		t.Errorf("first h1 should be stripped: %q", body)
	}
}

func TestExtractMetadata_EmptyParagraphsRemoved(t *testing.T) {
	html := `<h1>Title</h1><p>  </p><p>Kept.</p>`

	_, _, _, body := extractMetadata(html)

	if body != "<p>Kept.</p>" {
		t.Errorf("body = %q, want only the kept paragraph", body)
	}
}

func TestResolveCategory(t *testing.T) {
	custom := newsroom.CategoryMap{"Finance": {ID: 12, Color: "#112233"}}

	if got := resolveCategory(custom, "Finance"); got.ID != 12 || got.Color != "#112233" {
		t.Errorf("custom map lookup = %+v", got)
	}
	// A configured map wins completely; unknown names do not fall through
	// to the built-in defaults.
	if got := resolveCategory(custom, "Technology"); got != neutralCategory {
		t.Errorf("unknown name in custom map = %+v, want neutral", got)
	}
	if got := resolveCategory(nil, "Finance"); got != defaultCategoryMap["Finance"] {
		t.Errorf("nil map default lookup = %+v", got)
	}
	if got := resolveCategory(nil, "Gardening"); got != neutralCategory {
		t.Errorf("unknown name with nil map = %+v, want neutral", got)
	}
}
