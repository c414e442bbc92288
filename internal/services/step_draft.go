package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// contentSnippetLimit truncates the feed body before it goes into the
// drafting prompt.
const contentSnippetLimit = 4000

// searchContentLimit caps the serialized reference material.
const searchContentLimit = 300000

// draftArticle gathers reference material, drafts the article, and
// extracts the structured metadata from the generated HTML.
func (p *Pipeline) draftArticle(ctx context.Context, run *newsroom.Run, index int, item *newsroom.FeedItem, cfg *newsroom.PipelineConfig) (*newsroom.ArticleResult, error) {
	if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
		return nil, err
	}

	step := p.recorder.LogStep(ctx, run.ID, index, newsroom.StepGenerateArticle, "", "")

	article, err := Retry(ctx, string(newsroom.StepGenerateArticle), DefaultRetry,
		func(ctx context.Context) (*newsroom.ArticleResult, error) {
			return p.generateArticle(ctx, item, cfg)
		})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return nil, err
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Category: %s, headline: %s", article.Category, article.Headline))
	return article, nil
}

func (p *Pipeline) generateArticle(ctx context.Context, item *newsroom.FeedItem, cfg *newsroom.PipelineConfig) (*newsroom.ArticleResult, error) {
	refs, err := p.refs.SearchReferences(ctx, item.Title)
	if err != nil {
		// Reference search is best-effort; drafting proceeds on the
		// headline body alone.
		p.logger.Warn("reference search failed", "title", item.Title, "err", err)
		refs = nil
	}
	searchContent, err := json.Marshal(refs)
	if err != nil {
		searchContent = []byte("[]")
	}
	if len(searchContent) > searchContentLimit {
		searchContent = searchContent[:searchContentLimit]
	}

	snippet := item.Content
	if len(snippet) > contentSnippetLimit {
		snippet = snippet[:contentSnippetLimit]
	}

	system, userTmpl := articlePrompts(cfg.EditorPrompts)
	user := fillTemplate(userTmpl, map[string]string{
		"rssTitle":       item.Title,
		"contentSnippet": snippet,
		"searchContent":  string(searchContent),
		"pubDate":        item.PubDate,
	})

	raw, err := p.writer.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("draft article: %w", err)
	}

	cleaned := cleanText(raw)
	headline, category, tags, body := extractMetadata(cleaned)

	cat := resolveCategory(cfg.CategoryMap, category)
	return &newsroom.ArticleResult{
		Headline:      headline,
		CleanedHTML:   body,
		Category:      category,
		CategoryID:    cat.ID,
		CategoryColor: cat.Color,
		Tags:          tags,
	}, nil
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&hellip;", "...",
)

var unicodeReplacer = strings.NewReplacer(
	" ", " ",
	" ", " ",
	" ", " ",
	" ", " ",
	"‑", "-",
	"–", "-",
	"—", "-",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"«", `"`,
	"»", `"`,
	"…", "...",
)

var (
	tripleBlankRe   = regexp.MustCompile(`\n\s*\n\s*\n`)
	trailingSpaceRe = regexp.MustCompile(`\s+\n`)
	leadingSpaceRe  = regexp.MustCompile(`\n\s+`)
	runSpaceRe      = regexp.MustCompile(`[ \t]+`)
	interTagRe      = regexp.MustCompile(`>\s+<`)
	manyNewlinesRe  = regexp.MustCompile(`\n{3,}`)
)

// cleanText normalizes LLM output: HTML entities decoded, typographic
// unicode flattened to ASCII, whitespace collapsed.
func cleanText(raw string) string {
	text := entityReplacer.Replace(raw)
	text = unicodeReplacer.Replace(text)

	text = strings.ReplaceAll(text, `\n`, "")
	text = tripleBlankRe.ReplaceAllString(text, "\n\n")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = leadingSpaceRe.ReplaceAllString(text, "\n")
	text = runSpaceRe.ReplaceAllString(text, " ")
	text = interTagRe.ReplaceAllString(text, "><")

	text = strings.TrimSpace(text)
	return manyNewlinesRe.ReplaceAllString(text, "\n\n")
}

var (
	h1Re           = regexp.MustCompile(`(?i)<h1[^>]*>(.*?)</h1>`)
	categoryRe     = regexp.MustCompile(`(?i)<strong>\s*Category:\s*</strong>\s*([^<]+)`)
	tagsRe         = regexp.MustCompile(`(?i)<strong>\s*Tags:\s*</strong>\s*([^<]+)`)
	h1StripRe      = regexp.MustCompile(`(?is)<h1[^>]*>.*?</h1>`)
	categoryParaRe = regexp.MustCompile(`(?is)<p[^>]*>\s*<strong>\s*Category:\s*</strong>.*?</p>`)
	tagsParaRe     = regexp.MustCompile(`(?is)<p[^>]*>\s*<strong>\s*Tags:\s*</strong>.*?</p>`)
	emptyParaRe    = regexp.MustCompile(`<p[^>]*>\s*</p>`)
)

// extractMetadata pulls the H1 headline and the Category/Tags marker lines
// out of the generated HTML, then strips those markers from the body.
// Missing markers default to "Uncategorized" and no tags.
func extractMetadata(html string) (headline, category string, tags []string, body string) {
	if m := h1Re.FindStringSubmatch(html); m != nil {
		headline = strings.TrimSpace(m[1])
	}

	category = "Uncategorized"
	if m := categoryRe.FindStringSubmatch(html); m != nil {
		category = strings.TrimSpace(m[1])
	}

	if m := tagsRe.FindStringSubmatch(html); m != nil {
		for _, t := range strings.Split(m[1], ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	body = html
	if loc := h1StripRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + body[loc[1]:]
	}
	if loc := categoryParaRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + body[loc[1]:]
	}
	if loc := tagsParaRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]] + body[loc[1]:]
	}
	body = emptyParaRe.ReplaceAllString(body, "")
	body = strings.TrimSpace(body)
	return headline, category, tags, body
}
