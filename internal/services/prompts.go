package services

import (
	"strings"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// Built-in prompt templates. The pipeline_config row may override any of
// them; empty config fields fall back here.

const defaultArticleSystem = "You are a wire-style financial journalist. Your job is to draft concise, data-driven news stories for a retail-investor audience. Write in clear, neutral English that mirrors Reuters/MarketWatch house style."

const defaultArticleUser = `<rss_title>{{rssTitle}}</rss_title>
<context_snippet>{{contentSnippet}}</context_snippet>
<search_content>{{searchContent}}</search_content>
<publish_date>{{pubDate}}</publish_date>

TASKS
1. Analyse the inputs to understand the core news event, the company/policy/ticker involved, and any key numbers.
2. Write the article following the rules below.

WRITING RULES
- First line: single sentence (max 25 words) stating what happened, the ticker or policy name, the market reaction, and why it matters.
- Second sentence explains why investors should care.
- Max two sentences per paragraph; total length 420-550 words.
- Immediately after the lede, insert a "Key Takeaways" list of at most 3 bullets, each 12 words or fewer.
- Include at least one direct, attributed quotation from the search content when available.
- Use footnote-style references (<sup>1</sup>) and close with an HTML "References" section listing every source from the search content.
- Neutral, active voice. Verb of speech is "said".

FORMAT
- HTML only, wrapped in <article> tags, <h1> for the title, <h2>/<h3> subheadings, <p> paragraphs, <blockquote> for quotes.
- After the article body add:
<p><strong>Tags:</strong> keyword1, keyword2, keyword3</p>
- Then pick exactly one category from: Technology, Energy, Food & Health, Finance, Culture:
<p><strong>Category:</strong> category</p>`

const defaultSelectionSystem = "You are a senior photo editor for an online newsroom."

const defaultSelectionUser = `ROLE: You are a photo editor selecting the best reference image for article illustration.

TASK: Analyze the attached images ({{imageCount}} candidates) and select the SINGLE BEST one for this article.

ARTICLE CONTEXT:
- Title: {{articleTitle}}
- Category: {{category}}
- Target Color: {{colorHint}}

SELECTION CRITERIA (in priority order):
1. Relevance: image clearly relates to the article subject
2. Composition: well-framed, clear subject, good lighting
3. Color potential: main subject can be highlighted in the target color
4. Professional quality: sharp focus, no watermarks, editorial-grade

AVOID: screenshots, charts, text overlays, blurry images, stock photo cliches.

OUTPUT: Return ONLY a JSON object with:
{
  "selectedIndex": 0,
  "reason": "Brief explanation (max 20 words)",
  "subjectDescription": "What the main subject is (max 15 words)",
  "colorTarget": "The single most prominent NON-HUMAN physical object to apply selective colour to — must be a specific named object (e.g. 'the stethoscope', 'the oil derrick'), NOT a background, sky, wall, or any part of a person (max 10 words)"
}
Use index 0 to {{imageCountMax}} for selectedIndex.`

const defaultEditTemplate = `Selective-Colour Editorial Photograph

CRITICAL RULE — apply this before everything else:
- Render the entire image in rich black and white
- Then apply colour {{hexColor}} to ONE element ONLY: {{colorTarget}}
- Every other element — background, sky, environment, walls, people, clothing, hair — stays black and white
- NEVER apply any colour to human faces, skin, or hair

Reference: the attached photo shows {{subjectDescription}}
Selected because: {{reason}}

Style:
- Ultra-realistic editorial news photography
- Shallow depth-of-field, cinematic rim lighting
- Subtle analog grain and natural imperfections

Composition:
- The coloured subject ({{colorTarget}}) should be the clear focal point
- Professional news framing, 16:9 aspect ratio
- No text overlays, watermarks, or logos

Output: One single ultra-realistic editorial photograph ready for publication.`

// fillTemplate substitutes {{name}} placeholders.
func fillTemplate(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// articlePrompts resolves the drafting system/user templates from config.
func articlePrompts(prompts *newsroom.EditorPrompts) (system, user string) {
	system, user = defaultArticleSystem, defaultArticleUser
	if prompts != nil {
		if strings.TrimSpace(prompts.ArticleWritingSystem) != "" {
			system = prompts.ArticleWritingSystem
		}
		if strings.TrimSpace(prompts.ArticleWritingUser) != "" {
			user = prompts.ArticleWritingUser
		}
	}
	return system, user
}

// selectionPrompts resolves the vision-selection templates from config.
func selectionPrompts(prompts *newsroom.EditorPrompts) (system, user string) {
	system, user = defaultSelectionSystem, defaultSelectionUser
	if prompts != nil {
		if strings.TrimSpace(prompts.ImageSelectionSystem) != "" {
			system = prompts.ImageSelectionSystem
		}
		if strings.TrimSpace(prompts.ImageSelectionUser) != "" {
			user = prompts.ImageSelectionUser
		}
	}
	return system, user
}

// editTemplate resolves the image-edit instruction template from config.
func editTemplate(prompts *newsroom.EditorPrompts) string {
	if prompts != nil && strings.TrimSpace(prompts.ImageEditDirectTemplate) != "" {
		return strings.TrimSpace(prompts.ImageEditDirectTemplate)
	}
	return defaultEditTemplate
}

// defaultCategoryMap maps the article categories the drafting prompt offers
// to WordPress category ids and brand accent colors.
var defaultCategoryMap = newsroom.CategoryMap{
	"Finance":       {ID: 7, Color: "#00AB76"},
	"Technology":    {ID: 6, Color: "#067BC2"},
	"Energy":        {ID: 5, Color: "#dc6a3f"},
	"Culture":       {ID: 1, Color: "#C2C6A2"},
	"Food & Health": {ID: 4, Color: "#663300"},
}

// neutralCategory is used when a category has no mapping.
var neutralCategory = newsroom.CategoryInfo{ID: 0, Color: "#CCCCCC"}

// resolveCategory looks up a category in the given map, falling back to the
// neutral mapping for unknown names.
func resolveCategory(m newsroom.CategoryMap, category string) newsroom.CategoryInfo {
	if m != nil {
		if info, ok := m[category]; ok {
			return info
		}
		return neutralCategory
	}
	if info, ok := defaultCategoryMap[category]; ok {
		return info
	}
	return neutralCategory
}
