package services

import (
	"context"
	"fmt"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// seoContentLimit caps how much article body goes into the rewrite prompt.
const seoContentLimit = 2000

// seoPerSite produces a unique SEO package for every active site. The
// rewrites run as one logged step; a rewrite failure fails the step and
// with it the article.
func (p *Pipeline) seoPerSite(ctx context.Context, run *newsroom.Run, index int, article *newsroom.ArticleResult) ([]newsroom.SiteArticle, error) {
	if err := p.recorder.Checkpoint(ctx, run.ID); err != nil {
		return nil, err
	}

	step := p.recorder.LogStep(ctx, run.ID, index, newsroom.StepSEOPerSite, "", "")

	siteArticles, err := Retry(ctx, string(newsroom.StepSEOPerSite), DefaultRetry,
		func(ctx context.Context) ([]newsroom.SiteArticle, error) {
			sites, err := p.sites.ListActiveSites(ctx)
			if err != nil {
				return nil, fmt.Errorf("list active sites: %w", err)
			}
			return p.rewriteForSites(ctx, article, sites)
		})
	if err != nil {
		p.recorder.FailStep(ctx, step, err.Error())
		return nil, err
	}

	p.recorder.CompleteStep(ctx, step, fmt.Sprintf("Generated SEO for %d sites", len(siteArticles)))
	return siteArticles, nil
}

func (p *Pipeline) rewriteForSites(ctx context.Context, article *newsroom.ArticleResult, sites []newsroom.Site) ([]newsroom.SiteArticle, error) {
	results := make([]newsroom.SiteArticle, 0, len(sites))
	for _, site := range sites {
		seo, err := p.seo.RewriteSEO(ctx, seoSystemPrompt(site), seoUserPrompt(article, site))
		if err != nil {
			return nil, fmt.Errorf("rewrite SEO for %s: %w", site.Slug, err)
		}

		// Category resolution here uses the site's own mapping only; a
		// site with no entry for this category gets the neutral fallback,
		// never another site's ids.
		cat := neutralCategory
		if info, ok := site.CategoryMap[article.Category]; ok {
			cat = info
		}

		results = append(results, newsroom.SiteArticle{
			Site:            site,
			MetaTitle:       seo.MetaTitle,
			MetaDescription: seo.MetaDescription,
			Keyword:         seo.Keyword,
			CategoryID:      cat.ID,
			CategoryColor:   cat.Color,
		})
	}
	return results, nil
}

func seoSystemPrompt(site newsroom.Site) string {
	return fmt.Sprintf("You are an expert SEO content optimizer. Create highly unique meta tags specifically tailored for the site %s. The title MUST be uniquely rewritten, up to 60 chars. Description up to 160 chars. Keyword is the main topic. Return a JSON object with: metatitle, metadescription, keyword.", site.Name)
}

func seoUserPrompt(article *newsroom.ArticleResult, site newsroom.Site) string {
	content := article.CleanedHTML
	if len(content) > seoContentLimit {
		content = content[:seoContentLimit]
	}
	return fmt.Sprintf(`Create metatitle and metadescription focusing ONLY on the specific angle or audience for %s. The title and description MUST NOT be the exact same as other sites republishing this. Make it completely unique.
- Original Article Title: %s
- Article Content (first %d chars): %s
- Site Name: %s

Return a JSON object with: metatitle, metadescription, keyword`, site.Name, article.Headline, seoContentLimit, content, site.Name)
}
