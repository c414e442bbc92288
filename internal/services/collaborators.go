package services

import (
	"context"

	"github.com/pivotnews/newsroom/internal/images"
	"github.com/pivotnews/newsroom/internal/model"
	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/search"
	"github.com/pivotnews/newsroom/internal/wordpress"
)

// External collaborator contracts. Each handle is constructed once at
// process start and passed into the pipeline; tests swap in fakes.

// HeadlineSource fetches and expands trending headlines. A shorter list
// than requested is valid; only a failed call is an error.
type HeadlineSource interface {
	Fetch(ctx context.Context, count int, dateSelector string) ([]newsroom.HeadlineItem, error)
}

// ReferenceSearcher gathers drafting context for a headline title. An
// empty result set is valid.
type ReferenceSearcher interface {
	SearchReferences(ctx context.Context, query string) ([]newsroom.Reference, error)
}

// ImageSearcher is the tier-3 image fallback.
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, num int) ([]search.ImageHit, error)
}

// ArticleWriter drafts the article HTML.
type ArticleWriter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ImageSelector picks the best candidate image via a vision model. The
// returned index is clamped by the caller, never trusted blindly.
type ImageSelector interface {
	SelectImage(ctx context.Context, candidates []model.ImageCandidate, system, user string) (*model.ImageSelection, error)
}

// ImageEditor applies the selective-colour edit.
type ImageEditor interface {
	EditImage(ctx context.Context, image []byte, mimeType, prompt string) ([]byte, error)
}

// SEORewriter produces per-site meta title/description/keyword.
type SEORewriter interface {
	RewriteSEO(ctx context.Context, system, user string) (*model.SEOResult, error)
}

// ImageFetcher scrapes article pages for editorial images and downloads
// image URLs.
type ImageFetcher interface {
	ScrapeArticleImage(ctx context.Context, articleURL string) (string, error)
	Download(ctx context.Context, imageURL, referer string) (*images.Downloaded, error)
}

// ImageTransformer converts the edited image into the publish format.
type ImageTransformer interface {
	Resize(src []byte) ([]byte, string, error)
}

// Publisher is the WordPress surface the publish step needs.
type Publisher interface {
	UploadMedia(ctx context.Context, site newsroom.Site, data []byte, fileName, mimeType string) (*wordpress.Media, error)
	CreatePost(ctx context.Context, site newsroom.Site, title, content string, categoryID int, status string) (*wordpress.Post, error)
	SetFeaturedImage(ctx context.Context, site newsroom.Site, postID, mediaID int) error
	UpdateRankMathMeta(ctx context.Context, site newsroom.Site, postID int, metaTitle, metaDescription, focusKeyword string) error
}
