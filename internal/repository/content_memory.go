package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pivotnews/newsroom/internal/newsroom"
)

// MemoryFeedRepository stores headline history rows in memory.
type MemoryFeedRepository struct {
	mu    sync.RWMutex
	items map[string]*newsroom.FeedItem
}

func NewMemoryFeedRepository() *MemoryFeedRepository {
	return &MemoryFeedRepository{items: make(map[string]*newsroom.FeedItem)}
}

func (r *MemoryFeedRepository) FindByLink(_ context.Context, link string) (*newsroom.FeedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []*newsroom.FeedItem
	for _, item := range r.items {
		if item.Link == link {
			matches = append(matches, item)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: feed item with link %s", ErrNotFound, link)
	}
	// Duplicate rows are tolerated; resolve to the lowest identifier.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	cp := *matches[0]
	return &cp, nil
}

func (r *MemoryFeedRepository) InsertItem(_ context.Context, item *newsroom.FeedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *MemoryFeedRepository) MarkShouldDraft(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: feed item %s", ErrNotFound, id)
	}
	item.ShouldDraftArticle = true
	return nil
}

// MemoryArticleRepository stores published article rows in memory.
type MemoryArticleRepository struct {
	mu       sync.RWMutex
	articles []*newsroom.AIArticle
}

func NewMemoryArticleRepository() *MemoryArticleRepository {
	return &MemoryArticleRepository{}
}

func (r *MemoryArticleRepository) InsertArticle(_ context.Context, article *newsroom.AIArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *article
	r.articles = append(r.articles, &cp)
	return nil
}

// Articles returns a snapshot of everything inserted so far.
func (r *MemoryArticleRepository) Articles() []*newsroom.AIArticle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*newsroom.AIArticle, len(r.articles))
	for i, a := range r.articles {
		cp := *a
		out[i] = &cp
	}
	return out
}

// MemorySiteRepository serves a fixed site list.
type MemorySiteRepository struct {
	mu    sync.RWMutex
	sites []newsroom.Site
}

func NewMemorySiteRepository(sites ...newsroom.Site) *MemorySiteRepository {
	return &MemorySiteRepository{sites: sites}
}

func (r *MemorySiteRepository) ListActiveSites(_ context.Context) ([]newsroom.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []newsroom.Site
	for _, s := range r.sites {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

// MemoryConfigRepository holds a single pipeline configuration row.
type MemoryConfigRepository struct {
	mu  sync.RWMutex
	cfg newsroom.PipelineConfig
}

func NewMemoryConfigRepository(cfg newsroom.PipelineConfig) *MemoryConfigRepository {
	return &MemoryConfigRepository{cfg: cfg}
}

func (r *MemoryConfigRepository) GetConfig(_ context.Context) (*newsroom.PipelineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.cfg
	return &cp, nil
}

func (r *MemoryConfigRepository) UpdateConfig(_ context.Context, cfg *newsroom.PipelineConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = *cfg
	return nil
}
