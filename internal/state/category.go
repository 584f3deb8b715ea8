package state

import (
	"context"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
)

// CategoryLoader is the part of the category service a CategoryContainer reads
type CategoryLoader interface {
	GetAll(ctx context.Context) ([]models.Category, error)
	GetTree(ctx context.Context) ([]models.Category, error)
}

// CategoryContainer holds the flat category list and the assembled tree.
// One container is shared by all sessions.
type CategoryContainer struct {
	loader  CategoryLoader
	metrics *metrics.AppMetrics

	mu     sync.RWMutex
	all    []models.Category
	tree   []models.Category
	loaded bool

	refreshes atomic.Int64
}

func NewCategoryContainer(loader CategoryLoader, m *metrics.AppMetrics) *CategoryContainer {
	return &CategoryContainer{loader: loader, metrics: m}
}

// All returns every category ordered by name
func (c *CategoryContainer) All() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := slices.Clone(c.all)
	if out == nil {
		out = []models.Category{}
	}
	return out
}

// Tree returns the top-level categories with their subcategories
func (c *CategoryContainer) Tree() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := slices.Clone(c.tree)
	if out == nil {
		out = []models.Category{}
	}
	return out
}

// BySlug looks a category up in the held list
func (c *CategoryContainer) BySlug(slug string) (models.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.all {
		if cat.Slug == slug {
			return cat, true
		}
	}
	return models.Category{}, false
}

// Resolve maps a slug to its category id, or "" when unknown
func (c *CategoryContainer) Resolve(slug string) string {
	if cat, ok := c.BySlug(slug); ok {
		return cat.ID
	}
	return ""
}

// Loaded reports whether a refresh has run
func (c *CategoryContainer) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *CategoryContainer) Refreshes() int {
	return int(c.refreshes.Load())
}

// Refresh reloads both views. On failure both are emptied.
func (c *CategoryContainer) Refresh(ctx context.Context) {
	all, err := c.loader.GetAll(ctx)
	var tree []models.Category
	if err == nil {
		tree, err = c.loader.GetTree(ctx)
	}
	if err != nil {
		log.Printf("[STATE] Failed to refresh categories: %v", err)
		all, tree = nil, nil
	}

	c.mu.Lock()
	c.all = all
	c.tree = tree
	c.loaded = true
	c.mu.Unlock()

	c.refreshes.Add(1)
	c.metrics.RecordRefresh(ctx, "categories", err == nil)
}
