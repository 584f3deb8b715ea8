package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

func (s *Store) listCategories(ctx context.Context, method string, keep func(models.Category) bool) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, method); err != nil {
		return nil, err
	}
	categories := []models.Category{}
	for _, c := range s.data.categories {
		if keep(c) {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b models.Category) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return categories, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.listCategories(ctx, "ListCategories", func(models.Category) bool { return true })
}

func (s *Store) ListTopLevelCategories(ctx context.Context) ([]models.Category, error) {
	return s.listCategories(ctx, "ListTopLevelCategories", models.Category.IsTopLevel)
}

func (s *Store) ListSubcategories(ctx context.Context, parentID string) ([]models.Category, error) {
	return s.listCategories(ctx, "ListSubcategories", func(c models.Category) bool { return c.ParentID == parentID })
}

func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetCategory"); err != nil {
		return nil, err
	}
	c, ok := s.data.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetCategoryBySlug"); err != nil {
		return nil, err
	}
	for _, c := range s.data.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) categorySlugTaken(slug, exceptID string) bool {
	for _, c := range s.data.categories {
		if c.Slug == slug && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateCategory"); err != nil {
		return err
	}
	c.ID = newID(c.ID)
	if _, ok := s.data.categories[c.ID]; ok || s.categorySlugTaken(c.Slug, "") {
		return store.ErrDuplicate
	}
	c.CreatedAt = s.tick()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	stored.Subcategories = nil
	s.data.categories[c.ID] = stored
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateCategory"); err != nil {
		return err
	}
	existing, ok := s.data.categories[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.categorySlugTaken(c.Slug, c.ID) {
		return store.ErrDuplicate
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.tick()
	stored := *c
	stored.Subcategories = nil
	s.data.categories[c.ID] = stored
	return nil
}

// DeleteCategory removes the category and, like the foreign key cascade,
// its subcategories
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteCategory"); err != nil {
		return err
	}
	if _, ok := s.data.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.categories, id)
	for childID, c := range s.data.categories {
		if c.ParentID == id {
			delete(s.data.categories, childID)
		}
	}
	return nil
}
