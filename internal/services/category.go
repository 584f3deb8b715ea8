package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

// CategoryService handles the two-level category hierarchy
type CategoryService struct {
	store store.Categories
}

// NewCategoryService creates a new category service
func NewCategoryService(st store.Categories) *CategoryService {
	return &CategoryService{store: st}
}

// GetTree returns the top-level categories by name, each carrying its
// subcategories by name. A parent without children has an empty slice.
func (s *CategoryService) GetTree(ctx context.Context) ([]models.Category, error) {
	parents, err := s.store.ListTopLevelCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	tree := make([]models.Category, 0, len(parents))
	for _, parent := range parents {
		children, err := s.store.ListSubcategories(ctx, parent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list subcategories of %s: %w", parent.Slug, err)
		}
		if children == nil {
			children = []models.Category{}
		}
		parent.Subcategories = children
		tree = append(tree, parent)
	}
	return tree, nil
}

// GetAll returns every category ordered by name
func (s *CategoryService) GetAll(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// GetParents returns the top-level categories ordered by name
func (s *CategoryService) GetParents(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.ListTopLevelCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// GetSubcategories returns the children of a category ordered by name
func (s *CategoryService) GetSubcategories(ctx context.Context, parentID string) ([]models.Category, error) {
	categories, err := s.store.ListSubcategories(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	return categories, nil
}

// GetBySlug returns the category or nil when it does not exist
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.store.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// GetByID returns the category or nil when it does not exist
func (s *CategoryService) GetByID(ctx context.Context, id string) (*models.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, in models.CategoryInput) (*models.Category, error) {
	c := &models.Category{}
	if err := s.apply(ctx, c, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		if store.IsDuplicate(err) {
			return nil, Invalid("category slug %q is already used", c.Slug)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	log.Printf("[CATEGORY] Created %s (%s)", c.Slug, c.ID)
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, in models.CategoryInput) (*models.Category, error) {
	c := &models.Category{ID: id}
	if in.ParentID == id {
		return nil, Invalid("a category cannot be its own parent")
	}
	if err := s.apply(ctx, c, in); err != nil {
		return nil, err
	}
	if in.ParentID != "" {
		children, err := s.GetSubcategories(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			return nil, Invalid("category %s has subcategories and cannot be nested", id)
		}
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		if store.IsDuplicate(err) {
			return nil, Invalid("category slug %q is already used", c.Slug)
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	updated, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return updated, nil
}

// Delete removes the category together with its subcategories
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	log.Printf("[CATEGORY] Deleted %s", id)
	return nil
}

// apply validates the input and copies it onto c. Parents must be
// top-level since only two levels are modelled.
func (s *CategoryService) apply(ctx context.Context, c *models.Category, in models.CategoryInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Invalid("name is required")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}

	if in.ParentID != "" {
		parent, err := s.GetByID(ctx, in.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return Invalid("parent category %s not found", in.ParentID)
		}
		if !parent.IsTopLevel() {
			return Invalid("parent category %s is itself a subcategory", in.ParentID)
		}
	}

	c.Name = name
	c.Slug = slug
	c.Description = in.Description
	c.ImageURL = in.ImageURL
	c.ParentID = in.ParentID
	return nil
}
