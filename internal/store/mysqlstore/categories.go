package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

var categoryColumns = []string{
	"id", "name", "slug", "description", "image_url", "parent_id", "created_at", "updated_at",
}

func scanCategory(row scanner) (models.Category, error) {
	var c models.Category
	var description, imageURL, parentID sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &description, &imageURL, &parentID, &c.CreatedAt, &c.UpdatedAt)
	c.Description = description.String
	c.ImageURL = imageURL.String
	c.ParentID = parentID.String
	return c, err
}

func (s *Store) listCategories(ctx context.Context, q *db.SelectQuery) ([]models.Category, error) {
	rows, err := s.r.Query(ctx, q.OrderBy("name", true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.listCategories(ctx, db.Select("categories", categoryColumns...))
}

func (s *Store) ListTopLevelCategories(ctx context.Context) ([]models.Category, error) {
	return s.listCategories(ctx, db.Select("categories", categoryColumns...).Where(db.IsNull("parent_id")))
}

func (s *Store) ListSubcategories(ctx context.Context, parentID string) ([]models.Category, error) {
	return s.listCategories(ctx, db.Select("categories", categoryColumns...).Where(db.Eq("parent_id", parentID)))
}

func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	c, err := scanCategory(s.r.QueryRow(ctx, db.Select("categories", categoryColumns...).Where(db.Eq("id", id))))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	c, err := scanCategory(s.r.QueryRow(ctx, db.Select("categories", categoryColumns...).Where(db.Eq("slug", slug))))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	_, err := s.r.Exec(ctx, db.InsertInto("categories", categoryColumns...).Values(
		c.ID, c.Name, c.Slug, nullable(c.Description), nullable(c.ImageURL), nullable(c.ParentID), c.CreatedAt, c.UpdatedAt,
	))
	if db.IsDuplicateKey(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = now()
	err := s.exec(ctx, db.Update("categories").
		Set("name", c.Name).
		Set("slug", c.Slug).
		Set("description", nullable(c.Description)).
		Set("image_url", nullable(c.ImageURL)).
		Set("parent_id", nullable(c.ParentID)).
		Set("updated_at", c.UpdatedAt).
		Where(db.Eq("id", c.ID)))
	if db.IsDuplicateKey(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.exec(ctx, db.DeleteFrom("categories").Where(db.Eq("id", id)))
}
