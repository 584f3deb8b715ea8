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

var productColumns = []string{
	"p.id", "p.name", "p.slug", "p.description", "p.price", "p.stock", "p.brand", "p.image_url",
	"p.category_id", "p.subcategory_id", "p.rating", "p.is_active", "p.created_at", "p.updated_at",
}

func scanProduct(row scanner) (models.Product, error) {
	var p models.Product
	var description, brand, imageURL, categoryID, subcategoryID sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &description, &p.Price, &p.Stock, &brand, &imageURL,
		&categoryID, &subcategoryID, &p.Rating, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Description = description.String
	p.Brand = brand.String
	p.ImageURL = imageURL.String
	p.CategoryID = categoryID.String
	p.SubcategoryID = subcategoryID.String
	return p, err
}

// productQuery applies the filters to a select on active products
func productQuery(f store.ProductFilters) *db.SelectQuery {
	q := db.Select("products p", productColumns...).Where(db.Eq("p.is_active", true))
	if len(f.CategoryIDs) > 0 {
		q.Where(db.AnyOf(db.In("p.category_id", f.CategoryIDs), db.In("p.subcategory_id", f.CategoryIDs)))
	}
	if f.SubcategoryID != "" {
		q.Where(db.Eq("p.subcategory_id", f.SubcategoryID))
	}
	if f.MinPrice != nil {
		q.Where(db.Gte("p.price", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		q.Where(db.Lte("p.price", *f.MaxPrice))
	}
	if f.InStock {
		q.Where(db.Gt("p.stock", 0))
	}
	if len(f.Brands) > 0 {
		q.Where(db.In("p.brand", f.Brands))
	}
	if f.Search != "" {
		q.Where(db.AnyOf(
			db.ILike("p.name", f.Search),
			db.ILike("p.description", f.Search),
			db.ILike("p.brand", f.Search),
		))
	}
	if f.MinRating > 0 {
		q.Where(db.Gte("p.rating", f.MinRating))
	}
	return q
}

func orderProducts(q *db.SelectQuery, sort store.Sort) {
	switch sort {
	case store.SortPriceAsc:
		q.OrderBy("p.price", true)
	case store.SortPriceDesc:
		q.OrderBy("p.price", false)
	case store.SortName:
		q.OrderBy("p.name", true)
	case store.SortRating:
		q.OrderBy("p.rating", false)
	default:
		q.OrderBy("p.created_at", false)
	}
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilters) ([]models.Product, error) {
	q := productQuery(f)
	orderProducts(q, f.Sort)
	q.Limit(f.Limit).Offset(f.Offset)

	rows, err := s.r.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CountProducts(ctx context.Context, f store.ProductFilters) (int, error) {
	return s.r.Count(ctx, productQuery(f))
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.r.QueryRow(ctx, db.Select("products p", productColumns...).Where(db.Eq("p.id", id))))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	_, err := s.r.Exec(ctx, db.InsertInto("products",
		"id", "name", "slug", "description", "price", "stock", "brand", "image_url",
		"category_id", "subcategory_id", "rating", "is_active", "created_at", "updated_at",
	).Values(
		p.ID, p.Name, p.Slug, nullable(p.Description), p.Price, p.Stock, nullable(p.Brand), nullable(p.ImageURL),
		nullable(p.CategoryID), nullable(p.SubcategoryID), p.Rating, p.IsActive, p.CreatedAt, p.UpdatedAt,
	))
	if db.IsDuplicateKey(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = now()
	return s.exec(ctx, db.Update("products").
		Set("name", p.Name).
		Set("slug", p.Slug).
		Set("description", nullable(p.Description)).
		Set("price", p.Price).
		Set("stock", p.Stock).
		Set("brand", nullable(p.Brand)).
		Set("image_url", nullable(p.ImageURL)).
		Set("category_id", nullable(p.CategoryID)).
		Set("subcategory_id", nullable(p.SubcategoryID)).
		Set("rating", p.Rating).
		Set("is_active", p.IsActive).
		Set("updated_at", p.UpdatedAt).
		Where(db.Eq("id", p.ID)))
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.exec(ctx, db.DeleteFrom("products").Where(db.Eq("id", id)))
}

func (s *Store) ListBrands(ctx context.Context) ([]string, error) {
	q := db.Select("products", "DISTINCT brand").
		Where(db.Eq("is_active", true), db.IsNotNull("brand"), db.Neq("brand", "")).
		OrderBy("brand", true)
	rows, err := s.r.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	brands := []string{}
	for rows.Next() {
		var brand string
		if err := rows.Scan(&brand); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, brand)
	}
	return brands, rows.Err()
}
