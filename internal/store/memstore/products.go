package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

func matches(p models.Product, f store.ProductFilters) bool {
	if !p.IsActive {
		return false
	}
	if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, p.CategoryID) && !slices.Contains(f.CategoryIDs, p.SubcategoryID) {
		return false
	}
	if f.SubcategoryID != "" && p.SubcategoryID != f.SubcategoryID {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock && p.Stock <= 0 {
		return false
	}
	if len(f.Brands) > 0 && !slices.Contains(f.Brands, p.Brand) {
		return false
	}
	if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(p.Description, f.Search) && !containsFold(p.Brand, f.Search) {
		return false
	}
	if f.MinRating > 0 && p.Rating < f.MinRating {
		return false
	}
	return true
}

func compareProducts(sort store.Sort) func(a, b models.Product) int {
	switch sort {
	case store.SortPriceAsc:
		return func(a, b models.Product) int { return a.Price.Cmp(b.Price) }
	case store.SortPriceDesc:
		return func(a, b models.Product) int { return b.Price.Cmp(a.Price) }
	case store.SortName:
		return func(a, b models.Product) int { return cmp.Compare(a.Name, b.Name) }
	case store.SortRating:
		return func(a, b models.Product) int { return cmp.Compare(b.Rating, a.Rating) }
	default:
		return func(a, b models.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

func (s *Store) filterProducts(f store.ProductFilters) []models.Product {
	products := []models.Product{}
	for _, p := range s.data.products {
		if matches(p, f) {
			products = append(products, p)
		}
	}
	// map iteration is random, fix a base order before the stable sort
	slices.SortFunc(products, func(a, b models.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	slices.SortStableFunc(products, compareProducts(f.Sort))
	return products
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilters) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListProducts"); err != nil {
		return nil, err
	}

	products := s.filterProducts(f)
	if f.Offset > 0 && f.Limit > 0 {
		products = products[min(f.Offset, len(products)):]
	}
	if f.Limit > 0 && len(products) > f.Limit {
		products = products[:f.Limit]
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context, f store.ProductFilters) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CountProducts"); err != nil {
		return 0, err
	}
	return len(s.filterProducts(f)), nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetProduct"); err != nil {
		return nil, err
	}
	p, ok := s.data.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) slugTaken(slug, exceptID string) bool {
	for _, p := range s.data.products {
		if p.Slug == slug && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateProduct"); err != nil {
		return err
	}
	p.ID = newID(p.ID)
	if _, ok := s.data.products[p.ID]; ok || s.slugTaken(p.Slug, "") {
		return store.ErrDuplicate
	}
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.data.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateProduct"); err != nil {
		return err
	}
	existing, ok := s.data.products[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.slugTaken(p.Slug, p.ID) {
		return store.ErrDuplicate
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.tick()
	s.data.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteProduct"); err != nil {
		return err
	}
	if _, ok := s.data.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.products, id)
	return nil
}

func (s *Store) ListBrands(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListBrands"); err != nil {
		return nil, err
	}
	brands := []string{}
	for _, p := range s.data.products {
		if p.IsActive && p.Brand != "" && !slices.Contains(brands, p.Brand) {
			brands = append(brands, p.Brand)
		}
	}
	slices.Sort(brands)
	return brands, nil
}
