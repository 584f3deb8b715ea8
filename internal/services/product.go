package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// ProductFilters are the listing predicates, AND-combined
type ProductFilters = store.ProductFilters

const productCacheTTL = 5 * time.Minute

// ProductCache holds cached products
type ProductCache struct {
	mu    sync.RWMutex
	items map[string]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

func NewProductCache() *ProductCache {
	return &ProductCache{
		items: make(map[string]cachedProduct),
	}
}

func (c *ProductCache) get(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.items[id]
	if !ok || !time.Now().Before(cached.expires) {
		return models.Product{}, false
	}
	return cached.product, true
}

func (c *ProductCache) put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = cachedProduct{product: p, expires: time.Now().Add(productCacheTTL)}
}

func (c *ProductCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// ProductService handles product-related operations
type ProductService struct {
	store   store.Products
	media   *MediaService
	bucket  string
	metrics *metrics.AppMetrics
	cache   *ProductCache
}

// NewProductService creates a new product service. Images go to bucket
// through media.
func NewProductService(st store.Products, media *MediaService, bucket string, metrics *metrics.AppMetrics) *ProductService {
	return &ProductService{
		store:   st,
		media:   media,
		bucket:  bucket,
		metrics: metrics,
		cache:   NewProductCache(),
	}
}

// List returns active products matching f, newest first unless f.Sort says otherwise
func (s *ProductService) List(ctx context.Context, f ProductFilters) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Count returns how many active products match f, ignoring pagination
func (s *ProductService) Count(ctx context.Context, f ProductFilters) (int, error) {
	n, err := s.store.CountProducts(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// GetByCategory lists a category's products by name
func (s *ProductService) GetByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	return s.List(ctx, ProductFilters{CategoryIDs: []string{categoryID}, Sort: store.SortName})
}

// GetBySubcategory lists a subcategory's products by name
func (s *ProductService) GetBySubcategory(ctx context.Context, subcategoryID string) ([]models.Product, error) {
	return s.List(ctx, ProductFilters{SubcategoryID: subcategoryID, Sort: store.SortName})
}

// Search matches name, description and brand, ordered by name. A blank
// query finds nothing.
func (s *ProductService) Search(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Product{}, nil
	}
	return s.List(ctx, ProductFilters{Search: query, Sort: store.SortName})
}

// GetFeatured returns the newest products that are in stock
func (s *ProductService) GetFeatured(ctx context.Context, limit int) ([]models.Product, error) {
	return s.List(ctx, ProductFilters{InStock: true, Sort: store.SortNewest, Limit: limit})
}

// ListBrands returns the distinct brands of active products
func (s *ProductService) ListBrands(ctx context.Context) ([]string, error) {
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return brands, nil
}

// GetByID returns a product, or nil when it does not exist
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := s.cache.get(id); ok {
		s.metrics.CacheHits.Add(ctx, 1, s.metrics.Attrs())
		s.recordView(ctx, p)
		return &p, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1, s.metrics.Attrs())

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	s.cache.put(*p)
	s.recordView(ctx, *p)
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	p := &models.Product{IsActive: true}
	if err := applyProduct(p, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		if store.IsDuplicate(err) {
			return nil, Invalid("product slug %q is already used", p.Slug)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	log.Printf("[PRODUCT] Created %s (%s)", p.Slug, p.ID)
	return p, nil
}

// Update replaces the editable fields of a product. Absent products are
// reported as store.ErrNotFound.
func (s *ProductService) Update(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if err := applyProduct(p, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		if store.IsDuplicate(err) {
			return nil, Invalid("product slug %q is already used", p.Slug)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	s.cache.invalidate(id)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.cache.invalidate(id)
	log.Printf("[PRODUCT] Deleted %s", id)
	return nil
}

// UploadImage stores an image for the product and returns its public URL.
// The product record itself is not changed.
func (s *ProductService) UploadImage(ctx context.Context, productID, filename string, r io.Reader) (string, error) {
	if productID == "" {
		return "", Invalid("product id is required")
	}
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		return "", Invalid("file name %q has no extension", filename)
	}

	objectPath := fmt.Sprintf("products/%s-%s.%s", productID, uuid.NewString(), strings.ToLower(ext))
	if err := s.media.Upload(ctx, s.bucket, objectPath, r); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return s.media.PublicURL(s.bucket, objectPath), nil
}

func (s *ProductService) recordView(ctx context.Context, p models.Product) {
	attrs := s.metrics.Attrs(
		attribute.String("product_id", p.ID),
		attribute.String("product_category", p.CategoryID),
	)
	s.metrics.ProductsViewed.Add(ctx, 1, attrs)
	s.metrics.StockLevel.Record(ctx, int64(p.Stock), s.metrics.Attrs(attribute.String("product_id", p.ID)))
}

func applyProduct(p *models.Product, in models.ProductInput) error {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return Invalid("name is required")
	case in.Price.IsNegative():
		return Invalid("price must not be negative")
	case in.Stock < 0:
		return Invalid("stock must not be negative")
	case in.Rating < 0 || in.Rating > 5:
		return Invalid("rating must be between 0 and 5")
	}

	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}

	p.Name = name
	p.Slug = slug
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock
	p.Brand = strings.TrimSpace(in.Brand)
	p.ImageURL = in.ImageURL
	p.CategoryID = in.CategoryID
	p.SubcategoryID = in.SubcategoryID
	p.Rating = in.Rating
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}
