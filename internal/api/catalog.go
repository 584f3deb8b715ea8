package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/veloshop/storefront/internal/middleware"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/services"
	"github.com/veloshop/storefront/pkg/filter"
)

// ProductPage is one page of a filtered listing
type ProductPage struct {
	Items    []models.Product `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Filters  filter.State     `json:"filters"`
	Query    string           `json:"query"`
}

// ListProductsHandler handles GET /api/v1/products. The query string is a
// filter state; the response carries its canonical form.
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	st := filter.Parse(r.URL.RawQuery)
	if s := middleware.SessionFrom(r.Context()); s != nil {
		s.Filters.Navigate(r.URL.RawQuery)
	}

	f := services.FiltersFromState(st, a.registry.Categories().Resolve)
	products, err := a.productService.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := a.productService.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ProductPage{
		Items:    products,
		Total:    total,
		Page:     st.Page,
		PageSize: st.PageSize,
		Filters:  st,
		Query:    filter.Encode(st),
	})
}

// FeaturedProductsHandler handles GET /api/v1/products/featured
func (a *App) FeaturedProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := a.config.FeaturedLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	products, err := a.productService.GetFeatured(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// SearchProductsHandler handles GET /api/v1/products/search?q=
func (a *App) SearchProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.productService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// ListBrandsHandler handles GET /api/v1/products/brands
func (a *App) ListBrandsHandler(w http.ResponseWriter, r *http.Request) {
	brands, err := a.productService.ListBrands(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, brands)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.productService.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if product == nil || !product.IsActive {
		respondNotFound(w, "product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// ListCategoriesHandler handles GET /api/v1/categories
func (a *App) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.registry.Categories().All())
}

// CategoryTreeHandler handles GET /api/v1/categories/tree
func (a *App) CategoryTreeHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.registry.Categories().Tree())
}

// GetCategoryHandler handles GET /api/v1/categories/{slug}
func (a *App) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, err := a.categoryService.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if category == nil {
		respondNotFound(w, "category")
		return
	}
	respondJSON(w, http.StatusOK, category)
}
