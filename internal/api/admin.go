package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/veloshop/storefront/internal/middleware"
	"github.com/veloshop/storefront/internal/models"
)

const maxImageSize = 10 << 20

// CreateProductHandler handles POST /api/v1/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	product, err := a.productService.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler handles PUT /api/v1/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	product, err := a.productService.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /api/v1/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.productService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadProductImageHandler handles POST /api/v1/products/{id}/image with
// a multipart "image" file. The returned URL is not stored on the product.
func (a *App) UploadProductImageHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	url, err := a.productService.UploadImage(r.Context(), mux.Vars(r)["id"], header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// CreateCategoryHandler handles POST /api/v1/categories
func (a *App) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var in models.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	category, err := a.categoryService.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Categories().Refresh(r.Context())
	respondJSON(w, http.StatusCreated, category)
}

// UpdateCategoryHandler handles PUT /api/v1/categories/{id}
func (a *App) UpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var in models.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	category, err := a.categoryService.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Categories().Refresh(r.Context())
	respondJSON(w, http.StatusOK, category)
}

// DeleteCategoryHandler handles DELETE /api/v1/categories/{id}
func (a *App) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.categoryService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Categories().Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ListAllOrdersHandler handles GET /api/v1/admin/orders
func (a *App) ListAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orderService.ListOrders(r.Context(), "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatusHandler handles PUT /api/v1/admin/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := a.orderService.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// UpdatePaymentStatusHandler handles PUT /api/v1/admin/orders/{id}/payment-status
func (a *App) UpdatePaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePaymentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := a.orderService.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], req.PaymentStatus)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// StatsHandler handles GET /api/v1/admin/stats
func (a *App) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := a.orderService.GetStats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
