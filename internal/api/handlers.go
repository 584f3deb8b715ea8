package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/middleware"
	"github.com/veloshop/storefront/internal/services"
	"github.com/veloshop/storefront/internal/state"
	"github.com/veloshop/storefront/internal/store"
	"github.com/veloshop/storefront/pkg/config"
)

// App holds application dependencies
type App struct {
	config          *config.Config
	metrics         *metrics.AppMetrics
	productService  *services.ProductService
	categoryService *services.CategoryService
	orderService    *services.OrderService
	authService     *services.AuthService
	mediaService    *services.MediaService
	registry        *state.Registry
	upgrader        websocket.Upgrader
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	cs *services.CategoryService,
	os *services.OrderService,
	as *services.AuthService,
	ms *services.MediaService,
	registry *state.Registry,
) *App {
	return &App{
		config:          cfg,
		metrics:         m,
		productService:  ps,
		categoryService: cs,
		orderService:    os,
		authService:     as,
		mediaService:    ms,
		registry:        registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	// Middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))
	r.Use(middleware.Authenticate(a.authService, a.registry))

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")

	// Uploaded media
	if a.mediaService != nil {
		r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(a.mediaService.Root())))).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth
	api.HandleFunc("/auth/signup", a.SignUpHandler).Methods("POST")
	api.HandleFunc("/auth/signin", a.SignInHandler).Methods("POST")

	// Catalog
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products/featured", a.FeaturedProductsHandler).Methods("GET")
	api.HandleFunc("/products/search", a.SearchProductsHandler).Methods("GET")
	api.HandleFunc("/products/brands", a.ListBrandsHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")
	api.HandleFunc("/categories", a.ListCategoriesHandler).Methods("GET")
	api.HandleFunc("/categories/tree", a.CategoryTreeHandler).Methods("GET")
	api.HandleFunc("/categories/{slug}", a.GetCategoryHandler).Methods("GET")

	// Signed-in routes
	private := api.NewRoute().Subrouter()
	private.Use(middleware.RequireAuth)

	private.HandleFunc("/auth/signout", a.SignOutHandler).Methods("POST")
	private.HandleFunc("/auth/refresh", a.RefreshHandler).Methods("POST")
	private.HandleFunc("/auth/session", a.SessionHandler).Methods("GET")
	private.HandleFunc("/auth/events", a.SessionEventsHandler).Methods("GET")
	private.HandleFunc("/profile", a.GetProfileHandler).Methods("GET")
	private.HandleFunc("/profile", a.UpdateProfileHandler).Methods("PUT")

	private.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	private.HandleFunc("/cart", a.ClearCartHandler).Methods("DELETE")
	private.HandleFunc("/cart/items", a.AddToCartHandler).Methods("POST")
	private.HandleFunc("/cart/items/{id}", a.UpdateCartItemHandler).Methods("PUT")
	private.HandleFunc("/cart/items/{id}", a.RemoveFromCartHandler).Methods("DELETE")

	private.HandleFunc("/orders", a.CreateOrderHandler).Methods("POST")
	private.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	private.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")

	private.HandleFunc("/session/filters", a.GetFiltersHandler).Methods("GET")
	private.HandleFunc("/session/filters", a.UpdateFiltersHandler).Methods("PATCH")
	private.HandleFunc("/session/filters", a.ResetFiltersHandler).Methods("DELETE")

	// Back-office routes
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.RequireAdmin)

	admin.HandleFunc("/products", a.CreateProductHandler).Methods("POST")
	admin.HandleFunc("/products/{id}", a.UpdateProductHandler).Methods("PUT")
	admin.HandleFunc("/products/{id}", a.DeleteProductHandler).Methods("DELETE")
	admin.HandleFunc("/products/{id}/image", a.UploadProductImageHandler).Methods("POST")
	admin.HandleFunc("/categories", a.CreateCategoryHandler).Methods("POST")
	admin.HandleFunc("/categories/{id}", a.UpdateCategoryHandler).Methods("PUT")
	admin.HandleFunc("/categories/{id}", a.DeleteCategoryHandler).Methods("DELETE")
	admin.HandleFunc("/admin/orders", a.ListAllOrdersHandler).Methods("GET")
	admin.HandleFunc("/admin/orders/{id}/status", a.UpdateOrderStatusHandler).Methods("PUT")
	admin.HandleFunc("/admin/orders/{id}/payment-status", a.UpdatePaymentStatusHandler).Methods("PUT")
	admin.HandleFunc("/admin/stats", a.StatsHandler).Methods("GET")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": a.registry.Len(),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

// respondError maps service errors onto status codes
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case services.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case store.IsNotFound(err):
		status = http.StatusNotFound
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed (request %s): %v", r.Method, r.URL.Path, middleware.RequestID(r.Context()), err)
		msg = "internal server error"
	}
	middleware.WriteError(w, status, msg)
}

func respondNotFound(w http.ResponseWriter, what string) {
	middleware.WriteError(w, http.StatusNotFound, what+" not found")
}

// decodeJSON reads the request body into v, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// session returns the caller's containers; RequireAuth guarantees one
func session(r *http.Request) *state.Session {
	return middleware.SessionFrom(r.Context())
}
