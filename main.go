package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/veloshop/storefront/internal/api"
	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/services"
	"github.com/veloshop/storefront/internal/state"
	"github.com/veloshop/storefront/internal/store"
	"github.com/veloshop/storefront/internal/store/memstore"
	"github.com/veloshop/storefront/internal/store/mysqlstore"
	"github.com/veloshop/storefront/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize OpenTelemetry metrics
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	// Initialize storage
	st, closeStore, err := openStore(ctx, cfg, meterProvider, appMetrics)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Initialize services
	media := services.NewMediaService(cfg.MediaDir, cfg.MediaPublicURL)
	productService := services.NewProductService(st, media, cfg.MediaBucket, appMetrics)
	categoryService := services.NewCategoryService(st)
	cartService := services.NewCartService(st, appMetrics)
	orderService := services.NewOrderService(st, appMetrics)

	broker := auth.NewBroker()
	sessions := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL, broker)
	authService := services.NewAuthService(st, sessions, cfg.IsAdminEmail)

	// Shared state and per-session containers
	categories := state.NewCategoryContainer(categoryService, appMetrics)
	categories.Refresh(ctx)
	registry := state.NewRegistry(categories, cartService, orderService, authService, appMetrics)

	go registry.Watch(ctx, broker)
	go cartService.MonitorActiveCarts(ctx, 30*time.Second)

	// Initialize app
	app := api.NewApp(cfg, appMetrics, productService, categoryService, orderService, authService, media, registry)

	// Setup router
	router := mux.NewRouter()
	app.SetupRoutes(router)

	// Create HTTP server. WriteTimeout does not apply to hijacked
	// websocket connections.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s (store=%s)", cfg.AppPort, cfg.StoreDriver)
		if !cfg.OTELDisabled {
			log.Printf("OTLP endpoint: %s", cfg.OTELExporterOTLPEndpoint)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// openStore connects the configured store driver. The returned function
// releases it.
func openStore(ctx context.Context, cfg *config.Config, provider metrics.Provider, m *metrics.AppMetrics) (store.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Println("Using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}

	database, err := db.NewDB(cfg.GetDSN(), provider, m, cfg.OTELServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize schema
	schemaSQL, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		log.Printf("Warning: Could not read %s: %v", cfg.SchemaPath, err)
		log.Println("Assuming database schema already exists")
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		log.Printf("Warning: Could not initialize schema: %v", err)
		log.Println("Assuming database schema already exists")
	}

	closeDB := func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	return mysqlstore.New(database), closeDB, nil
}
