package state

import (
	"context"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/services"
)

// CartService is the part of the cart service a CartContainer drives
type CartService interface {
	GetCart(ctx context.Context, userID string) ([]models.CartLine, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (*models.CartLine, error)
	RemoveItem(ctx context.Context, userID, lineID string) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderPlacer turns a user's cart into an order
type OrderPlacer interface {
	CreateOrder(ctx context.Context, userID string, shipping models.ShippingAddress) (*models.Order, error)
}

// CartContainer mirrors one user's cart. Every successful mutation is
// followed by exactly one refresh from the service. Mutations are
// serialized so two requests of the same user cannot interleave.
type CartContainer struct {
	userID  string
	carts   CartService
	orders  OrderPlacer
	metrics *metrics.AppMetrics

	// mu serializes mutations and refreshes
	mu sync.Mutex

	viewMu sync.RWMutex
	lines  []models.CartLine

	refreshes atomic.Int64
}

// NewCartContainer creates an empty container. An empty userID makes a
// guest cart that stays empty and rejects mutations.
func NewCartContainer(userID string, carts CartService, orders OrderPlacer, m *metrics.AppMetrics) *CartContainer {
	return &CartContainer{
		userID:  userID,
		carts:   carts,
		orders:  orders,
		metrics: m,
	}
}

// Items returns a copy of the held lines, newest first
func (c *CartContainer) Items() []models.CartLine {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return slices.Clone(c.lines)
}

// Count is the number of units in the held lines
func (c *CartContainer) Count() int {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return models.CartCount(c.lines)
}

// Total is the price of the held lines
func (c *CartContainer) Total() decimal.Decimal {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return models.CartTotal(c.lines)
}

// View returns the held lines with their count and total
func (c *CartContainer) View() models.CartResponse {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	items := slices.Clone(c.lines)
	if items == nil {
		items = []models.CartLine{}
	}
	return models.CartResponse{
		Items: items,
		Count: models.CartCount(c.lines),
		Total: models.CartTotal(c.lines),
	}
}

// Refreshes returns how many refreshes have run
func (c *CartContainer) Refreshes() int {
	return int(c.refreshes.Load())
}

// Refresh reloads the lines. A failed load is logged and leaves the cart empty.
func (c *CartContainer) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(ctx)
}

func (c *CartContainer) AddItem(ctx context.Context, productID string, quantity int) (*models.CartLine, error) {
	var line *models.CartLine
	err := c.mutate(ctx, func() error {
		var err error
		line, err = c.carts.AddItem(ctx, c.userID, productID, quantity)
		return err
	})
	return line, err
}

// UpdateQuantity sets a line's quantity; zero or less removes it and
// returns nil
func (c *CartContainer) UpdateQuantity(ctx context.Context, lineID string, quantity int) (*models.CartLine, error) {
	var line *models.CartLine
	err := c.mutate(ctx, func() error {
		var err error
		line, err = c.carts.UpdateQuantity(ctx, c.userID, lineID, quantity)
		return err
	})
	return line, err
}

func (c *CartContainer) RemoveItem(ctx context.Context, lineID string) error {
	return c.mutate(ctx, func() error {
		return c.carts.RemoveItem(ctx, c.userID, lineID)
	})
}

func (c *CartContainer) Clear(ctx context.Context) error {
	return c.mutate(ctx, func() error {
		return c.carts.ClearCart(ctx, c.userID)
	})
}

// PlaceOrder converts the cart into an order, after which the cart is empty
func (c *CartContainer) PlaceOrder(ctx context.Context, shipping models.ShippingAddress) (*models.Order, error) {
	var order *models.Order
	err := c.mutate(ctx, func() error {
		var err error
		order, err = c.orders.CreateOrder(ctx, c.userID, shipping)
		return err
	})
	return order, err
}

// mutate runs op and refreshes once if it succeeded. Failed mutations are
// returned to the caller and the held lines stay as they were.
func (c *CartContainer) mutate(ctx context.Context, op func() error) error {
	if c.userID == "" {
		return services.ErrUnauthenticated
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := op(); err != nil {
		return err
	}
	c.refresh(ctx)
	return nil
}

// refresh must be called with mu held
func (c *CartContainer) refresh(ctx context.Context) {
	var lines []models.CartLine
	var err error
	if c.userID != "" {
		lines, err = c.carts.GetCart(ctx, c.userID)
		if err != nil {
			log.Printf("[STATE] Failed to refresh cart of user %s: %v", c.userID, err)
			lines = nil
		}
	}

	c.viewMu.Lock()
	c.lines = lines
	c.viewMu.Unlock()

	c.refreshes.Add(1)
	c.metrics.RecordRefresh(ctx, "cart", err == nil)
}
