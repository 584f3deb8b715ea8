package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// OrderService handles order-related operations
type OrderService struct {
	store   store.Store
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service
func NewOrderService(st store.Store, metrics *metrics.AppMetrics) *OrderService {
	return &OrderService{
		store:   st,
		metrics: metrics,
	}
}

// CreateOrder converts the user's cart into an order. Reading the cart,
// writing the header and lines, and clearing the cart happen in one
// transaction, so a failure leaves neither a partial order nor a changed cart.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, shipping models.ShippingAddress) (*models.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateShipping(shipping); err != nil {
		return nil, err
	}

	var order *models.Order
	var lineCount int
	err := s.store.InTx(ctx, func(tx store.Store) error {
		lines, err := tx.ListCartLines(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get cart items: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		order = &models.Order{
			UserID:          userID,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			TotalAmount:     models.CartTotal(lines),
			ShippingAddress: shipping,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Prices are frozen at their current value
		orderLines := make([]models.OrderLine, len(lines))
		for i, line := range lines {
			orderLines[i] = models.OrderLine{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.UnitPrice(),
			}
		}
		if err := tx.InsertOrderLines(ctx, orderLines); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		lineCount = len(orderLines)

		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := s.metrics.Attrs(attribute.String("order.status", string(models.OrderStatusPending)))
	s.metrics.OrdersCreated.Add(ctx, 1, attrs)
	s.metrics.RevenueTotal.Add(ctx, order.TotalAmount.InexactFloat64(), attrs)
	log.Printf("[ORDER] Created order %s for user %s: %d items, total %s", order.ID, userID, lineCount, order.TotalAmount.StringFixed(2))

	created, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created order: %w", err)
	}
	return created, nil
}

// GetOrder returns the order with its lines, or nil when it does not exist
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListOrders returns orders newest first. An empty userID lists every order.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus changes the fulfilment status and returns the updated order
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.store.SetOrderStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	log.Printf("[ORDER] Order %s status -> %s", id, status)
	return s.mustGet(ctx, id)
}

// UpdatePaymentStatus changes the payment status and returns the updated order
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.store.SetPaymentStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	log.Printf("[ORDER] Order %s payment status -> %s", id, status)
	return s.mustGet(ctx, id)
}

// GetStats summarizes all orders. Completed orders are the delivered ones.
func (s *OrderService) GetStats(ctx context.Context) (*models.OrderStats, error) {
	orders, err := s.store.ListOrders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	stats := &models.OrderStats{TotalRevenue: decimal.Zero}
	for _, o := range orders {
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		switch o.Status {
		case models.OrderStatusPending:
			stats.PendingOrders++
		case models.OrderStatusDelivered:
			stats.CompletedOrders++
		}
	}
	return stats, nil
}

func (s *OrderService) mustGet(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func validateShipping(a models.ShippingAddress) error {
	required := []struct{ name, value string }{
		{"full_name", a.FullName},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return Invalid("shipping_address.%s is required", f.name)
		}
	}
	return nil
}
