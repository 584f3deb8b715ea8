package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// CartService handles cart-related operations
type CartService struct {
	store   store.Store
	metrics *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(st store.Store, metrics *metrics.AppMetrics) *CartService {
	return &CartService{
		store:   st,
		metrics: metrics,
	}
}

// MonitorActiveCarts periodically records how many users hold a non-empty
// cart. It returns when ctx is cancelled.
func (s *CartService) MonitorActiveCarts(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.store.CountActiveCarts(ctx)
			if err != nil {
				log.Printf("[CART] Failed to count active carts: %v", err)
				continue
			}
			s.metrics.ActiveCartsCount.Record(ctx, int64(count), s.metrics.Attrs())
		}
	}
}

// GetCart returns the user's lines with their products, newest first
func (s *CartService) GetCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	lines, err := s.store.ListCartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	s.recordCartItems(ctx, userID, models.CartCount(lines))
	return lines, nil
}

// AddItem increments the user's line for the product, creating it when
// absent, and returns the resulting line
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartLine, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if productID == "" {
		return nil, Invalid("product_id is required")
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var lineID string
	add := func(tx store.Store) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			if store.IsNotFound(err) {
				return Invalid("product %s not found", productID)
			}
			return fmt.Errorf("failed to verify product: %w", err)
		}

		existing, err := tx.FindCartLine(ctx, userID, productID)
		if err != nil && !store.IsNotFound(err) {
			return fmt.Errorf("failed to check cart item: %w", err)
		}
		if existing != nil {
			lineID = existing.ID
			if err := tx.SetCartLineQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
				return fmt.Errorf("failed to update cart item: %w", err)
			}
			return nil
		}

		line := &models.CartLine{UserID: userID, ProductID: productID, Quantity: quantity}
		if err := tx.InsertCartLine(ctx, line); err != nil {
			return fmt.Errorf("failed to add item to cart: %w", err)
		}
		lineID = line.ID
		return nil
	}
	err := s.store.InTx(ctx, add)
	if store.IsDuplicate(err) {
		// a concurrent add created the line first; this attempt increments it
		log.Printf("[CART] Retrying add of product %s for user %s", productID, userID)
		err = s.store.InTx(ctx, add)
	}
	if err != nil {
		return nil, err
	}

	line, err := s.store.GetCartLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return line, nil
}

// UpdateQuantity sets the exact quantity of one of the user's lines. A
// quantity of zero or less removes the line and returns nil.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (*models.CartLine, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, userID, lineID)
	}

	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		return nil, err
	}
	if err := s.store.SetCartLineQuantity(ctx, lineID, quantity); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	line, err := s.store.GetCartLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return line, nil
}

// RemoveItem deletes one of the user's lines. Removing an absent line succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, lineID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := s.store.DeleteCartLine(ctx, lineID); err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("failed to remove item from cart: %w", err)
	}
	return nil
}

// ClearCart deletes all of the user's lines
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.store.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.recordCartItems(ctx, userID, 0)
	return nil
}

// GetTotal recomputes the cart total from the current lines
func (s *CartService) GetTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	lines, err := s.GetCart(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.CartTotal(lines), nil
}

// GetCount recomputes the number of units in the cart from the current lines
func (s *CartService) GetCount(ctx context.Context, userID string) (int, error) {
	lines, err := s.GetCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	return models.CartCount(lines), nil
}

// ownedLine loads a line and hides lines of other users behind ErrNotFound
func (s *CartService) ownedLine(ctx context.Context, userID, lineID string) (*models.CartLine, error) {
	line, err := s.store.GetCartLine(ctx, lineID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	if line.UserID != userID {
		return nil, fmt.Errorf("cart item %s: %w", lineID, store.ErrNotFound)
	}
	return line, nil
}

// recordCartItems updates the cart items count gauge metric
func (s *CartService) recordCartItems(ctx context.Context, userID string, count int) {
	s.metrics.CartItemsCount.Record(ctx, int64(count), s.metrics.Attrs(attribute.String("user_id", userID)))
}
