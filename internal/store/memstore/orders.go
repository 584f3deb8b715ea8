package memstore

import (
	"context"
	"slices"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

// withLines attaches the order's lines and their products
func (s *Store) withLines(o models.Order) models.Order {
	lines := slices.Clone(s.data.orderLines[o.ID])
	if lines == nil {
		lines = []models.OrderLine{}
	}
	for i := range lines {
		if p, ok := s.data.products[lines[i].ProductID]; ok {
			snap := p.Snapshot()
			lines[i].Product = &snap
		}
	}
	o.Items = lines
	return o
}

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "InsertOrder"); err != nil {
		return err
	}
	o.ID = newID(o.ID)
	if _, ok := s.data.orders[o.ID]; ok {
		return store.ErrDuplicate
	}
	o.CreatedAt = s.tick()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.Items = nil
	s.data.orders[o.ID] = stored
	return nil
}

func (s *Store) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "InsertOrderLines"); err != nil {
		return err
	}
	for i := range lines {
		lines[i].ID = newID(lines[i].ID)
		stored := lines[i]
		stored.Product = nil
		s.data.orderLines[stored.OrderID] = append(s.data.orderLines[stored.OrderID], stored)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetOrder"); err != nil {
		return nil, err
	}
	o, ok := s.data.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = s.withLines(o)
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListOrders"); err != nil {
		return nil, err
	}
	orders := []models.Order{}
	for _, o := range s.data.orders {
		if userID == "" || o.UserID == userID {
			orders = append(orders, s.withLines(o))
		}
	}
	slices.SortFunc(orders, func(a, b models.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return orders, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "SetOrderStatus"); err != nil {
		return err
	}
	o, ok := s.data.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = s.tick()
	s.data.orders[id] = o
	return nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "SetPaymentStatus"); err != nil {
		return err
	}
	o, ok := s.data.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = s.tick()
	s.data.orders[id] = o
	return nil
}
