package memstore

import (
	"context"
	"slices"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

// resolve embeds the product the line points at, as the LEFT JOIN does
func (s *Store) resolve(line models.CartLine) models.CartLine {
	if p, ok := s.data.products[line.ProductID]; ok {
		line.Product = models.Resolved(p.Snapshot())
	} else {
		line.Product = models.Unresolved(line.ProductID)
	}
	return line
}

func (s *Store) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListCartLines"); err != nil {
		return nil, err
	}
	lines := []models.CartLine{}
	for _, line := range s.data.cartLines {
		if line.UserID == userID {
			lines = append(lines, s.resolve(line))
		}
	}
	slices.SortFunc(lines, func(a, b models.CartLine) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return lines, nil
}

func (s *Store) GetCartLine(ctx context.Context, lineID string) (*models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetCartLine"); err != nil {
		return nil, err
	}
	line, ok := s.data.cartLines[lineID]
	if !ok {
		return nil, store.ErrNotFound
	}
	line = s.resolve(line)
	return &line, nil
}

func (s *Store) FindCartLine(ctx context.Context, userID, productID string) (*models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "FindCartLine"); err != nil {
		return nil, err
	}
	for _, line := range s.data.cartLines {
		if line.UserID == userID && line.ProductID == productID {
			line.Product = models.Unresolved(line.ProductID)
			return &line, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) InsertCartLine(ctx context.Context, line *models.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "InsertCartLine"); err != nil {
		return err
	}
	for _, existing := range s.data.cartLines {
		if existing.UserID == line.UserID && existing.ProductID == line.ProductID {
			return store.ErrDuplicate
		}
	}
	line.ID = newID(line.ID)
	line.CreatedAt = s.tick()
	stored := *line
	stored.Product = models.Unresolved(line.ProductID)
	s.data.cartLines[line.ID] = stored
	return nil
}

func (s *Store) SetCartLineQuantity(ctx context.Context, lineID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "SetCartLineQuantity"); err != nil {
		return err
	}
	line, ok := s.data.cartLines[lineID]
	if !ok {
		return store.ErrNotFound
	}
	line.Quantity = quantity
	s.data.cartLines[lineID] = line
	return nil
}

func (s *Store) DeleteCartLine(ctx context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteCartLine"); err != nil {
		return err
	}
	if _, ok := s.data.cartLines[lineID]; !ok {
		return store.ErrNotFound
	}
	delete(s.data.cartLines, lineID)
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ClearCart"); err != nil {
		return err
	}
	for id, line := range s.data.cartLines {
		if line.UserID == userID {
			delete(s.data.cartLines, id)
		}
	}
	return nil
}

func (s *Store) CountActiveCarts(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CountActiveCarts"); err != nil {
		return 0, err
	}
	users := make(map[string]struct{})
	for _, line := range s.data.cartLines {
		users[line.UserID] = struct{}{}
	}
	return len(users), nil
}
