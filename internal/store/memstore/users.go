package memstore

import (
	"context"
	"strings"

	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateUser"); err != nil {
		return err
	}
	for _, existing := range s.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	u.ID = newID(u.ID)
	u.CreatedAt = s.tick()
	s.data.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, u *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateUser"); err != nil {
		return err
	}
	existing, ok := s.data.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.FullName = u.FullName
	existing.Role = u.Role
	s.data.users[u.ID] = existing
	return nil
}
