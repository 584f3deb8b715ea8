package mysqlstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

var userColumns = []string{"id", "email", "full_name", "role", "password_hash", "created_at"}

func scanUser(row scanner) (*models.UserProfile, error) {
	var u models.UserProfile
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.UserProfile) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now()

	_, err := s.r.Exec(ctx, db.InsertInto("users", userColumns...).
		Values(u.ID, u.Email, u.FullName, u.Role, u.PasswordHash, u.CreatedAt))
	if db.IsDuplicateKey(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	return scanUser(s.r.QueryRow(ctx, db.Select("users", userColumns...).Where(db.Eq("id", id))))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return scanUser(s.r.QueryRow(ctx, db.Select("users", userColumns...).Where(db.Eq("email", email))))
}

func (s *Store) UpdateUser(ctx context.Context, u *models.UserProfile) error {
	return s.exec(ctx, db.Update("users").
		Set("full_name", u.FullName).
		Set("role", u.Role).
		Where(db.Eq("id", u.ID)))
}
