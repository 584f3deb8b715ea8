package mysqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

func cartLineQuery() *db.SelectQuery {
	cols := append([]string{"ci.id", "ci.user_id", "ci.product_id", "ci.quantity", "ci.created_at"}, snapshotColumns...)
	return db.Select("cart_items ci", cols...).LeftJoin("products p", "p.id = ci.product_id")
}

func scanCartLine(row scanner) (models.CartLine, error) {
	var line models.CartLine
	var product joinedProduct
	dest := append([]any{&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt}, product.dest()...)
	if err := row.Scan(dest...); err != nil {
		return line, err
	}
	if snap := product.snapshot(); snap != nil {
		line.Product = models.Resolved(*snap)
	} else {
		line.Product = models.Unresolved(line.ProductID)
	}
	return line, nil
}

// cartLinesQuery selects a user's cart, newest first. Inside a transaction
// the rows stay locked until commit.
func cartLinesQuery(userID string, lock bool) *db.SelectQuery {
	q := cartLineQuery().Where(db.Eq("ci.user_id", userID)).OrderBy("ci.created_at", false)
	if lock {
		q.ForUpdate()
	}
	return q
}

func (s *Store) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	rows, err := s.r.Query(ctx, cartLinesQuery(userID, s.inTx))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) GetCartLine(ctx context.Context, lineID string) (*models.CartLine, error) {
	line, err := scanCartLine(s.r.QueryRow(ctx, cartLineQuery().Where(db.Eq("ci.id", lineID))))
	if err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

func (s *Store) FindCartLine(ctx context.Context, userID, productID string) (*models.CartLine, error) {
	q := db.Select("cart_items", "id", "user_id", "product_id", "quantity", "created_at").
		Where(db.Eq("user_id", userID), db.Eq("product_id", productID))
	if s.inTx {
		q.ForUpdate()
	}

	var line models.CartLine
	err := s.r.QueryRow(ctx, q).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	line.Product = models.Unresolved(line.ProductID)
	return &line, nil
}

func (s *Store) InsertCartLine(ctx context.Context, line *models.CartLine) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	line.CreatedAt = now()

	_, err := s.r.Exec(ctx, db.InsertInto("cart_items", "id", "user_id", "product_id", "quantity", "created_at").
		Values(line.ID, line.UserID, line.ProductID, line.Quantity, line.CreatedAt))
	if db.IsDuplicateKey(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) SetCartLineQuantity(ctx context.Context, lineID string, quantity int) error {
	return s.exec(ctx, db.Update("cart_items").Set("quantity", quantity).Where(db.Eq("id", lineID)))
}

func (s *Store) DeleteCartLine(ctx context.Context, lineID string) error {
	return s.exec(ctx, db.DeleteFrom("cart_items").Where(db.Eq("id", lineID)))
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.r.Exec(ctx, db.DeleteFrom("cart_items").Where(db.Eq("user_id", userID)))
	return err
}

func (s *Store) CountActiveCarts(ctx context.Context) (int, error) {
	var count int
	if err := s.r.QueryRow(ctx, db.Select("cart_items", "COUNT(DISTINCT user_id)")).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
