package mysqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/models"
)

var orderColumns = []string{
	"id", "user_id", "status", "payment_status", "total_amount", "shipping_address", "created_at", "updated_at",
}

func scanOrder(row scanner) (models.Order, error) {
	var o models.Order
	var shipping []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalAmount, &shipping, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	return o, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	_, err = s.r.Exec(ctx, db.InsertInto("orders", orderColumns...).Values(
		o.ID, o.UserID, o.Status, o.PaymentStatus, o.TotalAmount, string(shipping), o.CreatedAt, o.UpdatedAt,
	))
	return err
}

func (s *Store) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	q := db.InsertInto("order_items", "id", "order_id", "product_id", "quantity", "price")
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.NewString()
		}
		q.Values(lines[i].ID, lines[i].OrderID, lines[i].ProductID, lines[i].Quantity, lines[i].Price)
	}
	_, err := s.r.Exec(ctx, q)
	return err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(s.r.QueryRow(ctx, db.Select("orders", orderColumns...).Where(db.Eq("id", id))))
	if err != nil {
		return nil, notFound(err)
	}

	lines, err := s.orderLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = lines[o.ID]
	if o.Items == nil {
		o.Items = []models.OrderLine{}
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	q := db.Select("orders", orderColumns...).OrderBy("created_at", false)
	if userID != "" {
		q.Where(db.Eq("user_id", userID))
	}

	rows, err := s.r.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := s.orderLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = lines[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderLine{}
		}
	}
	return orders, nil
}

// orderLines loads the lines of the given orders with their products
// embedded, grouped by order id
func (s *Store) orderLines(ctx context.Context, orderIDs []string) (map[string][]models.OrderLine, error) {
	cols := append([]string{"oi.id", "oi.order_id", "oi.product_id", "oi.quantity", "oi.price"}, snapshotColumns...)
	q := db.Select("order_items oi", cols...).
		LeftJoin("products p", "p.id = oi.product_id").
		Where(db.In("oi.order_id", orderIDs))

	rows, err := s.r.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[string][]models.OrderLine, len(orderIDs))
	for rows.Next() {
		var line models.OrderLine
		var product joinedProduct
		dest := append([]any{&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price}, product.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		line.Product = product.snapshot()
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}
	return byOrder, rows.Err()
}

func (s *Store) SetOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return s.exec(ctx, db.Update("orders").Set("status", status).Set("updated_at", now()).Where(db.Eq("id", id)))
}

func (s *Store) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	return s.exec(ctx, db.Update("orders").Set("payment_status", status).Set("updated_at", now()).Where(db.Eq("id", id)))
}
