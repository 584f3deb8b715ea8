package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the product data joined onto a cart line
type ProductSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Brand         string          `json:"brand,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	CategoryID    string          `json:"category_id,omitempty"`
	SubcategoryID string          `json:"subcategory_id,omitempty"`
}

// ProductRef is either a resolved product snapshot or a bare reference to a
// product the join could not resolve (deleted or hidden product).
type ProductRef struct {
	productID string
	snapshot  *ProductSnapshot
}

// Resolved wraps a joined product
func Resolved(p ProductSnapshot) ProductRef {
	return ProductRef{productID: p.ID, snapshot: &p}
}

// Unresolved references a product by id only
func Unresolved(productID string) ProductRef {
	return ProductRef{productID: productID}
}

// ProductID returns the referenced product id in both cases
func (r ProductRef) ProductID() string {
	return r.productID
}

// Snapshot returns the joined product, if any
func (r ProductRef) Snapshot() (ProductSnapshot, bool) {
	if r.snapshot == nil {
		return ProductSnapshot{}, false
	}
	return *r.snapshot, true
}

// UnitPrice is the price used for totals. Unresolved products count as zero.
func (r ProductRef) UnitPrice() decimal.Decimal {
	if r.snapshot == nil {
		return decimal.Zero
	}
	return r.snapshot.Price
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.snapshot == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.snapshot)
}

// CartLine represents one (user, product) pairing in a cart
type CartLine struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ProductID string     `json:"product_id"`
	Quantity  int        `json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
	Product   ProductRef `json:"product"`
}

// Subtotal is price × quantity for the line
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums price × quantity over the lines
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// CartCount sums the quantities of the lines
func CartCount(lines []CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// CartResponse represents a cart with its derived figures
type CartResponse struct {
	Items []CartLine      `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}
