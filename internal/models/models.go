package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Slug          string          `json:"slug" db:"slug"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Stock         int             `json:"stock" db:"stock"`
	Brand         string          `json:"brand,omitempty" db:"brand"`
	ImageURL      string          `json:"image_url,omitempty" db:"image_url"`
	CategoryID    string          `json:"category_id,omitempty" db:"category_id"`
	SubcategoryID string          `json:"subcategory_id,omitempty" db:"subcategory_id"`
	Rating        float64         `json:"rating" db:"rating"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Snapshot returns the read-only view of the product carried by cart lines
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Stock:         p.Stock,
		Brand:         p.Brand,
		ImageURL:      p.ImageURL,
		CategoryID:    p.CategoryID,
		SubcategoryID: p.SubcategoryID,
	}
}

// Category is a node of the two-level category hierarchy.
// Subcategories is only populated by tree assembly.
type Category struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Slug          string     `json:"slug" db:"slug"`
	Description   string     `json:"description,omitempty" db:"description"`
	ImageURL      string     `json:"image_url,omitempty" db:"image_url"`
	ParentID      string     `json:"parent_id,omitempty" db:"parent_id"`
	Subcategories []Category `json:"subcategories"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTopLevel reports whether the category has no parent
func (c Category) IsTopLevel() bool {
	return c.ParentID == ""
}

// Role of a user profile
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// UserProfile represents a user account
type UserProfile struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the profile carries the admin role
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest sets the exact quantity of a cart line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

// SignUpRequest represents a request to create a user
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// SignInRequest carries credentials
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest changes the editable profile fields
type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
}

// ProductInput carries the editable product fields. A nil IsActive keeps
// the current value, or true on create.
type ProductInput struct {
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	Brand         string          `json:"brand"`
	ImageURL      string          `json:"image_url"`
	CategoryID    string          `json:"category_id"`
	SubcategoryID string          `json:"subcategory_id"`
	Rating        float64         `json:"rating"`
	IsActive      *bool           `json:"is_active"`
}

// CategoryInput carries the editable category fields
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	ParentID    string `json:"parent_id"`
}
