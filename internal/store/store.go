// Package store is the contract the domain services consume from the hosted
// data store. Single-row getters return ErrNotFound when nothing matched.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/models"
)

var (
	ErrNotFound  = errors.New("row not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Sort orders a product listing
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price-asc"
	SortPriceDesc Sort = "price-desc"
	SortName      Sort = "name"
	SortRating    Sort = "rating"
)

// ProductFilters are AND-combined predicates on active products. Zero
// values mean no constraint.
type ProductFilters struct {
	// CategoryIDs matches products whose category or subcategory is in the set
	CategoryIDs   []string
	SubcategoryID string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	InStock       bool
	Brands        []string
	// Search matches name, description and brand case-insensitively
	Search    string
	MinRating float64
	Sort      Sort
	Limit     int
	Offset    int
}

type Products interface {
	ListProducts(ctx context.Context, f ProductFilters) ([]models.Product, error)
	CountProducts(ctx context.Context, f ProductFilters) (int, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListBrands(ctx context.Context) ([]string, error)
}

type Categories interface {
	// ListCategories returns every category ordered by name
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListTopLevelCategories(ctx context.Context) ([]models.Category, error)
	ListSubcategories(ctx context.Context, parentID string) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type Carts interface {
	// ListCartLines returns the user's lines, newest first, with the product joined
	ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	GetCartLine(ctx context.Context, lineID string) (*models.CartLine, error)
	// FindCartLine looks up the line of a (user, product) pair. Inside a
	// transaction the row is locked.
	FindCartLine(ctx context.Context, userID, productID string) (*models.CartLine, error)
	InsertCartLine(ctx context.Context, line *models.CartLine) error
	SetCartLineQuantity(ctx context.Context, lineID string, quantity int) error
	DeleteCartLine(ctx context.Context, lineID string) error
	ClearCart(ctx context.Context, userID string) error
	// CountActiveCarts counts distinct users holding at least one line
	CountActiveCarts(ctx context.Context) (int, error)
}

type Orders interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	InsertOrderLines(ctx context.Context, lines []models.OrderLine) error
	// GetOrder returns the header with its lines
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ListOrders returns headers with lines, newest first. An empty userID lists all users.
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	SetOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type Users interface {
	CreateUser(ctx context.Context, u *models.UserProfile) error
	GetUser(ctx context.Context, id string) (*models.UserProfile, error)
	GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateUser(ctx context.Context, u *models.UserProfile) error
}

// Store is the whole remote data client
type Store interface {
	Products
	Categories
	Carts
	Orders
	Users

	// InTx runs fn against a transactional view of the store. Everything fn
	// writes is discarded when it returns an error.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// IsNotFound reports whether err is the "no rows" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err is a unique key violation
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
