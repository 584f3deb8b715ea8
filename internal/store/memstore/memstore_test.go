package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

func addProduct(t *testing.T, s *Store, p models.Product) models.Product {
	t.Helper()
	p.IsActive = true
	if p.Slug == "" {
		p.Slug = p.Name
	}
	require.NoError(t, s.CreateProduct(context.Background(), &p))
	return p
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	lines, err := s.ListCartLines(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.InTx(ctx, func(tx store.Store) error {
		return tx.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: "p1", Quantity: 2})
	}))

	count, err := s.CountActiveCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFailOnFiresOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	s.FailOn("ListCartLines", boom)

	_, err := s.ListCartLines(ctx, "u1")
	assert.ErrorIs(t, err, boom)
	_, err = s.ListCartLines(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls("ListCartLines"))
	assert.Equal(t, 2, s.TotalCalls())
}

func TestCartLineUniquePerUserAndProduct(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1}))
	err := s.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, s.InsertCartLine(ctx, &models.CartLine{UserID: "u2", ProductID: "p1", Quantity: 1}))
}

func TestCartLinesResolveProducts(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := addProduct(t, s, models.Product{Name: "Bar tape", Price: decimal.NewFromInt(25)})
	require.NoError(t, s.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1}))
	require.NoError(t, s.InsertCartLine(ctx, &models.CartLine{UserID: "u1", ProductID: "gone", Quantity: 1}))

	lines, err := s.ListCartLines(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// newest first
	assert.Equal(t, "gone", lines[0].ProductID)
	_, ok := lines[0].Product.Snapshot()
	assert.False(t, ok)
	snap, ok := lines[1].Product.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "Bar tape", snap.Name)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetCartLine(ctx, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCartLine(ctx, "x"), store.ErrNotFound)
	_, err = s.GetOrder(ctx, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetCategoryBySlug(ctx, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	lamp := addProduct(t, s, models.Product{Name: "Lamp", Brand: "Lezyne", Price: decimal.NewFromInt(40), Stock: 3, CategoryID: "c1", Rating: 4.5})
	addProduct(t, s, models.Product{Name: "Pump", Brand: "Topeak", Price: decimal.NewFromInt(60), Stock: 0, CategoryID: "c2", SubcategoryID: "c1"})
	addProduct(t, s, models.Product{Name: "Tape", Brand: "Lezyne", Description: "grippy LAMP-free tape", Price: decimal.NewFromInt(15), Stock: 9, CategoryID: "c3"})
	hidden := models.Product{Name: "Hidden", Slug: "hidden", Price: decimal.NewFromInt(1)}
	require.NoError(t, s.CreateProduct(ctx, &hidden))

	names := func(f store.ProductFilters) []string {
		products, err := s.ListProducts(ctx, f)
		require.NoError(t, err)
		var out []string
		for _, p := range products {
			out = append(out, p.Name)
		}
		return out
	}

	lo, hi := decimal.NewFromInt(20), decimal.NewFromInt(50)
	assert.Equal(t, []string{"Tape", "Pump", "Lamp"}, names(store.ProductFilters{}))
	assert.Equal(t, []string{"Pump", "Lamp"}, names(store.ProductFilters{CategoryIDs: []string{"c1"}}))
	assert.Equal(t, []string{"Lamp"}, names(store.ProductFilters{MinPrice: &lo, MaxPrice: &hi}))
	assert.Equal(t, []string{"Tape", "Lamp"}, names(store.ProductFilters{InStock: true}))
	assert.Equal(t, []string{"Tape", "Lamp"}, names(store.ProductFilters{Search: "lamp"}))
	assert.Equal(t, []string{"Lamp", "Tape"}, names(store.ProductFilters{Brands: []string{"Lezyne"}, Sort: store.SortName}))
	assert.Equal(t, []string{"Tape", "Lamp", "Pump"}, names(store.ProductFilters{Sort: store.SortPriceAsc}))
	assert.Equal(t, []string{"Lamp"}, names(store.ProductFilters{MinRating: 4}))
	assert.Equal(t, []string{"Pump"}, names(store.ProductFilters{Limit: 1, Offset: 1}))

	count, err := s.CountProducts(ctx, store.ProductFilters{Brands: []string{"Lezyne"}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := s.GetProduct(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, lamp.Name, got.Name)

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lezyne", "Topeak"}, brands)
}

func TestDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	parent := models.Category{Name: "Lights", Slug: "lights"}
	require.NoError(t, s.CreateCategory(ctx, &parent))
	child := models.Category{Name: "Front", Slug: "front", ParentID: parent.ID}
	require.NoError(t, s.CreateCategory(ctx, &child))

	require.NoError(t, s.DeleteCategory(ctx, parent.ID))
	all, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUserEmailUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &models.UserProfile{Email: "a@example.com"}))
	err := s.CreateUser(ctx, &models.UserProfile{Email: "A@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	u, err := s.GetUserByEmail(ctx, "A@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}
