package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store/memstore"
)

var testShipping = models.ShippingAddress{
	FullName:   "Ada Lovelace",
	Email:      "ada@example.com",
	Address:    "1 Crank Lane",
	City:       "London",
	PostalCode: "N1 7AA",
	Country:    "UK",
}

type orderFixture struct {
	store  *memstore.Store
	carts  *CartService
	orders *OrderService
}

func newOrderFixture() orderFixture {
	st := memstore.New()
	m := metrics.NewNoop()
	return orderFixture{store: st, carts: NewCartService(st, m), orders: NewOrderService(st, m)}
}

func TestCreateOrderFromCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	wheel := seedProduct(t, f.store, "Wheel", "500", 4)
	fork := seedProduct(t, f.store, "Fork", "300", 2)

	_, err := f.carts.AddItem(ctx, "u1", wheel.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, "u1", fork.ID, 1)
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(ctx, "u1", testShipping)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1300).Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, testShipping, order.ShippingAddress)
	require.Len(t, order.Items, 2)

	prices := map[string]decimal.Decimal{}
	for _, line := range order.Items {
		prices[line.ProductID] = line.Price
	}
	assert.True(t, decimal.NewFromInt(500).Equal(prices[wheel.ID]))
	assert.True(t, decimal.NewFromInt(300).Equal(prices[fork.ID]))

	lines, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderPricesAreFrozen(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	p := seedProduct(t, f.store, "Wheel", "500", 4)

	_, err := f.carts.AddItem(ctx, "u1", p.ID, 1)
	require.NoError(t, err)
	order, err := f.orders.CreateOrder(ctx, "u1", testShipping)
	require.NoError(t, err)

	p.Price = decimal.NewFromInt(650)
	require.NoError(t, f.store.UpdateProduct(ctx, &p))

	got, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(got.Items[0].Price))
	assert.True(t, decimal.NewFromInt(500).Equal(got.TotalAmount))
}

func TestCreateOrderWithEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	_, err := f.orders.CreateOrder(ctx, "u1", testShipping)
	assert.ErrorIs(t, err, ErrEmptyCart)

	orders, err := f.orders.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	p := seedProduct(t, f.store, "Wheel", "500", 4)
	_, err := f.carts.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)

	boom := errors.New("connection reset")
	f.store.FailOn("InsertOrderLines", boom)

	_, err = f.orders.CreateOrder(ctx, "u1", testShipping)
	assert.ErrorIs(t, err, boom)

	orders, err := f.orders.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orders)

	lines, err := f.carts.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestCreateOrderRejectsBeforeTouchingStore(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	_, err := f.orders.CreateOrder(ctx, "", testShipping)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	incomplete := testShipping
	incomplete.City = " "
	_, err = f.orders.CreateOrder(ctx, "u1", incomplete)
	assert.True(t, IsValidation(err))

	assert.Zero(t, f.store.TotalCalls())
}

func TestOrderStatusUpdatesAndStats(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	p := seedProduct(t, f.store, "Wheel", "100", 10)

	var ids []string
	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := f.carts.AddItem(ctx, user, p.ID, 1)
		require.NoError(t, err)
		order, err := f.orders.CreateOrder(ctx, user, testShipping)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	updated, err := f.orders.UpdateStatus(ctx, ids[0], models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, updated.Status)

	paid, err := f.orders.UpdatePaymentStatus(ctx, ids[1], models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)

	_, err = f.orders.UpdateStatus(ctx, ids[2], "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	stats, err := f.orders.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 2, stats.PendingOrders)
	assert.Equal(t, 1, stats.CompletedOrders)
	assert.True(t, decimal.NewFromInt(300).Equal(stats.TotalRevenue))

	mine, err := f.orders.ListOrders(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ids[1], mine[0].ID)

	missing, err := f.orders.GetOrder(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
