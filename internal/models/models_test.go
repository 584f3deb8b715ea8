package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartTotalSkipsUnresolvedProducts(t *testing.T) {
	lines := []CartLine{
		{ProductID: "p1", Quantity: 2, Product: Resolved(ProductSnapshot{ID: "p1", Price: decimal.RequireFromString("12.50")})},
		{ProductID: "p2", Quantity: 3, Product: Unresolved("p2")},
		{ProductID: "p3", Quantity: 1, Product: Resolved(ProductSnapshot{ID: "p3", Price: decimal.RequireFromString("0.99")})},
	}

	assert.Equal(t, "25.99", CartTotal(lines).StringFixed(2))
	assert.Equal(t, 6, CartCount(lines))
	assert.True(t, CartTotal(nil).IsZero())
}

func TestProductRefJSON(t *testing.T) {
	b, err := json.Marshal(CartLine{ID: "l1", ProductID: "gone", Quantity: 1, Product: Unresolved("gone")})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"product":null`)
	assert.Contains(t, string(b), `"product_id":"gone"`)

	ref := Resolved(ProductSnapshot{ID: "p1", Name: "Wheel", Price: decimal.NewFromInt(5)})
	b, err = json.Marshal(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","name":"Wheel","price":"5","stock":0}`, string(b))

	snap, ok := ref.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "Wheel", snap.Name)
	assert.Equal(t, "p1", ref.ProductID())
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, OrderStatusShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.True(t, PaymentStatusRefunded.Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestUserProfileHidesPasswordHash(t *testing.T) {
	u := &UserProfile{ID: "u1", Email: "a@b.c", Role: RoleAdmin, PasswordHash: "$2a$secret"}
	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.True(t, u.IsAdmin())

	var none *UserProfile
	assert.False(t, none.IsAdmin())
}
