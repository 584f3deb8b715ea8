package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/veloshop/storefront/internal/models"
)

// CartMutation is the reply to a cart change: the affected line, if it
// still exists, and the refreshed cart
type CartMutation struct {
	Item *models.CartLine    `json:"item"`
	Cart models.CartResponse `json:"cart"`
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	cart := session(r).Cart
	cart.Refresh(r.Context())
	respondJSON(w, http.StatusOK, cart.View())
}

// AddToCartHandler handles POST /api/v1/cart/items
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart := session(r).Cart
	line, err := cart.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, CartMutation{Item: line, Cart: cart.View()})
}

// UpdateCartItemHandler handles PUT /api/v1/cart/items/{id}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart := session(r).Cart
	line, err := cart.UpdateQuantity(r.Context(), mux.Vars(r)["id"], req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartMutation{Item: line, Cart: cart.View()})
}

// RemoveFromCartHandler handles DELETE /api/v1/cart/items/{id}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	cart := session(r).Cart
	if err := cart.RemoveItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

// ClearCartHandler handles DELETE /api/v1/cart
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	cart := session(r).Cart
	if err := cart.Clear(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

// CreateOrderHandler handles POST /api/v1/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := session(r).Cart.PlaceOrder(r.Context(), req.ShippingAddress)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orderService.ListOrders(r.Context(), session(r).Auth.UserID())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrderHandler handles GET /api/v1/orders/{id}. Orders of other users
// are reported as missing unless the caller is an admin.
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	order, err := a.orderService.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if order == nil || (order.UserID != s.Auth.UserID() && !s.Auth.IsAdmin()) {
		respondNotFound(w, "order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}
