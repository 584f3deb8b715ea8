package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/services"
	"github.com/veloshop/storefront/internal/state"
	"github.com/veloshop/storefront/internal/store/memstore"
	"github.com/veloshop/storefront/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

const adminEmail = "admin@example.com"

type harness struct {
	t        *testing.T
	store    *memstore.Store
	broker   *auth.Broker
	registry *state.Registry
	router   *mux.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memstore.New()
	m := metrics.NewNoop()
	cfg := &config.Config{
		FeaturedLimit: 4,
		JWTSecret:     "test-secret",
		SessionTTL:    time.Hour,
		AdminEmails:   []string{adminEmail},
	}

	broker := auth.NewBroker()
	authService := services.NewAuthService(st, auth.NewManager(cfg.JWTSecret, cfg.SessionTTL, broker), cfg.IsAdminEmail)
	authService.Cost = bcrypt.MinCost

	media := services.NewMediaService(t.TempDir(), "http://media.test/media")
	productService := services.NewProductService(st, media, "product-images", m)
	categoryService := services.NewCategoryService(st)
	cartService := services.NewCartService(st, m)
	orderService := services.NewOrderService(st, m)

	registry := state.NewRegistry(state.NewCategoryContainer(categoryService, m), cartService, orderService, authService, m)
	app := NewApp(cfg, m, productService, categoryService, orderService, authService, media, registry)

	router := mux.NewRouter()
	app.SetupRoutes(router)
	return &harness{t: t, store: st, broker: broker, registry: registry, router: router}
}

func (h *harness) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	return h.send(httptest.NewRequest(method, path, r), token)
}

type signedIn struct {
	ID    string `json:"id"`
	Token string `json:"access_token"`
	User  struct {
		ID   string      `json:"id"`
		Role models.Role `json:"role"`
	} `json:"user"`
}

func (h *harness) signUp(email string) signedIn {
	h.t.Helper()
	rec := h.do("POST", "/api/v1/auth/signup", "", models.SignUpRequest{Email: email, Password: "secret123", FullName: "Test User"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var s signedIn
	decode(h.t, rec, &s)
	require.NotEmpty(h.t, s.Token)
	return s
}

func (h *harness) createProduct(token string, in models.ProductInput) models.Product {
	h.t.Helper()
	rec := h.do("POST", "/api/v1/products", token, in)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Product
	decode(h.t, rec, &p)
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}

var shipping = models.ShippingAddress{
	FullName: "Ada", Email: "ada@example.com", Address: "1 Lane", City: "London", PostalCode: "N1", Country: "UK",
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSignUpAndSignIn(t *testing.T) {
	h := newHarness(t)
	s := h.signUp("ada@example.com")
	assert.Equal(t, models.RoleCustomer, s.User.Role)

	rec := h.do("GET", "/api/v1/auth/session", s.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		Profile *models.UserProfile `json:"profile"`
		IsAdmin bool                `json:"is_admin"`
	}
	decode(t, rec, &info)
	require.NotNil(t, info.Profile)
	assert.Equal(t, "ada@example.com", info.Profile.Email)
	assert.False(t, info.IsAdmin)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = h.do("POST", "/api/v1/auth/signup", "", models.SignUpRequest{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do("POST", "/api/v1/auth/signin", "", models.SignInRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do("POST", "/api/v1/auth/signin", "", models.SignInRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var again signedIn
	decode(t, rec, &again)
	assert.Equal(t, s.User.ID, again.User.ID)
	assert.NotEqual(t, s.ID, again.ID)
	assert.Equal(t, 2, h.registry.Len())
}

func TestSignOutEndsSession(t *testing.T) {
	h := newHarness(t)
	s := h.signUp("ada@example.com")

	rec := h.do("POST", "/api/v1/auth/signout", s.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, h.registry.Get(s.ID))

	rec = h.do("GET", "/api/v1/cart", s.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshReplacesToken(t *testing.T) {
	h := newHarness(t)
	s := h.signUp("ada@example.com")

	rec := h.do("POST", "/api/v1/auth/refresh", s.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed signedIn
	decode(t, rec, &refreshed)
	assert.Equal(t, s.ID, refreshed.ID)
	assert.NotEqual(t, s.Token, refreshed.Token)

	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/v1/auth/session", s.Token, nil).Code)
	assert.Equal(t, http.StatusOK, h.do("GET", "/api/v1/auth/session", refreshed.Token, nil).Code)
}

func TestAccessControl(t *testing.T) {
	h := newHarness(t)
	customer := h.signUp("ada@example.com")
	admin := h.signUp(adminEmail)
	assert.Equal(t, models.RoleAdmin, admin.User.Role)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"guest cart", "GET", "/api/v1/cart", "", http.StatusUnauthorized},
		{"garbage token", "GET", "/api/v1/cart", "not-a-token", http.StatusUnauthorized},
		{"customer cart", "GET", "/api/v1/cart", customer.Token, http.StatusOK},
		{"guest stats", "GET", "/api/v1/admin/stats", "", http.StatusUnauthorized},
		{"customer stats", "GET", "/api/v1/admin/stats", customer.Token, http.StatusForbidden},
		{"admin stats", "GET", "/api/v1/admin/stats", admin.Token, http.StatusOK},
		{"guest catalog", "GET", "/api/v1/products", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.do(tt.method, tt.path, tt.token, nil).Code)
		})
	}

	rec := h.do("POST", "/api/v1/products", customer.Token, models.ProductInput{Name: "Wheel", Price: decimal.NewFromInt(10)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin role required", errorMessage(t, rec))
}

func TestCartAndOrderFlow(t *testing.T) {
	h := newHarness(t)
	admin := h.signUp(adminEmail)
	ada := h.signUp("ada@example.com")
	bob := h.signUp("bob@example.com")
	wheel := h.createProduct(admin.Token, models.ProductInput{Name: "Wheel", Price: decimal.NewFromInt(250), Stock: 5})

	rec := h.do("POST", "/api/v1/cart/items", ada.Token, models.AddToCartRequest{ProductID: wheel.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added struct {
		Item struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
		} `json:"item"`
		Cart struct {
			Count int             `json:"count"`
			Total decimal.Decimal `json:"total"`
		} `json:"cart"`
	}
	decode(t, rec, &added)
	assert.Equal(t, 2, added.Cart.Count)
	assert.True(t, decimal.NewFromInt(500).Equal(added.Cart.Total))

	rec = h.do("PUT", "/api/v1/cart/items/"+added.Item.ID, ada.Token, models.UpdateCartItemRequest{Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code)

	// another user's line is reported as missing
	rec = h.do("DELETE", "/api/v1/cart/items/"+added.Item.ID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = h.do("PUT", "/api/v1/cart/items/"+added.Item.ID, bob.Token, models.UpdateCartItemRequest{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do("POST", "/api/v1/cart/items", ada.Token, models.AddToCartRequest{ProductID: wheel.ID, Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do("POST", "/api/v1/orders", ada.Token, models.CreateOrderRequest{ShippingAddress: shipping})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	decode(t, rec, &order)
	assert.True(t, decimal.NewFromInt(750).Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)

	rec = h.do("GET", "/api/v1/cart", ada.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart struct {
		Count int `json:"count"`
	}
	decode(t, rec, &cart)
	assert.Zero(t, cart.Count)

	rec = h.do("POST", "/api/v1/orders", ada.Token, models.CreateOrderRequest{ShippingAddress: shipping})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", errorMessage(t, rec))

	var orders []models.Order
	rec = h.do("GET", "/api/v1/orders", ada.Token, nil)
	decode(t, rec, &orders)
	assert.Len(t, orders, 1)

	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/v1/orders/"+order.ID, bob.Token, nil).Code)
	assert.Equal(t, http.StatusOK, h.do("GET", "/api/v1/orders/"+order.ID, admin.Token, nil).Code)

	rec = h.do("PUT", "/api/v1/admin/orders/"+order.ID+"/status", admin.Token, models.UpdateOrderStatusRequest{Status: models.OrderStatusShipped})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &order)
	assert.Equal(t, models.OrderStatusShipped, order.Status)

	rec = h.do("PUT", "/api/v1/admin/orders/"+order.ID+"/payment-status", admin.Token, models.UpdatePaymentStatusRequest{PaymentStatus: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do("GET", "/api/v1/admin/orders", admin.Token, nil)
	decode(t, rec, &orders)
	assert.Len(t, orders, 1)
}

func TestProductListingUsesFilterQuery(t *testing.T) {
	h := newHarness(t)
	admin := h.signUp(adminEmail)

	rec := h.do("POST", "/api/v1/categories", admin.Token, models.CategoryInput{Name: "Wheels", Slug: "wheels"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var wheels models.Category
	decode(t, rec, &wheels)

	// the shared category container is refreshed by the admin write
	rec = h.do("GET", "/api/v1/categories", "", nil)
	var all []models.Category
	decode(t, rec, &all)
	require.Len(t, all, 1)

	h.createProduct(admin.Token, models.ProductInput{Name: "Carbon Wheel", Brand: "Acme", CategoryID: wheels.ID, Price: decimal.NewFromInt(900)})
	h.createProduct(admin.Token, models.ProductInput{Name: "Alloy Wheel", Brand: "Bolt", CategoryID: wheels.ID, Price: decimal.NewFromInt(300)})
	h.createProduct(admin.Token, models.ProductInput{Name: "Saddle", Brand: "Acme", Price: decimal.NewFromInt(80)})

	rec = h.do("GET", "/api/v1/products?category=wheels&brand=Acme&page=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ProductPage
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Carbon Wheel", page.Items[0].Name)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "category=wheels&brand=Acme", page.Query)

	rec = h.do("GET", "/api/v1/products/brands", "", nil)
	var brands []string
	decode(t, rec, &brands)
	assert.ElementsMatch(t, []string{"Acme", "Bolt"}, brands)

	rec = h.do("GET", "/api/v1/products/search?q=saddle", "", nil)
	var found []models.Product
	decode(t, rec, &found)
	assert.Len(t, found, 1)

	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/v1/products/missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/v1/categories/missing", "", nil).Code)
}

func TestSessionFiltersFollowNavigation(t *testing.T) {
	h := newHarness(t)
	s := h.signUp("ada@example.com")

	require.Equal(t, http.StatusOK, h.do("GET", "/api/v1/products?brand=Acme", s.Token, nil).Code)

	var info FilterInfo
	decode(t, h.do("GET", "/api/v1/session/filters", s.Token, nil), &info)
	assert.Equal(t, []string{"Acme"}, info.Filters.Brand)
	assert.Equal(t, "brand=Acme", info.Query)

	rec := h.do("PATCH", "/api/v1/session/filters", s.Token, map[string]any{"page": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &info)
	assert.Equal(t, 3, info.Filters.Page)
	assert.Equal(t, []string{"Acme"}, info.Filters.Brand)

	decode(t, h.do("DELETE", "/api/v1/session/filters", s.Token, nil), &info)
	assert.Empty(t, info.Filters.Brand)
	assert.Empty(t, info.Query)
}

func TestUploadProductImage(t *testing.T) {
	h := newHarness(t)
	admin := h.signUp(adminEmail)
	p := h.createProduct(admin.Token, models.ProductInput{Name: "Wheel", Price: decimal.NewFromInt(10)})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "wheel.PNG")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/products/"+p.ID+"/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := h.send(req, admin.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]string
	decode(t, rec, &out)
	assert.True(t, strings.HasPrefix(out["url"], "http://media.test/media/product-images/products/"+p.ID+"-"))
	assert.True(t, strings.HasSuffix(out["url"], ".png"))

	rec = h.do("GET", strings.TrimPrefix(out["url"], "http://media.test"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	req = httptest.NewRequest("POST", "/api/v1/products/"+p.ID+"/image", strings.NewReader("plain"))
	assert.Equal(t, http.StatusBadRequest, h.send(req, admin.Token).Code)
}

func TestSessionEventsStreamSignOut(t *testing.T) {
	h := newHarness(t)
	s := h.signUp("ada@example.com")
	other := h.signUp("bob@example.com")

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/auth/events?access_token=" + s.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.broker.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	// events of other users are not streamed
	assert.Equal(t, http.StatusNoContent, h.do("POST", "/api/v1/auth/signout", other.Token, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do("POST", "/api/v1/auth/signout", s.Token, nil).Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev auth.SessionEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, auth.EventSignedOut, ev.Type)
	assert.Equal(t, s.ID, ev.SessionID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestEventsRequireAuth(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/v1/auth/events", "", nil).Code)
}
