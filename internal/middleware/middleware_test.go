package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/state"
)

type stubVerifier map[string]*auth.Session

func (v stubVerifier) CurrentSession(token string) *auth.Session {
	return v[token]
}

type stubOpener struct{ opened int }

func (o *stubOpener) Open(ctx context.Context, as *auth.Session) *state.Session {
	o.opened++
	return &state.Session{ID: as.ID, Auth: state.NewAuthState(as, nil)}
}

func newRouter(v stubVerifier, o *stubOpener) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(ErrorHandlerMiddleware)
	r.Use(MetricsMiddleware(metrics.NewNoop()))
	r.Use(Authenticate(v, o))

	ok := func(w http.ResponseWriter, r *http.Request) {
		s := SessionFrom(r.Context())
		if s == nil {
			w.Write([]byte("guest"))
			return
		}
		w.Write([]byte(s.ID))
	}
	r.HandleFunc("/public", ok)
	r.Handle("/private", RequireAuth(http.HandlerFunc(ok)))
	r.Handle("/admin", RequireAdmin(http.HandlerFunc(ok)))
	r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	return r
}

func sessionFor(id string, role models.Role) *auth.Session {
	return &auth.Session{ID: id, User: models.UserProfile{ID: "u-" + id, Role: role}}
}

func do(h http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuards(t *testing.T) {
	v := stubVerifier{
		"customer-token": sessionFor("s1", models.RoleCustomer),
		"admin-token":    sessionFor("s2", models.RoleAdmin),
	}
	opener := &stubOpener{}
	h := newRouter(v, opener)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"guest on public", "/public", "", http.StatusOK, "guest"},
		{"bad token on public", "/public", "Bearer nope", http.StatusOK, "guest"},
		{"customer on public", "/public", "Bearer customer-token", http.StatusOK, "s1"},
		{"guest on private", "/private", "", http.StatusUnauthorized, ""},
		{"customer on private", "/private", "Bearer customer-token", http.StatusOK, "s1"},
		{"wrong scheme", "/private", "Basic customer-token", http.StatusUnauthorized, ""},
		{"query token", "/private?access_token=customer-token", "", http.StatusOK, "s1"},
		{"guest on admin", "/admin", "", http.StatusUnauthorized, ""},
		{"customer on admin", "/admin", "Bearer customer-token", http.StatusForbidden, ""},
		{"admin on admin", "/admin", "bearer admin-token", http.StatusOK, "s2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.path, tt.header)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
			if tt.status >= 400 {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
			}
		})
	}
	assert.Equal(t, 5, opener.opened)
}

func TestRecoveryWritesJSON(t *testing.T) {
	rec := do(newRouter(stubVerifier{}, &stubOpener{}), "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h := newRouter(stubVerifier{}, &stubOpener{})

	rec := do(h, "/public", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.False(t, called)
}
