// Package state holds the per-session containers the storefront serves
// from: who is signed in, their cart, the category tree and the active
// product filters. Containers are created when a session starts and
// dropped when it ends.
package state

import (
	"context"
	"log"
	"sync"

	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/metrics"
	"github.com/veloshop/storefront/internal/models"
)

// ProfileLoader reads user profiles
type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// AuthState is the signed-in user of a session. The zero session is a guest.
type AuthState struct {
	profiles ProfileLoader

	mu      sync.RWMutex
	session *auth.Session
	profile *models.UserProfile
}

func NewAuthState(session *auth.Session, profiles ProfileLoader) *AuthState {
	return &AuthState{session: session, profiles: profiles}
}

// Session returns the auth session, or nil for guests
func (a *AuthState) Session() *auth.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// SetSession replaces the auth session, for example after a token refresh
func (a *AuthState) SetSession(s *auth.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

// UserID returns the signed-in user's id, or "" for guests
func (a *AuthState) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.User.ID
}

// Profile returns the loaded profile, or nil before it loaded or for guests
func (a *AuthState) Profile() *models.UserProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile
}

// IsAdmin prefers the loaded profile's role over the one in the session
func (a *AuthState) IsAdmin() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.profile != nil {
		return a.profile.IsAdmin()
	}
	return a.session != nil && a.session.User.IsAdmin()
}

// RefreshProfile reloads the profile. Failures are logged and clear it.
func (a *AuthState) RefreshProfile(ctx context.Context) {
	userID := a.UserID()
	if userID == "" || a.profiles == nil {
		return
	}
	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		log.Printf("[STATE] Failed to load profile of user %s: %v", userID, err)
		profile = nil
	}
	a.mu.Lock()
	a.profile = profile
	a.mu.Unlock()
}

// Session bundles the containers of one signed-in client
type Session struct {
	ID         string
	Auth       *AuthState
	Cart       *CartContainer
	Categories *CategoryContainer
	Filters    *FilterContainer
}

// Registry owns the live sessions
type Registry struct {
	categories *CategoryContainer
	carts      CartService
	orders     OrderPlacer
	profiles   ProfileLoader
	metrics    *metrics.AppMetrics

	mu       sync.Mutex
	sessions map[string]*Session
	// one cart container per user, shared by the user's sessions
	userCarts map[string]*sharedCart
}

type sharedCart struct {
	cart *CartContainer
	refs int
}

// NewRegistry creates a registry whose sessions share categories
func NewRegistry(categories *CategoryContainer, carts CartService, orders OrderPlacer, profiles ProfileLoader, m *metrics.AppMetrics) *Registry {
	return &Registry{
		categories: categories,
		carts:      carts,
		orders:     orders,
		profiles:   profiles,
		metrics:    m,
		sessions:   make(map[string]*Session),
		userCarts:  make(map[string]*sharedCart),
	}
}

// Categories returns the shared category container
func (r *Registry) Categories() *CategoryContainer {
	return r.categories
}

// Open returns the containers of an auth session, creating and loading
// them on first use. A known session gets its token updated.
func (r *Registry) Open(ctx context.Context, as *auth.Session) *Session {
	r.mu.Lock()
	if s, ok := r.sessions[as.ID]; ok {
		r.mu.Unlock()
		s.Auth.SetSession(as)
		return s
	}
	cart, created := r.acquireCartLocked(as.User.ID)
	s := &Session{
		ID:         as.ID,
		Auth:       NewAuthState(as, r.profiles),
		Cart:       cart,
		Categories: r.categories,
		Filters:    NewFilterContainer(nil),
	}
	r.sessions[as.ID] = s
	r.mu.Unlock()

	r.metrics.ActiveSessions.Add(ctx, 1, r.metrics.Attrs())
	log.Printf("[STATE] Opened session %s for user %s", as.ID, as.User.ID)

	s.Auth.RefreshProfile(ctx)
	if created {
		s.Cart.Refresh(ctx)
	}
	if !r.categories.Loaded() {
		r.categories.Refresh(ctx)
	}
	return s
}

// Get returns the containers of a live session, or nil
func (r *Registry) Get(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// Close drops a session's containers. It reports whether the session was open.
func (r *Registry) Close(ctx context.Context, sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	if ok {
		r.releaseCartLocked(s.Cart.userID)
	}
	r.mu.Unlock()

	if ok {
		r.metrics.ActiveSessions.Add(ctx, -1, r.metrics.Attrs())
		log.Printf("[STATE] Closed session %s", sessionID)
	}
	return ok
}

// acquireCartLocked returns the user's cart container, creating it when
// the user has no open session. Callers hold r.mu.
func (r *Registry) acquireCartLocked(userID string) (*CartContainer, bool) {
	if shared, ok := r.userCarts[userID]; ok {
		shared.refs++
		return shared.cart, false
	}
	cart := NewCartContainer(userID, r.carts, r.orders, r.metrics)
	r.userCarts[userID] = &sharedCart{cart: cart, refs: 1}
	return cart, true
}

// releaseCartLocked drops the user's cart container with its last session.
// Callers hold r.mu.
func (r *Registry) releaseCartLocked(userID string) {
	shared, ok := r.userCarts[userID]
	if !ok {
		return
	}
	if shared.refs--; shared.refs <= 0 {
		delete(r.userCarts, userID)
	}
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Guest returns fresh containers for an anonymous client. Guest sessions
// are not registered.
func (r *Registry) Guest() *Session {
	return &Session{
		Auth:       NewAuthState(nil, r.profiles),
		Cart:       NewCartContainer("", r.carts, r.orders, r.metrics),
		Categories: r.categories,
		Filters:    NewFilterContainer(nil),
	}
}

// Watch closes sessions as the broker reports them signed out, including
// expired ones. It returns when ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, broker *auth.Broker) {
	events, cancel := broker.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == auth.EventSignedOut {
				r.Close(ctx, ev.SessionID)
			}
		}
	}
}
