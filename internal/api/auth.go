package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/pkg/filter"
)

const (
	eventsBuffer    = 16
	eventsPingEvery = 30 * time.Second
	eventsWriteWait = 10 * time.Second
)

// SessionInfo describes the caller's session
type SessionInfo struct {
	Session *auth.Session       `json:"session"`
	Profile *models.UserProfile `json:"profile"`
	IsAdmin bool                `json:"is_admin"`
}

// FilterInfo is the session's filter state and its query string
type FilterInfo struct {
	Filters filter.State `json:"filters"`
	Query   string       `json:"query"`
}

// SignUpHandler handles POST /api/v1/auth/signup
func (a *App) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	as, err := a.authService.SignUp(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Open(r.Context(), as)
	respondJSON(w, http.StatusCreated, as)
}

// SignInHandler handles POST /api/v1/auth/signin
func (a *App) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	as, err := a.authService.SignIn(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Open(r.Context(), as)
	respondJSON(w, http.StatusOK, as)
}

// SignOutHandler handles POST /api/v1/auth/signout
func (a *App) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	a.authService.SignOut(r.Context(), s.ID)
	a.registry.Close(r.Context(), s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshHandler handles POST /api/v1/auth/refresh
func (a *App) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	as, err := a.authService.Refresh(r.Context(), session(r).ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.registry.Open(r.Context(), as)
	respondJSON(w, http.StatusOK, as)
}

// SessionHandler handles GET /api/v1/auth/session
func (a *App) SessionHandler(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	respondJSON(w, http.StatusOK, SessionInfo{
		Session: s.Auth.Session(),
		Profile: s.Auth.Profile(),
		IsAdmin: s.Auth.IsAdmin(),
	})
}

// SessionEventsHandler handles GET /api/v1/auth/events. It streams the
// session changes of the calling user over a websocket until the client
// goes away or the calling session ends.
func (a *App) SessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	userID := s.Auth.UserID()
	broker := a.authService.Sessions().Broker()
	if broker == nil {
		http.Error(w, "session events are not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		log.Printf("[AUTH] Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := broker.Subscribe(eventsBuffer)
	defer cancel()

	// Reads only detect the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.UserID != userID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == auth.EventSignedOut && ev.SessionID == s.ID {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(eventsWriteWait))
				return
			}
		}
	}
}

// GetProfileHandler handles GET /api/v1/profile
func (a *App) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	s := session(r)
	s.Auth.RefreshProfile(r.Context())
	profile := s.Auth.Profile()
	if profile == nil {
		respondNotFound(w, "profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler handles PUT /api/v1/profile
func (a *App) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := session(r)
	profile, err := a.authService.UpdateProfile(r.Context(), s.Auth.UserID(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.Auth.RefreshProfile(r.Context())
	respondJSON(w, http.StatusOK, profile)
}

// GetFiltersHandler handles GET /api/v1/session/filters
func (a *App) GetFiltersHandler(w http.ResponseWriter, r *http.Request) {
	f := session(r).Filters
	respondJSON(w, http.StatusOK, FilterInfo{Filters: f.State(), Query: f.Query()})
}

// UpdateFiltersHandler handles PATCH /api/v1/session/filters
func (a *App) UpdateFiltersHandler(w http.ResponseWriter, r *http.Request) {
	var patch filter.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	st, query := session(r).Filters.Update(patch)
	respondJSON(w, http.StatusOK, FilterInfo{Filters: st, Query: query})
}

// ResetFiltersHandler handles DELETE /api/v1/session/filters
func (a *App) ResetFiltersHandler(w http.ResponseWriter, r *http.Request) {
	st, query := session(r).Filters.Reset()
	respondJSON(w, http.StatusOK, FilterInfo{Filters: st, Query: query})
}
