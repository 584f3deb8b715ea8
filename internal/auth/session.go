// Package auth issues and verifies signed session tokens and publishes
// session changes.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/models"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrUnknownSession = errors.New("unknown session")
)

// Session is one signed-in client
type Session struct {
	ID        string             `json:"id"`
	Token     string             `json:"access_token"`
	User      models.UserProfile `json:"user"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// Claims carried by a session token
type Claims struct {
	SessionID string      `json:"sid"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager keeps the live sessions. A token is valid while it verifies and
// its session has not been revoked.
type Manager struct {
	secret []byte
	ttl    time.Duration
	broker *Broker
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(secret string, ttl time.Duration, broker *Broker) *Manager {
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		broker:   broker,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Issue starts a session for the user
func (m *Manager) Issue(user models.UserProfile) (*Session, error) {
	s := &Session{ID: uuid.NewString(), User: user}
	if err := m.sign(s); err != nil {
		return nil, err
	}

	// callers get a copy; the stored session is only touched under mu
	c := *s

	m.mu.Lock()
	expired := m.pruneLocked()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	for _, old := range expired {
		m.publish(EventSignedOut, old)
	}
	m.publish(EventSignedIn, &c)
	return &c, nil
}

// pruneLocked drops expired sessions and returns them
func (m *Manager) pruneLocked() []*Session {
	now := m.now()
	var expired []*Session
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	return expired
}

// Verify returns the live session a token belongs to
func (m *Manager) Verify(token string) (*Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	m.mu.RLock()
	s, ok := m.sessions[claims.SessionID]
	m.mu.RUnlock()
	// a refreshed session no longer accepts its previous token
	if !ok || s.Token != token {
		return nil, ErrInvalidToken
	}
	c := *s
	return &c, nil
}

// Refresh issues a new token for a live session and extends its expiry
func (m *Manager) Refresh(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrUnknownSession
	}
	if err := m.sign(s); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	c := *s
	m.mu.Unlock()

	m.publish(EventTokenRefreshed, &c)
	return &c, nil
}

// UpdateUser replaces the profile carried by the user's sessions
func (m *Manager) UpdateUser(user models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.User.ID == user.ID {
			s.User = user
		}
	}
}

// Revoke ends a session. Revoking an unknown session reports false.
func (m *Manager) Revoke(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		m.publish(EventSignedOut, s)
	}
	return ok
}

// Broker returns the broker session events are published on
func (m *Manager) Broker() *Broker {
	return m.broker
}

// sign sets a fresh token and expiry on s
func (m *Manager) sign(s *Session) error {
	now := m.now()
	// token ids keep tokens issued within the same second distinct
	claims := Claims{
		SessionID: s.ID,
		Role:      s.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	s.Token = token
	s.ExpiresAt = claims.ExpiresAt.Time
	return nil
}

func (m *Manager) publish(t EventType, s *Session) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(SessionEvent{
		Type:      t,
		SessionID: s.ID,
		UserID:    s.User.ID,
		ExpiresAt: s.ExpiresAt,
	})
}
