package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloshop/storefront/internal/models"
)

var alice = models.UserProfile{ID: "u1", Email: "alice@example.com", Role: models.RoleCustomer}

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	s, err := m.Issue(alice)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	got, err := m.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.User.Email)
}

func TestVerifyRejectsForeignAndRevokedTokens(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	other := NewManager("other-secret", time.Hour, nil)

	foreign, err := other.Issue(alice)
	require.NoError(t, err)
	_, err = m.Verify(foreign.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s, err := m.Issue(alice)
	require.NoError(t, err)
	assert.True(t, m.Revoke(s.ID))
	assert.False(t, m.Revoke(s.ID))
	_, err = m.Verify(s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredTokens(t *testing.T) {
	m := NewManager("secret", time.Minute, nil)
	s, err := m.Issue(alice)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Verify(s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSigningMethods(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	s, err := m.Issue(alice)
	require.NoError(t, err)

	claims := Claims{SessionID: s.ID, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshReplacesToken(t *testing.T) {
	broker := NewBroker()
	events, cancel := broker.Subscribe(4)
	defer cancel()

	m := NewManager("secret", time.Hour, broker)
	s, err := m.Issue(alice)
	require.NoError(t, err)

	refreshed, err := m.Refresh(s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, refreshed.Token)

	_, err = m.Verify(s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Verify(refreshed.Token)
	assert.NoError(t, err)

	assert.Equal(t, EventSignedIn, (<-events).Type)
	ev := <-events
	assert.Equal(t, EventTokenRefreshed, ev.Type)
	assert.Equal(t, s.ID, ev.SessionID)

	_, err = m.Refresh("missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestIssuePrunesExpiredSessions(t *testing.T) {
	broker := NewBroker()
	events, cancel := broker.Subscribe(4)
	defer cancel()

	m := NewManager("secret", time.Minute, broker)
	old, err := m.Issue(alice)
	require.NoError(t, err)
	<-events

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Issue(alice)
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, EventSignedOut, ev.Type)
	assert.Equal(t, old.ID, ev.SessionID)
	assert.Equal(t, EventSignedIn, (<-events).Type)
}

func TestUpdateUserChangesLiveSessions(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	s, err := m.Issue(alice)
	require.NoError(t, err)

	renamed := alice
	renamed.FullName = "Alice Liddell"
	m.UpdateUser(renamed)

	got, err := m.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.User.FullName)
}

func TestIssuedSessionIsDetachedFromManager(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	s, err := m.Issue(alice)
	require.NoError(t, err)
	issuedToken := s.Token

	refreshed, err := m.Refresh(s.ID)
	require.NoError(t, err)
	renamed := alice
	renamed.FullName = "Alice Liddell"
	m.UpdateUser(renamed)

	assert.Equal(t, issuedToken, s.Token)
	assert.NotEqual(t, refreshed.Token, s.Token)
	assert.Empty(t, s.User.FullName)

	// concurrent refreshes never write to the caller's value
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Refresh(s.ID)
		}()
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, issuedToken, s.Token)
	}
	wg.Wait()
}
