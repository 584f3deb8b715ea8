package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/veloshop/storefront/internal/auth"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// AuthService handles accounts and sessions
type AuthService struct {
	users    store.Users
	sessions *auth.Manager
	isAdmin  func(email string) bool

	// Cost is the bcrypt cost used for new password hashes
	Cost int
}

// NewAuthService creates a new auth service. Accounts whose email isAdmin
// accepts get the admin role on sign-up; isAdmin may be nil.
func NewAuthService(users store.Users, sessions *auth.Manager, isAdmin func(email string) bool) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		isAdmin:  isAdmin,
		Cost:     bcrypt.DefaultCost,
	}
}

// Sessions returns the session manager
func (s *AuthService) Sessions() *auth.Manager {
	return s.sessions
}

// SignUp creates an account and signs it in
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*auth.Session, error) {
	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") {
		return nil, Invalid("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, Invalid("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.UserProfile{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleCustomer,
		PasswordHash: string(hash),
	}
	if s.isAdmin != nil && s.isAdmin(email) {
		user.Role = models.RoleAdmin
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if store.IsDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AUTH] Signed up user %s (role=%s)", user.ID, user.Role)
	return s.issue(*user)
}

// SignIn checks credentials and starts a session
func (s *AuthService) SignIn(ctx context.Context, req models.SignInRequest) (*auth.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to check password: %w", err)
	}
	return s.issue(*user)
}

// SignOut ends a session. Signing out twice is not an error.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) {
	if s.sessions.Revoke(sessionID) {
		log.Printf("[AUTH] Session %s signed out", sessionID)
	}
}

// Refresh issues a new token for a live session
func (s *AuthService) Refresh(ctx context.Context, sessionID string) (*auth.Session, error) {
	session, err := s.sessions.Refresh(sessionID)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownSession) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return session, nil
}

// CurrentSession returns the session a token belongs to, or nil when the
// token is not valid
func (s *AuthService) CurrentSession(token string) *auth.Session {
	if token == "" {
		return nil
	}
	session, err := s.sessions.Verify(token)
	if err != nil {
		return nil
	}
	return session
}

// GetProfile returns the user's profile, or nil if it does not exist
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the editable profile fields and returns the new profile
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.FullName = strings.TrimSpace(req.FullName)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	profile := *user
	profile.PasswordHash = ""
	s.sessions.UpdateUser(profile)
	return &profile, nil
}

func (s *AuthService) issue(user models.UserProfile) (*auth.Session, error) {
	user.PasswordHash = ""
	session, err := s.sessions.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}
