package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	tokens     *TokenManager
	store      rbac.PermissionStore
	revoke     Revocations
	defaultTTL time.Duration
}

// NewService constructs a new Service. revoke may be nil, in which case
// logout is a no-op on the server side.
func NewService(repo Repository, tokens *TokenManager, store rbac.PermissionStore, revoke Revocations, defaultTTL time.Duration) *Service {
	return &Service{repo: repo, tokens: tokens, store: store, revoke: revoke, defaultTTL: defaultTTL}
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token       Token             `json:"token"`
	Username    string            `json:"username"`
	Permissions []rbac.Permission `json:"permissions"`
	IsAdmin     bool              `json:"is_admin"`
}

// Login validates credentials and issues a token whose lifetime follows the
// user's session timeout.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("auth: find user: %w", err)
	}
	if user.PasswordHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	granted, err := s.store.LoadPermissions(ctx, user.Username)
	if err != nil {
		if errors.Is(err, rbac.ErrIdentityNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	ttl := user.SessionTimeout
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	token, err := s.tokens.Issue(user.Username, ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:       token,
		Username:    user.Username,
		Permissions: granted.Slice(),
		IsAdmin:     rbac.IsAdmin(granted),
	}, nil
}

// CreateAccount sets the password of a user that an administrator created
// without one.
func (s *Service) CreateAccount(ctx context.Context, username, password string) error {
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user.PasswordHash != "" {
		return ErrAccountExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.SetInitialPassword(ctx, username, string(hash))
}

// Logout revokes the token behind identity.
func (s *Service) Logout(ctx context.Context, identity rbac.Identity) error {
	if s.revoke == nil {
		return nil
	}
	return s.revoke.Revoke(ctx, identity.TokenID, identity.ExpiresAt)
}
