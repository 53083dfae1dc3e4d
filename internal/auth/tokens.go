package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Revocations records tokens invalidated before their expiry.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenManager issues and verifies HS256 bearer tokens. Tokens carry only the
// username; permissions are always read from the store.
type TokenManager struct {
	secret      []byte
	issuer      string
	revocations Revocations
	now         func() time.Time
}

// NewTokenManager constructs a TokenManager. revocations may be nil.
func NewTokenManager(secret, issuer string, revocations Revocations) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		issuer:      issuer,
		revocations: revocations,
		now:         time.Now,
	}
}

// Issue signs a token for username valid for ttl.
func (m *TokenManager) Issue(username string, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(username) == "" {
		return Token{}, errors.New("auth: username required")
	}
	if ttl <= 0 {
		return Token{}, errors.New("auth: token ttl must be positive")
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   username,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify implements rbac.TokenVerifier.
func (m *TokenManager) Verify(ctx context.Context, token string) (rbac.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return rbac.Identity{}, ErrExpiredToken
		}
		return rbac.Identity{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return rbac.Identity{}, ErrInvalidToken
	}
	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return rbac.Identity{}, fmt.Errorf("auth: check revocation: %w", err)
		}
		if revoked {
			return rbac.Identity{}, ErrRevokedToken
		}
	}
	return rbac.Identity{
		Username:  claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ rbac.TokenVerifier = (*TokenManager)(nil)
