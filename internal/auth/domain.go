package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountExists indicates the account already has a password.
	ErrAccountExists = errors.New("auth: account already registered")
	// ErrInvalidToken indicates a malformed or badly signed token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken indicates the token is past its expiry.
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrRevokedToken indicates the token was revoked by logout.
	ErrRevokedToken = errors.New("auth: token revoked")
	// ErrPasswordTooLong rejects passwords bcrypt cannot hash.
	ErrPasswordTooLong = fmt.Errorf("auth: password longer than %d bytes: %w", maxPasswordBytes, httpx.ErrValidation)
)

// User is the credential view of an account.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	SessionTimeout time.Duration
}

// Token is a signed bearer credential.
type Token struct {
	Value     string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
