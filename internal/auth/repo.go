package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	SetInitialPassword(ctx context.Context, username, hash string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches credentials by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var (
		user    User
		hash    *string
		minutes int
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, session_timeout_minutes FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &hash, &minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if hash != nil {
		user.PasswordHash = *hash
	}
	user.SessionTimeout = time.Duration(minutes) * time.Minute
	return &user, nil
}

// SetInitialPassword stores the first password of an account created by an
// administrator. It refuses to overwrite an existing password.
func (r *PGRepository) SetInitialPassword(ctx context.Context, username, hash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE username = $1 AND (password_hash IS NULL OR password_hash = '')`,
		username, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
