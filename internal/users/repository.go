package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]record, error)
	Get(ctx context.Context, id int64) (record, error)
	GetByUsername(ctx context.Context, username string) (record, error)
	Create(ctx context.Context, username string, profile Profile, permissions []string) (record, error)
	Update(ctx context.Context, id int64, profile Profile) (record, error)
	ReplacePermissions(ctx context.Context, id int64, permissions []string) (record, error)
	Delete(ctx context.Context, id int64) error
	Permissions(ctx context.Context, username string) ([]string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const userColumns = `id, username, first_name, last_name, session_timeout_minutes, permissions,
	password_hash IS NOT NULL AND password_hash <> '', created_at, updated_at`

// List returns all users ordered by username.
func (r *Repository) List(ctx context.Context) ([]record, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (record, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (record, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// Create inserts a user without a password. The password is set later
// through account registration.
func (r *Repository) Create(ctx context.Context, username string, profile Profile, permissions []string) (record, error) {
	rec, err := r.one(ctx, `
		INSERT INTO users (username, first_name, last_name, session_timeout_minutes, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+userColumns,
		username, profile.FirstName, profile.LastName, profile.SessionTimeout, permissions)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return record{}, ErrDuplicate
		}
		return record{}, err
	}
	return rec, nil
}

// Update replaces the profile fields of a user.
func (r *Repository) Update(ctx context.Context, id int64, profile Profile) (record, error) {
	return r.one(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, session_timeout_minutes = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, profile.FirstName, profile.LastName, profile.SessionTimeout)
}

// ReplacePermissions overwrites the whole permission set of a user.
func (r *Repository) ReplacePermissions(ctx context.Context, id int64, permissions []string) (record, error) {
	return r.one(ctx, `
		UPDATE users SET permissions = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, permissions)
}

// Delete removes a user and, with it, the user's permissions.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Permissions returns the stored permission labels of a user.
func (r *Repository) Permissions(ctx context.Context, username string) ([]string, error) {
	var perms []string
	err := r.db.QueryRow(ctx, `SELECT permissions FROM users WHERE username = $1`, username).Scan(&perms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return perms, nil
}

func (r *Repository) one(ctx context.Context, query string, args ...interface{}) (record, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record{}, ErrNotFound
		}
		return record{}, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (record, error) {
	var rec record
	err := row.Scan(&rec.ID, &rec.Username, &rec.FirstName, &rec.LastName, &rec.SessionTimeout,
		&rec.Permissions, &rec.HasPassword, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

var _ RepositoryPort = (*Repository)(nil)
