package members

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository stores members in PostgreSQL.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

const memberColumns = `id, name, email, city, created_at, updated_at`

// List returns one page of members matching the search on name or email.
func (r *PGRepository) List(ctx context.Context, page httpx.PageRequest) ([]Member, int, error) {
	const where = `WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM members `+where, page.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+` FROM members `+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		page.Search, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.City, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Get fetches a member by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Member, error) {
	return r.one(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
}

// Create inserts a member.
func (r *PGRepository) Create(ctx context.Context, in Input) (Member, error) {
	return r.one(ctx, `
		INSERT INTO members (name, email, city, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+memberColumns,
		in.Name, in.Email, in.City)
}

// Update replaces the writable fields of a member.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) (Member, error) {
	return r.one(ctx, `
		UPDATE members SET name = $2, email = $3, city = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+memberColumns,
		id, in.Name, in.Email, in.City)
}

// Delete removes a member. Their subscription cascades.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByEmail inserts a member or refreshes the one with the same email.
func (r *PGRepository) UpsertByEmail(ctx context.Context, in Input) (Member, bool, error) {
	var (
		m        Member
		inserted bool
	)
	err := r.db.QueryRow(ctx, `
		INSERT INTO members (name, email, city, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, city = EXCLUDED.city, updated_at = NOW()
		RETURNING `+memberColumns+`, (xmax = 0)`,
		in.Name, in.Email, in.City,
	).Scan(&m.ID, &m.Name, &m.Email, &m.City, &m.CreatedAt, &m.UpdatedAt, &inserted)
	if err != nil {
		return Member{}, false, err
	}
	return m, inserted, nil
}

func (r *PGRepository) one(ctx context.Context, query string, args ...interface{}) (Member, error) {
	var m Member
	err := r.db.QueryRow(ctx, query, args...).Scan(&m.ID, &m.Name, &m.Email, &m.City, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Member{}, ErrDuplicate
		}
		return Member{}, err
	}
	return m, nil
}

var _ Repository = (*PGRepository)(nil)
