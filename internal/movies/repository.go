package movies

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

// PGRepository stores movies in PostgreSQL.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

const movieColumns = `id, name, genres, image_url, premiered, created_at, updated_at`

// List returns one page of movies ordered by name, filtered by a
// case-insensitive name search.
func (r *PGRepository) List(ctx context.Context, page httpx.PageRequest) ([]Movie, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM movies WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`,
		page.Search,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+movieColumns+` FROM movies
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2 OFFSET $3`,
		page.Search, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Get fetches a movie by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Movie, error) {
	return r.one(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
}

// Create inserts a movie.
func (r *PGRepository) Create(ctx context.Context, in Input) (Movie, error) {
	return r.one(ctx, `
		INSERT INTO movies (name, genres, image_url, premiered, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING `+movieColumns,
		in.Name, in.Genres, in.ImageURL, in.Premiered)
}

// Update replaces the writable fields of a movie.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) (Movie, error) {
	return r.one(ctx, `
		UPDATE movies SET name = $2, genres = $3, image_url = $4, premiered = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+movieColumns,
		id, in.Name, in.Genres, in.ImageURL, in.Premiered)
}

// Delete removes a movie. Subscriptions referencing it cascade.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByName inserts a movie or refreshes the one with the same name. The
// boolean reports whether a new row was inserted.
func (r *PGRepository) UpsertByName(ctx context.Context, in Input) (Movie, bool, error) {
	var inserted bool
	row := r.db.QueryRow(ctx, `
		INSERT INTO movies (name, genres, image_url, premiered, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET genres = EXCLUDED.genres, image_url = EXCLUDED.image_url,
		    premiered = EXCLUDED.premiered, updated_at = NOW()
		RETURNING `+movieColumns+`, (xmax = 0)`,
		in.Name, in.Genres, in.ImageURL, in.Premiered)
	var m Movie
	var image *string
	if err := row.Scan(&m.ID, &m.Name, &m.Genres, &image, &m.Premiered, &m.CreatedAt, &m.UpdatedAt, &inserted); err != nil {
		return Movie{}, false, err
	}
	if image != nil {
		m.ImageURL = *image
	}
	return m, inserted, nil
}

func (r *PGRepository) one(ctx context.Context, query string, args ...interface{}) (Movie, error) {
	m, err := scanMovie(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movie{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Movie{}, ErrDuplicate
		}
		return Movie{}, err
	}
	return m, nil
}

func scanMovie(row pgx.Row) (Movie, error) {
	var (
		m     Movie
		image *string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Genres, &image, &m.Premiered, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Movie{}, err
	}
	if image != nil {
		m.ImageURL = *image
	}
	if m.Genres == nil {
		m.Genres = []string{}
	}
	return m, nil
}

var _ Repository = (*PGRepository)(nil)
