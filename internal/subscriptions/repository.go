package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemaclub/cinemaclub/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository stores subscriptions in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns every subscription with its movies.
func (r *PGRepository) List(ctx context.Context) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, member_id, created_at FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var subs []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.MemberID, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		subs = append(subs, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range subs {
		movies, err := loadMovies(ctx, r.pool, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Movies = movies
	}
	return subs, nil
}

// GetByMember returns the subscription owned by memberID.
func (r *PGRepository) GetByMember(ctx context.Context, memberID int64) (Subscription, error) {
	return getByMember(ctx, r.pool, memberID)
}

// AddMovie records that memberID watched movieID on date, creating the
// subscription when the member has none yet.
func (r *PGRepository) AddMovie(ctx context.Context, memberID, movieID int64, date time.Time) (Subscription, error) {
	var out Subscription
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var subID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO subscriptions (member_id, created_at) VALUES ($1, NOW())
			ON CONFLICT (member_id) DO UPDATE SET member_id = EXCLUDED.member_id
			RETURNING id`, memberID).Scan(&subID)
		if err != nil {
			return mapWriteError(err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO subscription_movies (subscription_id, movie_id, watched_on)
			VALUES ($1, $2, $3)`, subID, movieID, date); err != nil {
			return mapWriteError(err)
		}
		out, err = getByMember(ctx, tx, memberID)
		return err
	})
	return out, err
}

// RemoveMovie deletes a single movie from a member's subscription.
func (r *PGRepository) RemoveMovie(ctx context.Context, memberID, movieID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM subscription_movies sm
		USING subscriptions s
		WHERE sm.subscription_id = s.id AND s.member_id = $1 AND sm.movie_id = $2`,
		memberID, movieID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a subscription and all its entries.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Watchers lists the members subscribed to movieID.
func (r *PGRepository) Watchers(ctx context.Context, movieID int64) ([]Watcher, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.name, sm.watched_on
		FROM subscription_movies sm
		JOIN subscriptions s ON s.id = sm.subscription_id
		JOIN members m ON m.id = s.member_id
		WHERE sm.movie_id = $1
		ORDER BY sm.watched_on, m.name`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Watcher
	for rows.Next() {
		var w Watcher
		if err := rows.Scan(&w.MemberID, &w.MemberName, &w.Date); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func getByMember(ctx context.Context, q dbtx, memberID int64) (Subscription, error) {
	var s Subscription
	err := q.QueryRow(ctx,
		`SELECT id, member_id, created_at FROM subscriptions WHERE member_id = $1`, memberID,
	).Scan(&s.ID, &s.MemberID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	s.Movies, err = loadMovies(ctx, q, s.ID)
	return s, err
}

func loadMovies(ctx context.Context, q dbtx, subID int64) ([]WatchedMovie, error) {
	rows, err := q.Query(ctx, `
		SELECT sm.movie_id, mv.name, sm.watched_on
		FROM subscription_movies sm
		JOIN movies mv ON mv.id = sm.movie_id
		WHERE sm.subscription_id = $1
		ORDER BY sm.watched_on, mv.name`, subID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movies := []WatchedMovie{}
	for rows.Next() {
		var w WatchedMovie
		if err := rows.Scan(&w.MovieID, &w.MovieName, &w.Date); err != nil {
			return nil, err
		}
		movies = append(movies, w)
	}
	return movies, rows.Err()
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyWatched
		case "23503":
			return ErrUnknownReference
		}
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
