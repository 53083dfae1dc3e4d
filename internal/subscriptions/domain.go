package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when a subscription or entry does not exist.
	ErrNotFound = fmt.Errorf("subscription %w", httpx.ErrNotFound)
	// ErrAlreadyWatched is returned when the member already holds the movie.
	ErrAlreadyWatched = fmt.Errorf("movie already in subscription: %w", httpx.ErrDuplicate)
	// ErrUnknownReference is returned when the member or movie does not exist.
	ErrUnknownReference = fmt.Errorf("unknown member or movie: %w", httpx.ErrValidation)
)

// WatchedMovie is one entry of a subscription.
type WatchedMovie struct {
	MovieID   int64     `json:"movie_id"`
	MovieName string    `json:"movie_name,omitempty"`
	Date      time.Time `json:"date"`
}

// Subscription groups the movies a member has subscribed to.
type Subscription struct {
	ID        int64          `json:"id"`
	MemberID  int64          `json:"member_id"`
	Movies    []WatchedMovie `json:"movies"`
	CreatedAt time.Time      `json:"created_at"`
}

// Watcher is a member who subscribed to a given movie.
type Watcher struct {
	MemberID   int64     `json:"member_id"`
	MemberName string    `json:"member_name"`
	Date       time.Time `json:"date"`
}

// Repository defines persistence for subscriptions.
type Repository interface {
	List(ctx context.Context) ([]Subscription, error)
	GetByMember(ctx context.Context, memberID int64) (Subscription, error)
	AddMovie(ctx context.Context, memberID, movieID int64, date time.Time) (Subscription, error)
	RemoveMovie(ctx context.Context, memberID, movieID int64) error
	Delete(ctx context.Context, id int64) error
	Watchers(ctx context.Context, movieID int64) ([]Watcher, error)
}
