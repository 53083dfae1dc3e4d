package movies

import (
	"context"
	"fmt"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when a movie does not exist.
	ErrNotFound = fmt.Errorf("movie %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when a movie name is already taken.
	ErrDuplicate = fmt.Errorf("movie name %w", httpx.ErrDuplicate)
)

// Movie is a catalog title members can subscribe to.
type Movie struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Genres    []string   `json:"genres"`
	ImageURL  string     `json:"image_url"`
	Premiered *time.Time `json:"premiered,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Input carries writable movie fields.
type Input struct {
	Name      string
	Genres    []string
	ImageURL  string
	Premiered *time.Time
}

// Repository defines persistence for movies.
type Repository interface {
	List(ctx context.Context, page httpx.PageRequest) ([]Movie, int, error)
	Get(ctx context.Context, id int64) (Movie, error)
	Create(ctx context.Context, in Input) (Movie, error)
	Update(ctx context.Context, id int64, in Input) (Movie, error)
	Delete(ctx context.Context, id int64) error
	UpsertByName(ctx context.Context, in Input) (Movie, bool, error)
}
