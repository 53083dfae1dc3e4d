package members

import (
	"context"
	"fmt"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when a member does not exist.
	ErrNotFound = fmt.Errorf("member %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when an email is already registered.
	ErrDuplicate = fmt.Errorf("member email %w", httpx.ErrDuplicate)
)

// Member is a club member who subscribes to movies.
type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries writable member fields.
type Input struct {
	Name  string
	Email string
	City  string
}

// Repository defines persistence for members.
type Repository interface {
	List(ctx context.Context, page httpx.PageRequest) ([]Member, int, error)
	Get(ctx context.Context, id int64) (Member, error)
	Create(ctx context.Context, in Input) (Member, error)
	Update(ctx context.Context, id int64, in Input) (Member, error)
	Delete(ctx context.Context, id int64) error
	UpsertByEmail(ctx context.Context, in Input) (Member, bool, error)
}
