package users

import (
	"fmt"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates the username is taken.
	ErrDuplicate = fmt.Errorf("users: username %w", httpx.ErrDuplicate)
	// ErrSelfDelete blocks an administrator from deleting their own account.
	ErrSelfDelete = fmt.Errorf("users: cannot delete the signed-in account: %w", httpx.ErrValidation)
)

// DefaultPermissions are granted to users created without an explicit set.
var DefaultPermissions = []rbac.Permission{rbac.ViewMovies, rbac.ViewSubscriptions, rbac.ViewMembers}

// User is a back-office account. The account owns its permission set.
type User struct {
	ID             int64             `json:"id"`
	Username       string            `json:"username"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	SessionTimeout int               `json:"session_timeout_minutes"`
	Permissions    []rbac.Permission `json:"permissions"`
	IsAdmin        bool              `json:"is_admin"`
	HasPassword    bool              `json:"has_password"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Profile holds the editable, non-permission fields of a user.
type Profile struct {
	FirstName      string
	LastName       string
	SessionTimeout int
}

// record is the storage shape of a user row.
type record struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	SessionTimeout int
	Permissions    []string
	HasPassword    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
