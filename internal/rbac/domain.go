package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Permission is a capability label from the closed vocabulary below.
type Permission string

// Permission vocabulary.
const (
	ViewMovies   Permission = "View Movies"
	CreateMovies Permission = "Create Movies"
	UpdateMovies Permission = "Update Movies"
	DeleteMovies Permission = "Delete Movies"

	ViewSubscriptions   Permission = "View Subscriptions"
	CreateSubscriptions Permission = "Create Subscriptions"
	UpdateSubscriptions Permission = "Update Subscriptions"
	DeleteSubscriptions Permission = "Delete Subscriptions"

	ViewMembers   Permission = "View Members"
	CreateMembers Permission = "Create Members"
	UpdateMembers Permission = "Update Members"
	DeleteMembers Permission = "Delete Members"

	ViewUsers   Permission = "View Users"
	CreateUsers Permission = "Create Users"
	UpdateUsers Permission = "Update Users"
	DeleteUsers Permission = "Delete Users"

	// ManageUsers is the administrative tier. Holding it satisfies every check.
	ManageUsers Permission = "Manage Users"
)

var vocabulary = []Permission{
	ViewMovies, CreateMovies, UpdateMovies, DeleteMovies,
	ViewSubscriptions, CreateSubscriptions, UpdateSubscriptions, DeleteSubscriptions,
	ViewMembers, CreateMembers, UpdateMembers, DeleteMembers,
	ViewUsers, CreateUsers, UpdateUsers, DeleteUsers,
	ManageUsers,
}

var vocabularyIndex = func() map[Permission]int {
	idx := make(map[Permission]int, len(vocabulary))
	for i, p := range vocabulary {
		idx[p] = i
	}
	return idx
}()

var (
	// ErrUnknownPermission indicates a label outside the vocabulary.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	// ErrIdentityNotFound indicates no permission record exists for an identity.
	ErrIdentityNotFound = errors.New("rbac: identity not found")
	// ErrUnauthenticated indicates the request carried no usable credential.
	ErrUnauthenticated = errors.New("rbac: unauthenticated")
)

// AllPermissions returns the vocabulary in its canonical order.
func AllPermissions() []Permission {
	out := make([]Permission, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Valid reports whether p belongs to the vocabulary.
func (p Permission) Valid() bool {
	_, ok := vocabularyIndex[p]
	return ok
}

func (p Permission) String() string { return string(p) }

// ParsePermission converts a stored or submitted label into a Permission.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
	}
	return p, nil
}

// Identity is a caller resolved from a verified bearer token.
type Identity struct {
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// Principal is an authenticated identity together with the permissions
// loaded for it on the current request.
type Principal struct {
	Identity    Identity
	Permissions Set
	IsAdmin     bool
}

// TokenVerifier validates a bearer credential and returns the identity it names.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// PermissionStore returns the current permission set of an identity.
// Implementations return ErrIdentityNotFound for unknown usernames.
type PermissionStore interface {
	LoadPermissions(ctx context.Context, username string) (Set, error)
}
