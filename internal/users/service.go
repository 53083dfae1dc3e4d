package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cinemaclub/cinemaclub/internal/audit"
	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Service handles user business logic and serves as the permission store
// consulted by the route guard.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	auditor Auditor
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Option configures a Service.
type Option func(*Service)

// WithAuditor records every user mutation through a.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the fields for a new user.
type CreateInput struct {
	Username    string
	Profile     Profile
	Permissions []string
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	out := make([]User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.toUser(rec))
	}
	return out, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	return s.toUser(rec), nil
}

// GetByUsername returns a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	rec, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	return s.toUser(rec), nil
}

// Create registers a user. Without explicit permissions the user receives
// DefaultPermissions.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, fmt.Errorf("users: username required: %w", httpx.ErrValidation)
	}
	set := rbac.NewSet(DefaultPermissions...)
	if in.Permissions != nil {
		parsed, err := rbac.ParseSet(in.Permissions)
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		set = parsed
	}
	rec, err := s.repo.Create(ctx, username, normalizeProfile(in.Profile), set.Strings())
	if err != nil {
		return User{}, err
	}
	s.record(ctx, audit.ActionUserCreated, rec, map[string]any{"permissions": set.Strings()})
	return s.toUser(rec), nil
}

// Update changes the profile of a user.
func (s *Service) Update(ctx context.Context, id int64, profile Profile) (User, error) {
	rec, err := s.repo.Update(ctx, id, normalizeProfile(profile))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, audit.ActionUserUpdated, rec, nil)
	return s.toUser(rec), nil
}

// ReplacePermissions overwrites the whole permission set of a user. The new
// set applies to the user's next request.
func (s *Service) ReplacePermissions(ctx context.Context, id int64, permissions []string) (User, error) {
	set, err := rbac.ParseSet(permissions)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	rec, err := s.repo.ReplacePermissions(ctx, id, set.Strings())
	if err != nil {
		return User{}, err
	}
	if s.logger != nil {
		s.logger.Info("user permissions replaced", slog.Int64("user_id", id), slog.Any("permissions", set.Strings()))
	}
	s.record(ctx, audit.ActionPermissionsReplaced, rec, map[string]any{"permissions": set.Strings()})
	return s.toUser(rec), nil
}

// Delete removes a user unless it is the caller's own account.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Username == actor {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.ActionUserDeleted, rec, nil)
	return nil
}

// record writes an audit entry after a successful mutation. Failures are
// logged and never undo the change.
func (s *Service) record(ctx context.Context, action string, rec record, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["username"] = rec.Username
	entry := audit.Entry{
		Actor:    actorFrom(ctx),
		Action:   action,
		Entity:   audit.EntityUser,
		EntityID: strconv.FormatInt(rec.ID, 10),
		Meta:     meta,
	}
	if err := s.auditor.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func actorFrom(ctx context.Context) string {
	if p := rbac.PrincipalFromContext(ctx); p != nil && p.Identity.Username != "" {
		return p.Identity.Username
	}
	return "system"
}

// LoadPermissions implements rbac.PermissionStore. Stored labels outside the
// vocabulary are dropped so they can never grant anything.
func (s *Service) LoadPermissions(ctx context.Context, username string) (rbac.Set, error) {
	raw, err := s.repo.Permissions(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rbac.Set{}, rbac.ErrIdentityNotFound
		}
		return rbac.Set{}, fmt.Errorf("users: load permissions: %w", err)
	}
	return rbac.NewSet(s.knownPermissions(username, raw)...), nil
}

func (s *Service) knownPermissions(username string, raw []string) []rbac.Permission {
	perms := make([]rbac.Permission, 0, len(raw))
	for _, label := range raw {
		p, err := rbac.ParsePermission(label)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("ignoring stored permission", slog.String("username", username), slog.String("label", label))
			}
			continue
		}
		perms = append(perms, p)
	}
	return perms
}

func (s *Service) toUser(rec record) User {
	set := rbac.NewSet(s.knownPermissions(rec.Username, rec.Permissions)...)
	return User{
		ID:             rec.ID,
		Username:       rec.Username,
		FirstName:      rec.FirstName,
		LastName:       rec.LastName,
		SessionTimeout: rec.SessionTimeout,
		Permissions:    set.Slice(),
		IsAdmin:        rbac.IsAdmin(set),
		HasPassword:    rec.HasPassword,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func normalizeProfile(p Profile) Profile {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.SessionTimeout < 0 {
		p.SessionTimeout = 0
	}
	return p
}

var _ rbac.PermissionStore = (*Service)(nil)
