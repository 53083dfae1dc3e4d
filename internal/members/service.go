package members

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// Service implements member rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns one page of members.
func (s *Service) List(ctx context.Context, page httpx.PageRequest) ([]Member, httpx.Pagination, error) {
	items, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, httpx.Pagination{}, fmt.Errorf("members: list: %w", err)
	}
	if items == nil {
		items = []Member{}
	}
	return items, httpx.NewPagination(page, total), nil
}

// Get returns a member by ID.
func (s *Service) Get(ctx context.Context, id int64) (Member, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a member.
func (s *Service) Create(ctx context.Context, in Input) (Member, error) {
	in, err := normalize(in)
	if err != nil {
		return Member{}, err
	}
	return s.repo.Create(ctx, in)
}

// Update validates and replaces a member's fields.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Member, error) {
	in, err := normalize(in)
	if err != nil {
		return Member{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a member and their subscription.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("member deleted", slog.Int64("member_id", id))
	}
	return nil
}

// Upsert stores a member keyed by email and reports whether it was new.
func (s *Service) Upsert(ctx context.Context, in Input) (Member, bool, error) {
	in, err := normalize(in)
	if err != nil {
		return Member{}, false, err
	}
	return s.repo.UpsertByEmail(ctx, in)
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.City = strings.TrimSpace(in.City)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return Input{}, fmt.Errorf("%w: member name required", httpx.ErrValidation)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return Input{}, fmt.Errorf("%w: invalid member email", httpx.ErrValidation)
	}
	return in, nil
}
