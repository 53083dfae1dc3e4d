package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// Service implements subscription rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// List returns all subscriptions.
func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: list: %w", err)
	}
	if subs == nil {
		subs = []Subscription{}
	}
	return subs, nil
}

// GetByMember returns the subscription of a member.
func (s *Service) GetByMember(ctx context.Context, memberID int64) (Subscription, error) {
	return s.repo.GetByMember(ctx, memberID)
}

// AddMovie subscribes memberID to movieID. A zero date means today. Dates in
// the future are rejected.
func (s *Service) AddMovie(ctx context.Context, memberID, movieID int64, date time.Time) (Subscription, error) {
	if memberID <= 0 || movieID <= 0 {
		return Subscription{}, fmt.Errorf("%w: member and movie are required", httpx.ErrValidation)
	}
	today := truncateDay(s.now())
	if date.IsZero() {
		date = today
	}
	date = truncateDay(date)
	if date.After(today) {
		return Subscription{}, fmt.Errorf("%w: date cannot be in the future", httpx.ErrValidation)
	}
	sub, err := s.repo.AddMovie(ctx, memberID, movieID, date)
	if err != nil {
		return Subscription{}, err
	}
	if s.logger != nil {
		s.logger.Info("subscription movie added",
			slog.Int64("member_id", memberID),
			slog.Int64("movie_id", movieID),
		)
	}
	return sub, nil
}

// RemoveMovie unsubscribes memberID from movieID.
func (s *Service) RemoveMovie(ctx context.Context, memberID, movieID int64) error {
	return s.repo.RemoveMovie(ctx, memberID, movieID)
}

// Delete removes a whole subscription.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Watchers lists who subscribed to a movie.
func (s *Service) Watchers(ctx context.Context, movieID int64) ([]Watcher, error) {
	out, err := s.repo.Watchers(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Watcher{}
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
