package movies

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// Service implements movie catalog rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns one page of movies with pagination metadata.
func (s *Service) List(ctx context.Context, page httpx.PageRequest) ([]Movie, httpx.Pagination, error) {
	items, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, httpx.Pagination{}, fmt.Errorf("movies: list: %w", err)
	}
	if items == nil {
		items = []Movie{}
	}
	return items, httpx.NewPagination(page, total), nil
}

// Get returns a movie by ID.
func (s *Service) Get(ctx context.Context, id int64) (Movie, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new movie.
func (s *Service) Create(ctx context.Context, in Input) (Movie, error) {
	in, err := normalize(in)
	if err != nil {
		return Movie{}, err
	}
	return s.repo.Create(ctx, in)
}

// Update validates and replaces a movie's fields.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Movie, error) {
	in, err := normalize(in)
	if err != nil {
		return Movie{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a movie together with every subscription entry for it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("movie deleted", slog.Int64("movie_id", id))
	}
	return nil
}

// Upsert stores a movie keyed by name and reports whether it was new.
func (s *Service) Upsert(ctx context.Context, in Input) (Movie, bool, error) {
	in, err := normalize(in)
	if err != nil {
		return Movie{}, false, err
	}
	return s.repo.UpsertByName(ctx, in)
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Input{}, fmt.Errorf("%w: movie name required", httpx.ErrValidation)
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	genres := make([]string, 0, len(in.Genres))
	seen := make(map[string]struct{}, len(in.Genres))
	for _, g := range in.Genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		key := strings.ToLower(g)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		genres = append(genres, g)
	}
	in.Genres = genres
	return in, nil
}
