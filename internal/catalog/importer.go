package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cinemaclub/cinemaclub/internal/members"
	"github.com/cinemaclub/cinemaclub/internal/movies"
	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// Feed provides the upstream records.
type Feed interface {
	Shows(ctx context.Context) ([]Show, error)
	People(ctx context.Context) ([]Person, error)
}

// MovieStore persists imported movies.
type MovieStore interface {
	Upsert(ctx context.Context, in movies.Input) (movies.Movie, bool, error)
}

// MemberStore persists imported members.
type MemberStore interface {
	Upsert(ctx context.Context, in members.Input) (members.Member, bool, error)
}

// Result summarises one import run.
type Result struct {
	MoviesCreated  int `json:"movies_created"`
	MoviesUpdated  int `json:"movies_updated"`
	MembersCreated int `json:"members_created"`
	MembersUpdated int `json:"members_updated"`
	Skipped        int `json:"skipped"`
}

// Importer copies the upstream feeds into the local catalog.
type Importer struct {
	feed    Feed
	movies  MovieStore
	members MemberStore
	logger  *slog.Logger
}

// NewImporter constructs an Importer.
func NewImporter(feed Feed, movies MovieStore, members MemberStore, logger *slog.Logger) *Importer {
	return &Importer{
		feed:    feed,
		movies:  movies,
		members: members,
		logger:  logger,
	}
}

// Run fetches both feeds concurrently and upserts every record. Records that
// fail validation are skipped and counted; any other store error aborts.
func (i *Importer) Run(ctx context.Context) (Result, error) {
	var (
		shows  []Show
		people []Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shows, err = i.feed.Shows(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		people, err = i.feed.People(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Casers are stateful, one per run.
	title := cases.Title(language.English)
	var res Result
	for _, show := range shows {
		_, created, err := i.movies.Upsert(ctx, movieInput(title, show))
		if err != nil {
			if errors.Is(err, httpx.ErrValidation) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("catalog: upsert movie %q: %w", show.Name, err)
		}
		if created {
			res.MoviesCreated++
		} else {
			res.MoviesUpdated++
		}
	}
	for _, p := range people {
		_, created, err := i.members.Upsert(ctx, members.Input{Name: p.Name, Email: p.Email, City: p.Address.City})
		if err != nil {
			if errors.Is(err, httpx.ErrValidation) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("catalog: upsert member %q: %w", p.Email, err)
		}
		if created {
			res.MembersCreated++
		} else {
			res.MembersUpdated++
		}
	}
	if i.logger != nil {
		i.logger.Info("catalog import finished",
			slog.Int("movies_created", res.MoviesCreated),
			slog.Int("movies_updated", res.MoviesUpdated),
			slog.Int("members_created", res.MembersCreated),
			slog.Int("members_updated", res.MembersUpdated),
			slog.Int("skipped", res.Skipped),
		)
	}
	return res, nil
}

func movieInput(title cases.Caser, show Show) movies.Input {
	in := movies.Input{Name: show.Name}
	for _, g := range show.Genres {
		in.Genres = append(in.Genres, title.String(strings.TrimSpace(g)))
	}
	if show.Image != nil {
		in.ImageURL = show.Image.Medium
		if in.ImageURL == "" {
			in.ImageURL = show.Image.Original
		}
	}
	if day, err := time.Parse(time.DateOnly, show.Premiered); err == nil {
		in.Premiered = &day
	}
	return in
}
