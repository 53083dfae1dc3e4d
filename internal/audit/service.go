package audit

import (
	"context"
	"fmt"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service records and reads the audit trail.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record persists one entry.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return ErrIncompleteEntry
	}
	return s.repo.Insert(ctx, entry)
}

// Timeline returns one page of entries. One extra row is fetched to detect a
// following page.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	if page > httpx.MaxPage {
		page = httpx.MaxPage
	}
	q := queryFor(filters)
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1
	rows, err := s.repo.Find(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every entry matching filters, ignoring paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Find(ctx, queryFor(filters))
}

func queryFor(f TimelineFilters) Query {
	return Query{From: f.From, To: f.To, Actor: f.Actor, Entity: f.Entity, Action: f.Action}
}
