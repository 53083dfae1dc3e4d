package httpx

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// MaxPage caps page numbers so offsets stay far from integer overflow.
const MaxPage = 100000

// PageRequest holds list query parameters shared by collection endpoints.
type PageRequest struct {
	Page    int
	PerPage int
	Search  string
}

// Offset returns the row offset for the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePageRequest reads page, limit and search from the query string.
// Invalid values fall back to defaults.
func ParsePageRequest(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return NewPageRequest(page, limit, q.Get("search"))
}

// NewPageRequest clamps the given values into a valid PageRequest.
func NewPageRequest(page, perPage int, search string) PageRequest {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage, Search: strings.TrimSpace(search)}
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	return Pagination{Page: req.Page, PerPage: req.PerPage, Total: total, TotalPages: totalPages}
}
