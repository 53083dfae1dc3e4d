package audit

import (
	"context"
	"errors"
	"time"
)

// Actions recorded for user administration.
const (
	ActionUserCreated         = "user.created"
	ActionUserUpdated         = "user.updated"
	ActionUserDeleted         = "user.deleted"
	ActionPermissionsReplaced = "user.permissions_replaced"
)

// EntityUser is the entity name for user records.
const EntityUser = "user"

// ErrIncompleteEntry is returned when an entry lacks action, entity or id.
var ErrIncompleteEntry = errors.New("audit: entry requires action, entity and entity id")

// Entry is one row of the audit trail.
type Entry struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TimelineFilters narrows a timeline query. Zero values disable a filter.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo describes the position of a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []Entry    `json:"data"`
	Paging PagingInfo `json:"paging"`
}

// Query is the repository-level form of TimelineFilters. Limit 0 means all rows.
type Query struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
	Offset int
	Limit  int
}

// Repository persists and reads audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	Find(ctx context.Context, q Query) ([]Entry, error)
}
