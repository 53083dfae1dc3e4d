package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

type stubRepo struct {
	rows     []Entry
	inserted []Entry
	last     Query
}

func (s *stubRepo) Insert(ctx context.Context, entry Entry) error {
	s.inserted = append(s.inserted, entry)
	return nil
}

func (s *stubRepo) Find(ctx context.Context, q Query) ([]Entry, error) {
	s.last = q
	return s.rows, nil
}

func entry(at, actor, action, id string) Entry {
	ts, _ := time.Parse(time.RFC3339, at)
	return Entry{At: ts, Actor: actor, Action: action, Entity: EntityUser, EntityID: id}
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: []Entry{
		entry("2024-03-10T10:00:00Z", "root", ActionPermissionsReplaced, "1"),
		entry("2024-03-09T09:00:00Z", "root", ActionUserUpdated, "2"),
		entry("2024-03-08T08:00:00Z", "root", ActionUserCreated, "3"),
	}}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 3, repo.last.Limit)
	assert.Equal(t, 0, repo.last.Offset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500, Actor: "root"})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.False(t, result.Paging.HasNext)
	assert.NotNil(t, result.Rows)
	assert.Equal(t, maxPageSize+1, repo.last.Limit)
	assert.Equal(t, 2*maxPageSize, repo.last.Offset)
	assert.Equal(t, "root", repo.last.Actor)
}

func TestTimelineOffsetStaysPositiveForHugePage(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: int(^uint(0) >> 1), PageSize: maxPageSize})
	require.NoError(t, err)
	assert.Equal(t, httpx.MaxPage, result.Paging.Page)
	assert.Positive(t, repo.last.Offset)
}

func TestExportIgnoresPaging(t *testing.T) {
	repo := &stubRepo{rows: []Entry{entry("2024-03-10T10:00:00Z", "root", ActionUserDeleted, "9")}}
	svc := NewService(repo)

	rows, err := svc.Export(context.Background(), TimelineFilters{Page: 4, PageSize: 10, Action: ActionUserDeleted})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Zero(t, repo.last.Limit)
	assert.Equal(t, ActionUserDeleted, repo.last.Action)
}

func TestRecordRequiresIdentifyingFields(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	assert.ErrorIs(t, svc.Record(context.Background(), Entry{Action: ActionUserCreated}), ErrIncompleteEntry)
	require.NoError(t, svc.Record(context.Background(), Entry{Action: ActionUserCreated, Entity: EntityUser, EntityID: "1"}))
	assert.Len(t, repo.inserted, 1)
}

func TestNilServiceReportsMisconfiguration(t *testing.T) {
	var svc *Service
	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	rows := []Entry{entry("2024-03-10T10:00:00Z", "root", ActionPermissionsReplaced, "1")}
	rows[0].Meta = map[string]any{"username": "gina"}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"2024-03-10T10:00:00Z", "root", ActionPermissionsReplaced, EntityUser, "1", `{"username":"gina"}`}, records[1])
}
