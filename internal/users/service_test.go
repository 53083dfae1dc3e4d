package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemaclub/cinemaclub/internal/audit"
	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu      sync.Mutex
	records map[int64]*record
	nextID  int64
	permErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[int64]*record), nextID: 1}
}

func (m *mockRepository) seed(username string, perms ...string) record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &record{ID: m.nextID, Username: username, Permissions: perms, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.records[rec.ID] = rec
	m.nextID++
	return *rec
}

func (m *mockRepository) List(ctx context.Context) ([]record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return record{}, ErrNotFound
	}
	return *rec, nil
}

func (m *mockRepository) GetByUsername(ctx context.Context, username string) (record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Username == username {
			return *rec, nil
		}
	}
	return record{}, ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, username string, profile Profile, permissions []string) (record, error) {
	if _, err := m.GetByUsername(ctx, username); err == nil {
		return record{}, ErrDuplicate
	}
	rec := m.seed(username, permissions...)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.records[rec.ID]
	stored.FirstName = profile.FirstName
	stored.LastName = profile.LastName
	stored.SessionTimeout = profile.SessionTimeout
	return *stored, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, profile Profile) (record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return record{}, ErrNotFound
	}
	rec.FirstName = profile.FirstName
	rec.LastName = profile.LastName
	rec.SessionTimeout = profile.SessionTimeout
	return *rec, nil
}

func (m *mockRepository) ReplacePermissions(ctx context.Context, id int64, permissions []string) (record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return record{}, ErrNotFound
	}
	rec.Permissions = append([]string(nil), permissions...)
	return *rec, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRepository) Permissions(ctx context.Context, username string) ([]string, error) {
	if m.permErr != nil {
		return nil, m.permErr
	}
	rec, err := m.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return rec.Permissions, nil
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateAppliesDefaultPermissions(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	user, err := svc.Create(context.Background(), CreateInput{Username: "  dana  ", Profile: Profile{FirstName: " Dana "}})
	require.NoError(t, err)
	assert.Equal(t, "dana", user.Username)
	assert.Equal(t, "Dana", user.FirstName)
	assert.Equal(t, DefaultPermissions, user.Permissions)
	assert.False(t, user.IsAdmin)
}

func TestCreateWithExplicitEmptyPermissions(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	user, err := svc.Create(context.Background(), CreateInput{Username: "eve", Permissions: []string{}})
	require.NoError(t, err)
	assert.Empty(t, user.Permissions)
}

func TestCreateRejectsUnknownPermission(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Username: "eve", Permissions: []string{"Watch Movies"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.ErrorIs(t, err, rbac.ErrUnknownPermission)
}

func TestCreateRequiresUsername(t *testing.T) {
	svc := NewService(newMockRepository(), nil)
	_, err := svc.Create(context.Background(), CreateInput{Username: "   "})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDuplicateUsername(t *testing.T) {
	repo := newMockRepository()
	repo.seed("frank")
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Username: "frank"})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestReplacePermissionsIsWholeSet(t *testing.T) {
	repo := newMockRepository()
	rec := repo.seed("gina", "View Movies", "Create Movies")
	svc := NewService(repo, nil)

	user, err := svc.ReplacePermissions(context.Background(), rec.ID, []string{"Manage Users", "View Members", "View Members"})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Permission{rbac.ViewMembers, rbac.ManageUsers}, user.Permissions)
	assert.True(t, user.IsAdmin)

	set, err := svc.LoadPermissions(context.Background(), "gina")
	require.NoError(t, err)
	assert.False(t, set.Has(rbac.CreateMovies))
	assert.True(t, set.Has(rbac.ManageUsers))
}

func TestReplacePermissionsUnknownUser(t *testing.T) {
	svc := NewService(newMockRepository(), nil)
	_, err := svc.ReplacePermissions(context.Background(), 42, []string{"View Movies"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLoadPermissionsUnknownIdentity(t *testing.T) {
	svc := NewService(newMockRepository(), nil)
	_, err := svc.LoadPermissions(context.Background(), "nobody")
	assert.ErrorIs(t, err, rbac.ErrIdentityNotFound)
}

func TestLoadPermissionsDropsUnknownLabels(t *testing.T) {
	repo := newMockRepository()
	repo.seed("hank", "View Movies", "Super User")
	svc := NewService(repo, nil)

	set, err := svc.LoadPermissions(context.Background(), "hank")
	require.NoError(t, err)
	assert.Equal(t, []string{"View Movies"}, set.Strings())
}

func TestLoadPermissionsStoreFailure(t *testing.T) {
	repo := newMockRepository()
	repo.permErr = errors.New("timeout")
	svc := NewService(repo, nil)

	_, err := svc.LoadPermissions(context.Background(), "hank")
	require.Error(t, err)
	assert.NotErrorIs(t, err, rbac.ErrIdentityNotFound)
}

func TestDeleteCascadesPermissionsAndBlocksSelf(t *testing.T) {
	repo := newMockRepository()
	admin := repo.seed("root", "Manage Users")
	victim := repo.seed("ivan", "View Movies")
	svc := NewService(repo, nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), admin.ID, "root"), ErrSelfDelete)

	require.NoError(t, svc.Delete(context.Background(), victim.ID, "root"))
	_, err := svc.LoadPermissions(context.Background(), "ivan")
	assert.ErrorIs(t, err, rbac.ErrIdentityNotFound)
}

type recordingAuditor struct {
	entries []audit.Entry
	err     error
}

func (a *recordingAuditor) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func TestMutationsAreAudited(t *testing.T) {
	repo := newMockRepository()
	auditor := &recordingAuditor{}
	svc := NewService(repo, nil, WithAuditor(auditor))
	ctx := rbac.ContextWithPrincipal(context.Background(), &rbac.Principal{Identity: rbac.Identity{Username: "root"}})

	user, err := svc.Create(ctx, CreateInput{Username: "jill"})
	require.NoError(t, err)
	_, err = svc.ReplacePermissions(ctx, user.ID, []string{"Create Movies"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, user.ID, "root"))

	require.Len(t, auditor.entries, 3)
	assert.Equal(t, audit.ActionUserCreated, auditor.entries[0].Action)
	assert.Equal(t, audit.ActionPermissionsReplaced, auditor.entries[1].Action)
	assert.Equal(t, []string{"Create Movies"}, auditor.entries[1].Meta["permissions"])
	assert.Equal(t, audit.ActionUserDeleted, auditor.entries[2].Action)
	for _, e := range auditor.entries {
		assert.Equal(t, "root", e.Actor)
		assert.Equal(t, audit.EntityUser, e.Entity)
		assert.Equal(t, "jill", e.Meta["username"])
	}
}

func TestAuditFailureDoesNotUndoMutation(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, WithAuditor(&recordingAuditor{err: errors.New("db down")}))

	user, err := svc.Create(context.Background(), CreateInput{Username: "kim"})
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "kim", got.Username)
}

func TestFailedDeleteIsNotAudited(t *testing.T) {
	repo := newMockRepository()
	admin := repo.seed("root", "Manage Users")
	auditor := &recordingAuditor{}
	svc := NewService(repo, nil, WithAuditor(auditor))

	assert.ErrorIs(t, svc.Delete(context.Background(), admin.ID, "root"), ErrSelfDelete)
	assert.Empty(t, auditor.entries)
}
