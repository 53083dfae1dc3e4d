package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinemaclub/cinemaclub/internal/auth"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
	_ "github.com/cinemaclub/cinemaclub/testing"
)

type stubRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	clone := *user
	return &clone, nil
}

func (s *stubRepo) SetInitialPassword(ctx context.Context, username, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok || user.PasswordHash != "" {
		return auth.ErrAccountExists
	}
	user.PasswordHash = hash
	return nil
}

type stubStore map[string][]rbac.Permission

func (s stubStore) LoadPermissions(ctx context.Context, username string) (rbac.Set, error) {
	perms, ok := s[username]
	if !ok {
		return rbac.Set{}, rbac.ErrIdentityNotFound
	}
	return rbac.NewSet(perms...), nil
}

type fixture struct {
	router http.Handler
	repo   *stubRepo
	tokens *auth.TokenManager
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubRepo{users: map[string]*auth.User{
		"admin":   {ID: 1, Username: "admin", PasswordHash: string(hashed), SessionTimeout: 30 * time.Minute},
		"viewer":  {ID: 2, Username: "viewer", PasswordHash: string(hashed)},
		"pending": {ID: 3, Username: "pending"},
	}}
	store := stubStore{
		"admin":   {rbac.ManageUsers},
		"viewer":  {rbac.ViewMovies},
		"pending": {rbac.ViewMovies},
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	revocations := auth.NewRedisRevocations(client)
	tokens := auth.NewTokenManager("secret", "cinemaclub", revocations)
	service := auth.NewService(repo, tokens, store, revocations, time.Hour)
	mw := rbac.Middleware{Tokens: tokens, Store: store}

	r := chi.NewRouter()
	r.Route("/auth", auth.NewHandler(nil, service, mw).MountRoutes)
	r.With(mw.Authenticate, mw.RequireAny(rbac.ViewMovies)).Get("/movies", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return fixture{router: r, repo: repo, tokens: tokens, redis: mr}
}

func (f fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func tokenFrom(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	body := res.Body.String()
	start := strings.Index(body, `"token":"`)
	require.GreaterOrEqual(t, start, 0, body)
	rest := body[start+len(`"token":"`):]
	return rest[:strings.Index(rest, `"`)]
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"admin","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.do(t, http.MethodPost, "/auth/login", "", `{"username":"ghost","password":"correctpass"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = f.do(t, http.MethodPost, "/auth/login", "", `{"username":"pending","password":"correctpass"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginReturnsTokenAndPermissions(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"admin","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"is_admin":true`)
	assert.Contains(t, res.Body.String(), `"Manage Users"`)

	identity, err := f.tokens.Verify(context.Background(), tokenFrom(t, res))
	require.NoError(t, err)
	assert.Equal(t, "admin", identity.Username)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), identity.ExpiresAt, 5*time.Second)
}

func TestLoginFallsBackToDefaultTTL(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"viewer","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code)
	identity, err := f.tokens.Verify(context.Background(), tokenFrom(t, res))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 5*time.Second)
}

func TestRegisterSetsPasswordOnce(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/register", "", `{"username":"pending","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/auth/register", "", `{"username":"pending","password":"brandnewpass"}`)
	assert.Equal(t, http.StatusCreated, res.Code)

	res = f.do(t, http.MethodPost, "/auth/register", "", `{"username":"pending","password":"anotherpass"}`)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.do(t, http.MethodPost, "/auth/register", "", `{"username":"nobody","password":"brandnewpass"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodPost, "/auth/login", "", `{"username":"pending","password":"brandnewpass"}`)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRegisterRejectsPasswordOverBcryptByteLimit(t *testing.T) {
	f := newFixture(t)

	// 40 characters pass the rune-counting validator but encode to 80 bytes.
	body := `{"username":"pending","password":"` + strings.Repeat("é", 40) + `"}`
	res := f.do(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "72 bytes")

	body = `{"username":"pending","password":"` + strings.Repeat("é", 36) + `"}`
	res = f.do(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusCreated, res.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"viewer","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, res.Code)
	token := tokenFrom(t, res)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/movies", token, "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/auth/logout", token, "").Code)

	res = f.do(t, http.MethodGet, "/movies", token, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, `Bearer realm="cinemaclub"`, res.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/auth/logout", "", "").Code)
}
