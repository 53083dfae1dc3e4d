package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

type staticTokens struct{}

func (staticTokens) Verify(ctx context.Context, token string) (rbac.Identity, error) {
	return rbac.Identity{Username: token}, nil
}

type staticStore map[string]rbac.Set

func (s staticStore) LoadPermissions(ctx context.Context, username string) (rbac.Set, error) {
	set, ok := s[username]
	if !ok {
		return rbac.Set{}, rbac.ErrIdentityNotFound
	}
	return set, nil
}

func guardedRouter() http.Handler {
	mw := rbac.Middleware{
		Tokens: staticTokens{},
		Store: staticStore{
			"curator": rbac.NewSet(rbac.CreateMovies, rbac.UpdateMovies),
			"admin":   rbac.NewSet(rbac.ManageUsers),
			"viewer":  rbac.NewSet(rbac.ViewMembers),
		},
	}
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.With(mw.RequireAny(rbac.ViewMovies)).Get("/movies", ok)
	r.With(mw.RequireAny(rbac.CreateSubscriptions, rbac.UpdateSubscriptions)).Post("/subscriptions", ok)
	return r
}

func serve(h http.Handler, method, path, user string) int {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestGuardLatencyTargets(t *testing.T) {
	h := guardedRouter()
	scenarios := []struct {
		name      string
		user      string
		method    string
		path      string
		status    int
		threshold time.Duration
	}{
		{"implied view", "curator", http.MethodGet, "/movies", http.StatusNoContent, 20 * time.Millisecond},
		{"admin override", "admin", http.MethodPost, "/subscriptions", http.StatusNoContent, 20 * time.Millisecond},
		{"denied", "viewer", http.MethodGet, "/movies", http.StatusForbidden, 20 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 200)
		for i := 0; i < 200; i++ {
			start := time.Now()
			if code := serve(h, scenario.method, scenario.path, scenario.user); code != scenario.status {
				t.Fatalf("%s: status %d, want %d", scenario.name, code, scenario.status)
			}
			samples = append(samples, time.Since(start))
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkAuthorize(b *testing.B) {
	granted := rbac.NewSet(rbac.CreateMovies, rbac.ViewMembers)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rbac.Authorize(granted, rbac.ViewSubscriptions, rbac.ViewMovies)
	}
}

func BenchmarkGuardedRequest(b *testing.B) {
	h := guardedRouter()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			serve(h, http.MethodGet, "/movies", "curator")
		}
	})
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
