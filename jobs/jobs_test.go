package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemaclub/cinemaclub/internal/catalog"
	jobmetrics "github.com/cinemaclub/cinemaclub/internal/jobs"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

type stubRunner struct {
	result catalog.Result
	err    error
	calls  int
}

func (s *stubRunner) Run(context.Context) (catalog.Result, error) {
	s.calls++
	return s.result, s.err
}

func TestNewCatalogImportTaskDefaultsRequester(t *testing.T) {
	task, err := NewCatalogImportTask(CatalogImportPayload{})
	require.NoError(t, err)
	assert.Equal(t, TaskCatalogImport, task.Type())

	var payload CatalogImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "scheduler", payload.RequestedBy)
}

func TestCatalogImportJobHandle(t *testing.T) {
	runner := &stubRunner{result: catalog.Result{MoviesCreated: 2}}
	job := NewCatalogImportJob(runner, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewCatalogImportTask(CatalogImportPayload{RequestedBy: "root"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, runner.calls)

	runner.err = errors.New("upstream down")
	assert.EqualError(t, job.Handle(context.Background(), task), "upstream down")

	bad := asynq.NewTask(TaskCatalogImport, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
	assert.Equal(t, 2, runner.calls)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

type stubEnqueuer struct {
	payloads []CatalogImportPayload
	err      error
}

func (s *stubEnqueuer) EnqueueCatalogImport(_ context.Context, payload CatalogImportPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

type tokenTable map[string]string

func (t tokenTable) Verify(_ context.Context, token string) (rbac.Identity, error) {
	username, ok := t[token]
	if !ok {
		return rbac.Identity{}, rbac.ErrUnauthenticated
	}
	return rbac.Identity{Username: username}, nil
}

type grants map[string][]rbac.Permission

func (g grants) LoadPermissions(_ context.Context, username string) (rbac.Set, error) {
	perms, ok := g[username]
	if !ok {
		return rbac.Set{}, rbac.ErrIdentityNotFound
	}
	return rbac.NewSet(perms...), nil
}

func newJobsRouter(inspector QueueInspector, enqueuer Enqueuer) http.Handler {
	mw := rbac.Middleware{
		Tokens: tokenTable{"admin": "root", "editor": "ed"},
		Store: grants{
			"root": {rbac.ManageUsers},
			"ed":   {rbac.CreateUsers, rbac.UpdateUsers, rbac.DeleteUsers},
		},
	}
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, enqueuer, mw, nil).MountRoutes)
	return r
}

func TestHealthReportsQueue(t *testing.T) {
	r := newJobsRouter(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3}`, res.Body.String())

	r = newJobsRouter(stubInspector{err: errors.New("redis down")}, nil)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestTriggerCatalogImportRequiresAdmin(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	r := newJobsRouter(nil, enqueuer)

	trigger := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/jobs/catalog-import", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res
	}

	assert.Equal(t, http.StatusUnauthorized, trigger("").Code)
	// Holding every other Users permission is not enough.
	assert.Equal(t, http.StatusForbidden, trigger("editor").Code)

	res := trigger("admin")
	require.Equal(t, http.StatusAccepted, res.Code)
	assert.JSONEq(t, `{"task_id":"task-1","queue":"default"}`, res.Body.String())
	require.Len(t, enqueuer.payloads, 1)
	assert.Equal(t, "root", enqueuer.payloads[0].RequestedBy)

	enqueuer.err = asynq.ErrDuplicateTask
	assert.Equal(t, http.StatusConflict, trigger("admin").Code)
}
