package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/cinemaclub/cinemaclub/internal/audit/http"
	"github.com/cinemaclub/cinemaclub/internal/auth"
	"github.com/cinemaclub/cinemaclub/internal/members"
	"github.com/cinemaclub/cinemaclub/internal/movies"
	"github.com/cinemaclub/cinemaclub/internal/observability"
	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
	"github.com/cinemaclub/cinemaclub/internal/subscriptions"
	"github.com/cinemaclub/cinemaclub/internal/users"
	"github.com/cinemaclub/cinemaclub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	PermissionsHandler  *rbac.PermissionsHandler
	MoviesHandler       *movies.Handler
	MembersHandler      *members.Handler
	SubscriptionHandler *subscriptions.Handler
	JobHandler          *jobs.Handler
	AuditHandler        *audithttp.Handler
	Metrics             *observability.Metrics
	// RequestLogging enables chi's access log.
	RequestLogging bool
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.RequestLogging {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.MoviesHandler != nil {
		r.Route("/movies", params.MoviesHandler.MountRoutes)
	}
	if params.MembersHandler != nil {
		r.Route("/members", params.MembersHandler.MountRoutes)
	}
	if params.SubscriptionHandler != nil {
		r.Route("/subscriptions", params.SubscriptionHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
