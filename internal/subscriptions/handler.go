package subscriptions

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Handler serves the subscription endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers subscription routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ViewSubscriptions))
		r.Get("/", h.list)
		r.Get("/members/{memberID}", h.showForMember)
		r.Get("/movies/{movieID}/watchers", h.watchers)
	})
	r.With(h.rbac.RequireAny(rbac.CreateSubscriptions)).Post("/members/{memberID}/movies", h.addMovie)
	r.With(h.rbac.RequireAny(rbac.UpdateSubscriptions)).Delete("/members/{memberID}/movies/{movieID}", h.removeMovie)
	r.With(h.rbac.RequireAny(rbac.DeleteSubscriptions)).Delete("/{id}", h.delete)
}

type addMovieRequest struct {
	MovieID int64  `json:"movie_id" validate:"required,gt=0"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list subscriptions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *Handler) showForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := httpx.IDParam(r, "memberID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sub, err := h.service.GetByMember(r.Context(), memberID)
	if err != nil {
		h.fail(w, "get subscription", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) watchers(w http.ResponseWriter, r *http.Request) {
	movieID, err := httpx.IDParam(r, "movieID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Watchers(r.Context(), movieID)
	if err != nil {
		h.fail(w, "list watchers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"watchers": out})
}

func (h *Handler) addMovie(w http.ResponseWriter, r *http.Request) {
	memberID, err := httpx.IDParam(r, "memberID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req addMovieRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	var date time.Time
	if req.Date != "" {
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: date", httpx.ErrValidation))
			return
		}
	}
	sub, err := h.service.AddMovie(r.Context(), memberID, req.MovieID, date)
	if err != nil {
		h.fail(w, "add subscription movie", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) removeMovie(w http.ResponseWriter, r *http.Request) {
	memberID, err := httpx.IDParam(r, "memberID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movieID, err := httpx.IDParam(r, "movieID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveMovie(r.Context(), memberID, movieID); err != nil {
		h.fail(w, "remove subscription movie", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
