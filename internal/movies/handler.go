package movies

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

// Handler serves the movie endpoints.
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

// MountRoutes registers movie routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ViewMovies))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAny(rbac.CreateMovies)).Post("/", h.create)
	r.With(h.rbac.RequireAny(rbac.UpdateMovies)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAny(rbac.DeleteMovies)).Delete("/{id}", h.delete)
}

type movieRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Genres    []string `json:"genres" validate:"max=20,dive,max=50"`
	ImageURL  string   `json:"image_url" validate:"omitempty,url,max=500"`
	Premiered string   `json:"premiered" validate:"omitempty,datetime=2006-01-02"`
}

func (req movieRequest) input() (Input, error) {
	in := Input{Name: req.Name, Genres: req.Genres, ImageURL: req.ImageURL}
	if req.Premiered != "" {
		day, err := time.Parse(time.DateOnly, req.Premiered)
		if err != nil {
			return Input{}, fmt.Errorf("%w: premiered", httpx.ErrValidation)
		}
		in.Premiered = &day
	}
	return in, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.List(r.Context(), httpx.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list movies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movies": items, "pagination": page})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movie, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get movie", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movie)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	movie, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create movie", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movie)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	movie, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update movie", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movie)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete movie", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req movieRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return Input{}, false
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	return in, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
