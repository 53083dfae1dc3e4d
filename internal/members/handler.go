package members

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Handler serves the member endpoints.
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

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ViewMembers))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAny(rbac.CreateMembers)).Post("/", h.create)
	r.With(h.rbac.RequireAny(rbac.UpdateMembers)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAny(rbac.DeleteMembers)).Delete("/{id}", h.delete)
}

type memberRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	City  string `json:"city" validate:"max=100"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.List(r.Context(), httpx.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": items, "pagination": page})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	member, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	member, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, member)
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
	member, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, member)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return Input{}, false
	}
	return Input{Name: req.Name, Email: req.Email, City: req.City}, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
