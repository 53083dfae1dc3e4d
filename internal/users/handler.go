package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.With(h.rbac.RequireAny()).Get("/me", h.me)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ViewUsers))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.CreateUsers))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.UpdateUsers))
		r.Put("/{id}", h.updateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ManageUsers))
		r.Put("/{id}/permissions", h.replacePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.DeleteUsers))
		r.Delete("/{id}", h.deleteUser)
	})
}

type createUserRequest struct {
	Username       string   `json:"username" validate:"required,min=3,max=64"`
	FirstName      string   `json:"first_name" validate:"max=100"`
	LastName       string   `json:"last_name" validate:"max=100"`
	SessionTimeout int      `json:"session_timeout_minutes" validate:"gte=0,lte=1440"`
	Permissions    []string `json:"permissions" validate:"omitempty,dive,required"`
}

type updateUserRequest struct {
	FirstName      string `json:"first_name" validate:"max=100"`
	LastName       string `json:"last_name" validate:"max=100"`
	SessionTimeout int    `json:"session_timeout_minutes" validate:"gte=0,lte=1440"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.GetByUsername(r.Context(), principal.Identity.Username)
	if err != nil {
		h.fail(w, "load current user", err)
		return
	}
	user.Permissions = principal.Permissions.Slice()
	user.IsAdmin = principal.IsAdmin
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), CreateInput{
		Username: req.Username,
		Profile: Profile{
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			SessionTimeout: req.SessionTimeout,
		},
		Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	user, err := h.service.Update(r.Context(), id, Profile{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		SessionTimeout: req.SessionTimeout,
	})
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req permissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	user, err := h.service.ReplacePermissions(r.Context(), id, req.Permissions)
	if err != nil {
		h.fail(w, "replace permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, principal.Identity.Username); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) && h.logger != nil {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
