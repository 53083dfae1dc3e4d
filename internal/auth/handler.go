package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
	"github.com/cinemaclub/cinemaclub/internal/rbac"
)

// Handler exposes login, registration, and logout endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler creates a handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.With(h.rbac.Authenticate, h.rbac.RequireAny()).Post("/logout", h.logout)
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password")
			return
		}
		h.serverError(w, "login failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	err := h.service.CreateAccount(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, ErrAccountExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", "account already registered")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no account awaits registration for this username")
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.serverError(w, "register failed", err)
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Logout(r.Context(), principal.Identity); err != nil {
		h.serverError(w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return req, false
	}
	return req, true
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
}
