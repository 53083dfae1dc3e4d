package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// PermissionsHandler exposes the permission vocabulary and implication table
// so clients can render permission editors.
type PermissionsHandler struct {
	evaluator *Evaluator
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(evaluator *Evaluator, rbac Middleware) *PermissionsHandler {
	if evaluator == nil {
		evaluator = defaultEvaluator
	}
	return &PermissionsHandler{evaluator: evaluator, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.Use(h.rbac.RequireAny(ViewUsers))
		r.Get("/", h.listPermissions)
	})
}

type permissionView struct {
	Name      Permission   `json:"name"`
	ImpliedBy []Permission `json:"implied_by,omitempty"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	hierarchy := h.evaluator.Hierarchy()
	perms := AllPermissions()
	out := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionView{Name: p, ImpliedBy: hierarchy.Implied(p)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": out,
		"admin":       ManageUsers,
	})
}
