package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cinemaclub/cinemaclub/internal/platform/httpx"
)

// Decision outcomes reported to a DecisionRecorder.
const (
	DecisionAllow           = "allow"
	DecisionDeny            = "deny"
	DecisionUnauthenticated = "unauthenticated"
	DecisionError           = "error"
)

// DecisionRecorder receives one call per guard outcome.
type DecisionRecorder interface {
	RecordDecision(decision string)
}

// Middleware wires token verification, permission loading and authorization
// into HTTP handlers.
type Middleware struct {
	Tokens    TokenVerifier
	Store     PermissionStore
	Evaluator *Evaluator
	Logger    *slog.Logger
	Recorder  DecisionRecorder
}

// Authenticate resolves the bearer token into a Principal. Permissions are
// loaded from the store on every request so that administrative changes apply
// without re-authentication.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.unauthenticated(w, "missing bearer token")
			return
		}
		identity, err := m.Tokens.Verify(r.Context(), token)
		if err != nil {
			m.debug("rbac verify token", slog.Any("error", err))
			m.unauthenticated(w, "invalid or expired token")
			return
		}
		granted, err := m.Store.LoadPermissions(r.Context(), identity.Username)
		if err != nil {
			if errors.Is(err, ErrIdentityNotFound) {
				m.debug("rbac unknown identity", slog.String("username", identity.Username))
				m.unauthenticated(w, "unknown identity")
				return
			}
			m.record(DecisionError)
			if m.Logger != nil {
				m.Logger.Error("rbac load permissions", slog.String("username", identity.Username), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		principal := &Principal{
			Identity:    identity,
			Permissions: granted,
			IsAdmin:     m.evaluator().IsAdmin(granted),
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the current principal satisfies at least one of the
// required permissions. With no permissions it only requires authentication.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	required := make([]Permission, len(perms))
	copy(required, perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				m.unauthenticated(w, "authentication required")
				return
			}
			if len(required) == 0 {
				m.record(DecisionAllow)
				next.ServeHTTP(w, r)
				return
			}
			if m.evaluator().Authorize(principal.Permissions, required...) {
				m.record(DecisionAllow)
				next.ServeHTTP(w, r)
				return
			}
			m.record(DecisionDeny)
			m.debug("rbac denied",
				slog.String("username", principal.Identity.Username),
				slog.Any("required", required),
				slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
		})
	}
}

func (m Middleware) evaluator() *Evaluator {
	if m.Evaluator == nil {
		return defaultEvaluator
	}
	return m.Evaluator
}

func (m Middleware) unauthenticated(w http.ResponseWriter, detail string) {
	m.record(DecisionUnauthenticated)
	w.Header().Set("WWW-Authenticate", `Bearer realm="cinemaclub"`)
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

func (m Middleware) record(decision string) {
	if m.Recorder != nil {
		m.Recorder.RecordDecision(decision)
	}
}

func (m Middleware) debug(msg string, attrs ...any) {
	if m.Logger != nil {
		m.Logger.Debug(msg, attrs...)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
