package rbac

import (
	"log/slog"
	"net/http"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

// Role names with administrative rights.
const (
	RoleSuperAdmin = "super admin"
	RoleAdmin      = "admin"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAnyRole ensures the current principal holds at least one of roles.
// It must run after authentication.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, r, m.Logger, shared.Unauthorized("authentication required"))
				return
			}
			if len(roles) > 0 && !principal.HasAnyRole(roles...) {
				httpx.RespondError(w, r, m.Logger, shared.NewError(shared.ErrForbidden, "insufficient role for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireAnyRole for the administrative roles.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.RequireAnyRole(RoleSuperAdmin, RoleAdmin)
}
