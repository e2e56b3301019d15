package tenant

import (
	"context"
	"encoding/json"
	"net/http"

	"tallo.app/internal/auth"
)

// ActingOrganizationHeader lets a super_admin impersonate a chosen tenant.
// Every request is bound to exactly one organization; there is no
// globally-scoped mode.
const ActingOrganizationHeader = "X-Acting-Organization"

// OrganizationChecker is the store dependency of the guard.
type OrganizationChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Guard binds the resolved organization to the request context and
// supplies the role and ownership primitives handlers gate with. Which
// operation needs which role is the route's policy, not the guard's.
type Guard struct {
	orgs OrganizationChecker
}

func NewGuard(orgs OrganizationChecker) *Guard {
	return &Guard{orgs: orgs}
}

// RequireOrganization runs after the principal resolver. It fails closed
// when the principal carries no organization, validates super-admin
// impersonation, and binds the effective tenant id to the context.
func (g *Guard) RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		orgID := principal.OrganizationID
		if acting := r.Header.Get(ActingOrganizationHeader); acting != "" && acting != orgID {
			if principal.Role != auth.RoleSuperAdmin {
				writeErr(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions")
				return
			}
			exists, err := g.orgs.Exists(r.Context(), acting)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
				return
			}
			if !exists {
				writeErr(w, http.StatusNotFound, "NOT_FOUND", "not found")
				return
			}
			orgID = acting
		}
		if orgID == "" {
			writeErr(w, http.StatusForbidden, "MISSING_ORGANIZATION", "no organization bound to account")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithOrganization(r.Context(), orgID)))
	})
}

// HasRole answers whether the principal sits at or above min.
func HasRole(p auth.Principal, min auth.Role) bool {
	return p.Role.AtLeast(min)
}

// RequireRole gates a route on the minimum role.
func RequireRole(min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !HasRole(principal, min) {
				writeErr(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
