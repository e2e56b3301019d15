package tenant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// OwnershipStore answers whether a row with the given id exists inside the
// given organization.
type OwnershipStore interface {
	Owned(ctx context.Context, table, id, orgID string) (bool, error)
}

// Ownership prevents cross-tenant access-by-id even when ids are
// guessable. Tables must be registered up front; unknown table names are a
// programming error, not user input.
type Ownership struct {
	store   OwnershipStore
	allowed map[string]struct{}
}

func NewOwnership(store OwnershipStore, tables ...string) *Ownership {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &Ownership{store: store, allowed: allowed}
}

// Owned confirms a row with this id exists in the caller's tenant.
func (o *Ownership) Owned(ctx context.Context, table, id string) (bool, error) {
	if _, ok := o.allowed[table]; !ok {
		return false, fmt.Errorf("tenant: table %q is not registered for ownership checks", table)
	}
	orgID, ok := OrganizationFromContext(ctx)
	if !ok {
		return false, ErrNoOrganization
	}
	return o.store.Owned(ctx, table, id, orgID)
}

// RequireOwner gates a route on the "id" path parameter belonging to the
// caller's tenant. A miss answers 404, never 403, so a non-owner cannot
// confirm the resource exists.
func (o *Ownership) RequireOwner(table string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == "" {
				writeErr(w, http.StatusNotFound, "NOT_FOUND", "not found")
				return
			}
			owned, err := o.Owned(r.Context(), table, id)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
				return
			}
			if !owned {
				writeErr(w, http.StatusNotFound, "NOT_FOUND", "not found")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
