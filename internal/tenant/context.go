package tenant

import "context"

type orgContextKey struct{}

// ContextWithOrganization binds the tenant id every downstream query must
// be scoped by.
func ContextWithOrganization(ctx context.Context, orgID string) context.Context {
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrganizationFromContext returns the bound tenant id.
func OrganizationFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(orgContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
