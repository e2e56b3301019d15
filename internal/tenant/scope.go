package tenant

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrNoOrganization means Scope was called on a context the guard never
// bound a tenant to.
var ErrNoOrganization = errors.New("tenant: no organization bound to context")

// Scope conjuncts the tenant filter onto a WHERE fragment and prepends the
// bound organization id to the arguments, renumbering the fragment's $N
// placeholders to make room. Every tenant-scoped query builder is expected
// to route through here; a hand-written organization_id filter is a review
// smell.
//
//	where, args, err := tenant.Scope(ctx, "status = $1", []any{"open"})
//	// where == "organization_id = $1 AND (status = $2)"
//	// args  == []any{orgID, "open"}
func Scope(ctx context.Context, where string, args []any) (string, []any, error) {
	orgID, ok := OrganizationFromContext(ctx)
	if !ok {
		return "", nil, ErrNoOrganization
	}

	clause := "organization_id = $1"
	if strings.TrimSpace(where) != "" {
		clause += " AND (" + shiftPlaceholders(where, 1) + ")"
	}
	scoped := make([]any, 0, len(args)+1)
	scoped = append(scoped, orgID)
	scoped = append(scoped, args...)
	return clause, scoped, nil
}

// shiftPlaceholders rewrites every $N in the fragment to $(N+by).
func shiftPlaceholders(fragment string, by int) string {
	var b strings.Builder
	b.Grow(len(fragment))
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(fragment) && fragment[j] >= '0' && fragment[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		n, _ := strconv.Atoi(fragment[i+1 : j])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n + by))
		i = j - 1
	}
	return b.String()
}
