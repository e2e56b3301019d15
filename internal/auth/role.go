package auth

import "fmt"

// Role is the closed set of account roles. Comparison goes through the
// total order below, never string equality in handlers.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRanks = map[Role]int{
	RoleEmployee:   1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// ParseRole validates a stored or transmitted role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("auth: unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether r sits at or above min in the hierarchy
// employee < manager < admin < super_admin. Unknown roles never pass.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRanks[r]
	if !ok {
		return false
	}
	mr, ok := roleRanks[min]
	if !ok {
		return false
	}
	return rr >= mr
}

func (r Role) String() string { return string(r) }
