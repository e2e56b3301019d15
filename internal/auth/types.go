package auth

import "time"

// Organization is the tenant boundary. Every tenant-scoped row carries its
// id, and every query issued on behalf of a principal must filter by it.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account operating on behalf of an organization. Accounts are
// never deleted in the auth path; deactivation flips IsActive.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// RefreshToken is a persisted session record. A refresh token is valid iff
// its row exists, is unexpired, and has not been superseded by rotation or
// revocation. ID doubles as the token_id claim inside the signed token.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal is the resolved, request-scoped identity attached after token
// verification. Immutable for the lifetime of the request.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           Role
	Name           string
	Email          string
}
