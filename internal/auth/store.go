package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	RefreshTokens() RefreshTokenStore

	// RegisterTenant atomically creates an organization together with its
	// first user. Unique violations come back as ErrOrganizationExists or
	// ErrEmailExists.
	RegisterTenant(ctx context.Context, org *Organization, user *User) error
}

// OrganizationStore manages organizations.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	FindByName(ctx context.Context, name string) (*Organization, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// UserStore manages users.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	// FindActive loads a user by id with is_active = true; deactivated or
	// deleted accounts come back as ErrNotFound.
	FindActive(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// RefreshTokenStore manages the refresh token lifecycle. Rotation and
// revocation are deletes, so concurrent presentations of the same token
// race on the row and at most one wins.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	// Consume deletes the row matching the signed token string and returns
	// it in the same statement. ErrNotFound when no row matched.
	Consume(ctx context.Context, token string) (*RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
