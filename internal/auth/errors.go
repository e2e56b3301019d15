package auth

import "errors"

// Closed error set surfaced by the token service. Callers map these onto
// HTTP statuses; anything else is a programming error.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidSession     = errors.New("auth: invalid session")
	ErrAccountInactive    = errors.New("auth: account inactive")
	ErrOrganizationExists = errors.New("auth: organization already exists")
	ErrEmailExists        = errors.New("auth: email already exists")
	ErrNotFound           = errors.New("auth: not found")
	ErrStoreUnavailable   = errors.New("auth: store unavailable")

	// Token verification outcomes. Expired is split out so clients can
	// distinguish "refresh me" from "log in again"; both fail closed.
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)
