package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tallo.app/internal/ids"
)

// Service orchestrates session issuance, rotation and revocation on top of
// the password verifier, the token codec and the refresh token store. All
// failures surface as the closed error set in errors.go.
type Service struct {
	store Store
	codec *Codec
	now   func() time.Time
}

// Session is the result of a successful login, registration or rotation.
type Session struct {
	User             *User
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RegisterInput carries the fields of a tenant self-registration.
type RegisterInput struct {
	OrganizationName string
	UserName         string
	UserEmail        string
	UserPassword     string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{store: store, codec: codec, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an organization with its first user (role admin) and
// issues the initial session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	orgName := strings.TrimSpace(in.OrganizationName)
	userName := strings.TrimSpace(in.UserName)
	email := normalizeEmail(in.UserEmail)
	if orgName == "" || userName == "" || email == "" || in.UserPassword == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := HashPassword(in.UserPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	org := &Organization{
		ID:        ids.New(),
		Name:      orgName,
		Plan:      "free",
		CreatedAt: now,
	}
	user := &User{
		ID:             ids.New(),
		OrganizationID: org.ID,
		Name:           userName,
		Email:          email,
		PasswordHash:   hash,
		Role:           RoleAdmin,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := s.store.RegisterTenant(ctx, org, user); err != nil {
		if errors.Is(err, ErrOrganizationExists) || errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return s.issueSession(ctx, user)
}

// Login authenticates credentials and issues a fresh session. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return s.issueSession(ctx, user)
}

// Rotate exchanges a presented refresh token for a brand-new pair. The
// presented token is consumed in a single store round trip before any
// other check, so a replay after rotation no longer resolves and two
// concurrent presentations can succeed at most once.
func (s *Service) Rotate(ctx context.Context, presented string) (*Session, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, ErrInvalidSession
	}

	record, err := s.store.RefreshTokens().Consume(ctx, presented)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, storeErr(err)
	}
	if s.now().After(record.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	// The row is already gone; a token failing verification here has been
	// defensively revoked by the consume above.
	claims, err := s.codec.VerifyRefresh(presented)
	if err != nil {
		return nil, ErrInvalidSession
	}
	if claims.TokenID != record.ID || claims.Subject != record.UserID {
		return nil, ErrInvalidSession
	}

	user, err := s.store.Users().FindActive(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, storeErr(err)
	}
	return s.issueSession(ctx, user)
}

// Revoke deletes the store row matching the presented refresh token.
// Idempotent: unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}
	if err := s.store.RefreshTokens().DeleteByToken(ctx, presented); err != nil {
		return storeErr(err)
	}
	return nil
}

// RevokeAll deletes every session belonging to the user.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	if err := s.store.RefreshTokens().DeleteByUser(ctx, userID); err != nil {
		return storeErr(err)
	}
	return nil
}

// VerifyAccess is a pure signature and expiry check with no store lookup.
func (s *Service) VerifyAccess(token string) (*AccessClaims, error) {
	return s.codec.VerifyAccess(token)
}

// Authenticate verifies an access token and resolves the current principal
// from the store, rejecting deactivated or deleted accounts even when the
// token itself is still cryptographically valid.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.store.Users().FindActive(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenInvalid
		}
		return Principal{}, storeErr(err)
	}
	return Principal{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		Name:           user.Name,
		Email:          user.Email,
	}, nil
}

// Profile loads the active account behind a resolved principal.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.Users().FindActive(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// PurgeExpiredSessions removes refresh tokens past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.RefreshTokens().DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *Service) issueSession(ctx context.Context, user *User) (*Session, error) {
	tokenID := uuid.NewString()
	access, accessExp, err := s.codec.SignAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.codec.SignRefresh(user, tokenID)
	if err != nil {
		return nil, err
	}
	rec := &RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.RefreshTokens().Create(ctx, rec); err != nil {
		return nil, storeErr(err)
	}
	return &Session{
		User:             user,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
