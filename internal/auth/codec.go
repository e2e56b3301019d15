package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CodecConfig carries the signing material for both token classes. Secrets
// are injected here once; nothing reads ambient environment state later.
type CodecConfig struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec signs and verifies the two bearer token classes: short-lived
// stateless access tokens and longer-lived persisted refresh tokens. Each
// class uses its own HS256 secret so one can never stand in for the other.
// Verification is pure and safe for arbitrary concurrent use.
type Codec struct {
	cfg CodecConfig
	now func() time.Time
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. TokenID is also the
// primary key of the persisted refresh_tokens row.
type RefreshClaims struct {
	Email   string `json:"email"`
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec validates the configuration and constructs a Codec.
func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: both token secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignAccess issues an access token for the user.
func (c *Codec) SignAccess(u *User) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(c.cfg.AccessTTL)
	claims := AccessClaims{
		Email:          u.Email,
		Role:           u.Role.String(),
		OrganizationID: u.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// SignRefresh issues a refresh token bound to the given store row id.
func (c *Codec) SignRefresh(u *User, tokenID string) (string, time.Time, error) {
	if tokenID == "" {
		return "", time.Time{}, errors.New("auth: token id is required")
	}
	now := c.now().UTC()
	exp := now.Add(c.cfg.RefreshTTL)
	claims := RefreshClaims{
		Email:   u.Email,
		TokenID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return token, exp, nil
}

// VerifyAccess checks signature, issuer and expiry of an access token.
// Pure signature work, no store lookup.
func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(token, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if _, err := ParseRole(claims.Role); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature, issuer and expiry of a refresh token.
func (c *Codec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(token, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case err != nil:
		return ErrTokenInvalid
	case !parsed.Valid:
		return ErrTokenInvalid
	}
	return nil
}
