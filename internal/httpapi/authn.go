package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tallo.app/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// withAuth is the principal resolver: it extracts the bearer access token,
// verifies it, loads the active account behind it and attaches the
// resulting principal to the request context. Any failure ends the chain
// here; no downstream handler runs. Pure read-after-verify, no side
// effects.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
			case errors.Is(err, auth.ErrTokenInvalid):
				writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
			case errors.Is(err, auth.ErrStoreUnavailable):
				a.log.Error().Err(err).Msg("principal lookup failed")
				writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service unavailable")
			default:
				a.log.Error().Err(err).Msg("authentication error")
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
