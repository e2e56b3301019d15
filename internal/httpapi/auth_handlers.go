package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tallo.app/internal/audit"
	"tallo.app/internal/auth"
)

type registerRequest struct {
	OrganizationName string `json:"organizationName" validate:"required,min=2,max=120"`
	UserName         string `json:"userName" validate:"required,min=2,max=120"`
	UserEmail        string `json:"userEmail" validate:"required,email"`
	UserPassword     string `json:"userPassword" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type sessionResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role.String(),
		OrganizationID: u.OrganizationID,
		CreatedAt:      u.CreatedAt,
	}
}

func toSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         toUserResponse(s.User),
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid fields")
		return
	}

	session, err := a.auth.Register(r.Context(), auth.RegisterInput{
		OrganizationName: req.OrganizationName,
		UserName:         req.UserName,
		UserEmail:        req.UserEmail,
		UserPassword:     req.UserPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrOrganizationExists):
			writeError(w, http.StatusConflict, "ORGANIZATION_EXISTS", "organization name already taken")
		case errors.Is(err, auth.ErrEmailExists):
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "email already registered")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid fields")
		default:
			a.serverError(w, err, "register failed")
		}
		return
	}

	a.recordAuth(r, session.User, audit.ActionRegister, "organization", session.User.OrganizationID)
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		// The generic credential message also covers malformed emails so
		// probing cannot distinguish "bad address" from "wrong password".
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}

	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		case errors.Is(err, auth.ErrAccountInactive):
			writeError(w, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "account is deactivated")
		default:
			a.serverError(w, err, "login failed")
		}
		return
	}

	a.recordAuth(r, session.User, audit.ActionLogin, "user", session.User.ID)
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_SESSION", "invalid session")
		return
	}

	session, err := a.auth.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) || errors.Is(err, auth.ErrAccountInactive) {
			writeError(w, http.StatusUnauthorized, "INVALID_SESSION", "invalid session")
			return
		}
		a.serverError(w, err, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		// Idempotent: a garbled logout still answers 200.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := a.auth.Revoke(r.Context(), req.RefreshToken); err != nil {
		a.serverError(w, err, "logout failed")
		return
	}

	// Logout does not require a bearer token; the audit entry is only
	// written when the caller is identifiable. Anonymous rows are
	// disallowed.
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		if principal, err := a.auth.Authenticate(r.Context(), token); err == nil {
			a.recorder.Record(&audit.Entry{
				UserID:         principal.UserID,
				OrganizationID: principal.OrganizationID,
				Action:         audit.ActionLogout,
				ResourceType:   "user",
				ResourceID:     principal.UserID,
				IPAddress:      audit.ClientIP(r),
				UserAgent:      r.UserAgent(),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	user, err := a.auth.Profile(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "account not found")
			return
		}
		a.serverError(w, err, "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// recordAuth writes the audit entry for the auth endpoints themselves.
// These routes resolve their principal from the operation result rather
// than from middleware, so they record directly.
func (a *API) recordAuth(r *http.Request, user *auth.User, action audit.Action, resourceType, resourceID string) {
	a.recorder.Record(&audit.Entry{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		IPAddress:      audit.ClientIP(r),
		UserAgent:      r.UserAgent(),
	})
}

func (a *API) serverError(w http.ResponseWriter, err error, msg string) {
	a.log.Error().Err(err).Msg(msg)
	if errors.Is(err, auth.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
