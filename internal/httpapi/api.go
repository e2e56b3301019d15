// Package httpapi composes the security core's HTTP surface: the auth
// endpoints plus the middleware chain (principal resolver, tenant guard,
// audit recorder) that collaborator routes mount behind.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tallo.app/internal/audit"
	"tallo.app/internal/auth"
	"tallo.app/internal/obs"
	"tallo.app/internal/tenant"
)

// Options tunes the outer middleware stack.
type Options struct {
	Version       string
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	auth     *auth.Service
	guard    *tenant.Guard
	owner    *tenant.Ownership
	recorder *audit.Recorder
	db       *sql.DB
	log      zerolog.Logger
	validate *validator.Validate
	version  string
}

// New wires the router. The auth endpoints are rate limited per IP;
// everything else mounts through Protect.
func New(db *sql.DB, svc *auth.Service, guard *tenant.Guard, owner *tenant.Ownership, recorder *audit.Recorder, log zerolog.Logger, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}

	a := &API{
		auth:     svc,
		guard:    guard,
		owner:    owner,
		recorder: recorder,
		db:       db,
		log:      log,
		validate: validator.New(),
		version:  opts.Version,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(obs.Instrument)
	r.Use(RequestLogger(log))
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(opts.MaxBodyBytes))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimit(opts.RateBurst, opts.RatePerSecond))
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/logout", a.handleLogout)
		r.With(a.withAuth).Get("/profile", a.handleProfile)
	})

	a.router = r
	return a
}

// Handler returns the root handler.
func (a *API) Handler() http.Handler {
	return a.router
}

// Router exposes the chi router so resource collaborators can mount their
// own routes behind Protect.
func (a *API) Router() chi.Router {
	return a.router
}

// Protect wraps a collaborator handler in the contractual middleware
// order: principal resolver, tenant guard, role gate, audit recorder. The
// recorder sits innermost so a rejection by any gate produces no audit
// entry.
func (a *API) Protect(minRole auth.Role, action audit.Action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := a.recorder.Middleware(action, resourceType)(next)
		h = tenant.RequireRole(minRole)(h)
		h = a.guard.RequireOrganization(h)
		return a.withAuth(h)
	}
}

// ProtectOwned is Protect plus the cross-tenant access-by-id check on the
// "id" path parameter.
func (a *API) ProtectOwned(minRole auth.Role, action audit.Action, table, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := a.recorder.Middleware(action, resourceType)(next)
		h = a.owner.RequireOwner(table)(h)
		h = tenant.RequireRole(minRole)(h)
		h = a.guard.RequireOrganization(h)
		return a.withAuth(h)
	}
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tallo-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) ready(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}
