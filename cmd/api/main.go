package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tallo.app/internal/audit"
	"tallo.app/internal/auth"
	"tallo.app/internal/config"
	"tallo.app/internal/httpapi"
	"tallo.app/internal/obs"
	"tallo.app/internal/store/pg"
	"tallo.app/internal/tenant"
)

var version = "0.3.1"

// ownedTables lists the tenant-scoped resource tables registered for
// cross-tenant access-by-id checks.
var ownedTables = []string{
	"documents",
	"tickets",
	"findings",
	"competencies",
	"puestos",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := obs.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := obs.NewLogger(cfg.Log.Level)

	obs.Init()

	if cfg.Database.DSN == "" {
		log.Fatal().Msg("TALLO_PG_DSN is required")
	}
	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}

	store := pg.New(db)

	codec, err := auth.NewCodec(auth.CodecConfig{
		Issuer:        cfg.Auth.Issuer,
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build token codec")
	}
	svc, err := auth.NewService(store, codec)
	if err != nil {
		log.Fatal().Err(err).Msg("build auth service")
	}

	guard := tenant.NewGuard(store.Organizations())
	owner := tenant.NewOwnership(pg.NewOwnershipStore(db), ownedTables...)
	recorder := audit.NewRecorder(pg.NewAuditStore(db), log, cfg.Audit.QueueDepth)

	api := httpapi.New(db, svc, guard, owner, recorder, log, httpapi.Options{
		Version:       version,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		RateBurst:     cfg.HTTP.RateBurst,
		RatePerSecond: cfg.HTTP.RatePerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting tallo-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	// Stop the listener before the recorder so every entry already
	// dispatched gets drained.
	recorder.Close()
	_ = db.Close()
	log.Info().Msg("stopped")
}
