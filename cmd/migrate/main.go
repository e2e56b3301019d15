package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tallo.app/internal/config"
	"tallo.app/internal/migrate"
	"tallo.app/internal/obs"
	"tallo.app/internal/store/pg"
	"tallo.app/migrations"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [up|down|status|seed]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	log := obs.NewLogger(os.Getenv("TALLO_LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Database.DSN == "" {
		log.Fatal().Msg("TALLO_PG_DSN is required")
	}

	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(db, migrations.FS)

	switch command {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate down")
		}
		log.Info().Msg("last migration rolled back")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("migrate status")
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	case "seed":
		if err := mgr.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed")
		}
		log.Info().Msg("seeds applied")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
