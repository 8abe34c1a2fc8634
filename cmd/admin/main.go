package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/config"
	"photoattend/internal/logging"
	"photoattend/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("ATTEND_CONFIG"))
	errAndDie(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat, "admin")

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	errAndDie(err)
	defer db.Close()

	loc, err := cfg.Location()
	errAndDie(err)

	cli := newCommandLine(db, cfg, loc)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			slog.Error("admin command failed", "err", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func newCommandLine(db *store.DB, cfg config.App, loc *time.Location) *commandLine {
	signer := auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	return &commandLine{
		db:         db,
		production: cfg.Production(),
		auth:       auth.NewService(db, signer),
		attendance: attendance.NewService(
			store.NewProfiles(db.X), store.NewRoles(db.X), store.NewRecords(db.X),
			attendance.WithLocation(loc),
		),
		out: os.Stdout,
		now: time.Now,
	}
}

func errAndDie(err error) {
	if err != nil {
		slog.Error("admin setup failed", "err", err)
		os.Exit(1)
	}
}
