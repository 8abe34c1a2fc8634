package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/config"
	"photoattend/internal/handler"
	"photoattend/internal/httpmiddleware"
	"photoattend/internal/logging"
	"photoattend/internal/metrics"
	"photoattend/internal/queue"
	"photoattend/internal/storage"
	"photoattend/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, "api")
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		slog.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		q           queue.Queue
		redisClient *store.Redis
	)
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	bucket, err := storage.Open(cfg)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	roles := store.NewRoles(db.X)
	att := attendance.NewService(
		store.NewProfiles(db.X), roles, store.NewRecords(db.X),
		attendance.WithLocation(loc),
		attendance.WithPageSizes(cfg.HistoryLimit, cfg.AdminLimit),
	)
	signer := auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	h := &handler.Handler{
		DB:          db,
		Redis:       redisClient,
		Auth:        auth.NewService(db, signer),
		Signer:      signer,
		Attendance:  att,
		Roles:       roles,
		Bucket:      bucket,
		Queue:       q,
		Metrics:     metrics.New(),
		Limiter:     httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		CORSOrigins: cfg.CORSOrigins,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "db", db.Driver(),
			"storage", cfg.StorageBackend, "bucket", bucket.Name(), "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", "err", err)
	}
	slog.Info("server exited")
	return nil
}
