package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"photoattend/internal/config"
	"photoattend/internal/logging"
	"photoattend/internal/notify"
	"photoattend/internal/queue"
	"photoattend/internal/store"
)

// Worker consumes check-in events and forwards them to the configured notifier.
func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, "worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.QueueBackend != "redis" {
		slog.Error("worker needs queue.backend redis; the memory queue lives inside the api process",
			"queue", cfg.QueueBackend)
		os.Exit(1)
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		slog.Warn("redis not reachable yet, consuming anyway", "addr", cfg.RedisAddr)
	}
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	var n notify.Notifier
	switch cfg.NotifyBackend {
	case "mqtt":
		n, err = notify.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			slog.Error("mqtt connect failed", "err", err)
			os.Exit(1)
		}
	default:
		n = notify.NewLog(nil)
	}
	defer n.Close()

	messages, err := q.Consume(ctx)
	if err != nil {
		slog.Error("queue consume init failed", "err", err)
		os.Exit(1)
	}

	slog.Info("worker started, waiting for messages", "notify", cfg.NotifyBackend)
	run(ctx, messages, n)
	slog.Info("worker stopped")
}

// run forwards every check-in event until messages closes. Failures are logged, never retried.
func run(ctx context.Context, messages <-chan queue.Message, n notify.Notifier) {
	for msg := range messages {
		if msg.Type != queue.TypeCheckinCreated {
			slog.Debug("skipping message", "type", msg.Type)
			continue
		}
		ev, err := queue.DecodeCheckin(msg)
		if err != nil {
			slog.Warn("bad check-in event", "err", err)
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			slog.Warn("notify failed", "record_id", ev.RecordID, "err", err)
			continue
		}
		slog.Debug("check-in forwarded", "record_id", ev.RecordID, "user_id", ev.UserID)
	}
}
