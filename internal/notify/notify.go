// Package notify forwards check-in events to real-time subscribers.
package notify

import (
	"context"
	"log/slog"

	"photoattend/internal/queue"
)

// Notifier delivers one check-in event.
type Notifier interface {
	Notify(ctx context.Context, ev queue.CheckinEvent) error
	Close()
}

// Log writes events to a slog logger. It is the default when no broker is configured.
type Log struct {
	Logger *slog.Logger
}

// NewLog returns a log notifier writing to l, or the default logger when l is nil.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{Logger: l}
}

func (n *Log) Notify(ctx context.Context, ev queue.CheckinEvent) error {
	n.Logger.InfoContext(ctx, "check-in",
		"record_id", ev.RecordID,
		"user_id", ev.UserID,
		"status", ev.Status,
		"at", ev.CheckInTime)
	return nil
}

func (n *Log) Close() {}
