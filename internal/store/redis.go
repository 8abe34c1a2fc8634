package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the client behind the check-in queue.
type Redis struct {
	Client *redis.Client
}

// NewRedis accepts host:port or a redis:// URL. Timeouts stay short; go-redis
// extends the read deadline itself for blocking pops.
func NewRedis(addr string) *Redis {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		if parsed, err := redis.ParseURL(addr); err == nil {
			opts = parsed
		}
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return &Redis{Client: redis.NewClient(opts)}
}

// Healthy pings with a one second budget. A nil wrapper is unhealthy.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
