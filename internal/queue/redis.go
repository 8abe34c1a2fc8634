package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultKey is the list used when none is configured.
const DefaultKey = "attendance:checkins"

// RedisQueue stores msgpack-encoded messages in a Redis list: LPUSH in, BRPOP out.
type RedisQueue struct {
	client *redis.Client
	key    string

	// PopTimeout bounds each BRPOP so cancellation is noticed.
	PopTimeout time.Duration
	// RetryDelay is the pause after a failed pop.
	RetryDelay time.Duration
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, PopTimeout: 5 * time.Second, RetryDelay: time.Second}
}

// Publish encodes msg and pushes it onto the list head.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := msgpack.Marshal(&msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume pops from the list tail until ctx ends. Entries that do not decode
// are logged and dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			msg, ok := q.pop(ctx)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *RedisQueue) pop(ctx context.Context) (Message, bool) {
	res, err := q.client.BRPop(ctx, q.PopTimeout, q.key).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil) || ctx.Err() != nil:
		return Message{}, false
	default:
		slog.Warn("queue pop failed", "key", q.key, "err", err)
		select {
		case <-time.After(q.RetryDelay):
		case <-ctx.Done():
		}
		return Message{}, false
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return Message{}, false
	}
	var msg Message
	if err := msgpack.Unmarshal([]byte(res[1]), &msg); err != nil {
		slog.Warn("queue message dropped", "key", q.key, "err", err)
		return Message{}, false
	}
	return msg, true
}
