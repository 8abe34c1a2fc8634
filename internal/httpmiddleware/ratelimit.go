package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"photoattend/internal/apperr"
)

// idleTTL is how long an untouched client bucket is kept before it is swept.
const idleTTL = 10 * time.Minute

// SimpleTokenBucket is an in-memory per-client rate limiter. Limits are per process.
type SimpleTokenBucket struct {
	capacity  float64
	perSecond float64
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	tokens float64
	seen   time.Time
}

// NewSimpleTokenBucket allows bursts of capacity requests, refilled at perMinute.
// A non-positive capacity defaults to perMinute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity:  float64(capacity),
		perSecond: float64(perMinute) / 60,
		now:       time.Now,
		clients:   make(map[string]*clientBucket),
	}
}

// GinMiddleware limits each signed-in user, read from the userKey context value,
// and falls back to the client IP. Mount it after authentication.
func (l *SimpleTokenBucket) GinMiddleware(userKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(userKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		ok, wait := l.take(key)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				NewErrorBody(apperr.KindRateLimited, "Too many requests, please slow down."))
			return
		}
		c.Next()
	}
}

// take spends one token for key. When none is left it reports how long until one is.
func (l *SimpleTokenBucket) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{tokens: l.capacity, seen: now}
		l.clients[key] = b
	}
	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.seen).Seconds()*l.perSecond)
	b.seen = now

	if b.tokens < 1 {
		if l.perSecond <= 0 {
			return false, time.Minute
		}
		return false, time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

// sweep drops buckets idle for longer than idleTTL; mu must be held.
func (l *SimpleTokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.clients {
		if now.Sub(b.seen) > idleTTL {
			delete(l.clients, k)
		}
	}
}
