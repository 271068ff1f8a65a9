package careserver

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apierrors "github.com/Apurer/temporary-care-api/internal/shared/errors"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

// minBucketIdle is the shortest time an unused bucket is kept.
const minBucketIdle = 10 * time.Minute

// KeyedLimiter keeps a token bucket per caller in a go-cache. A bucket unused for
// longer than it takes to refill is full again, so evicting it loses nothing.
type KeyedLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	buckets *cache.Cache
}

// NewKeyedLimiter allows rps sustained requests with the given burst per caller.
func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := minBucketIdle
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return newKeyedLimiter(rate.Limit(rps), burst, idle)
}

func newKeyedLimiter(limit rate.Limit, burst int, idle time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		buckets: cache.New(idle, idle),
	}
}

// Allow consumes one token from key's bucket. Every call restarts the bucket's idle timer.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	bucket := rate.NewLimiter(l.limit, l.burst)
	if raw, ok := l.buckets.Get(key); ok {
		bucket = raw.(*rate.Limiter)
	}
	l.buckets.Set(key, bucket, cache.DefaultExpiration)
	l.mu.Unlock()
	return bucket.Allow()
}

// Middleware aborts with 429 when the caller's bucket is empty. Callers are keyed by
// actor id, falling back to the client IP.
func (l *KeyedLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if actor, ok := identity.FromContext(c.Request.Context()); ok {
			key = actor.ID
		}
		if !l.Allow(key) {
			respondProblem(c, apierrors.ErrTooManyRequests.
				WithDetail("too many verification attempts").
				WithRetryAfter(l.retryAfter()))
		}
	}
}

func (l *KeyedLimiter) retryAfter() time.Duration {
	if l.limit <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(l.limit))
}
