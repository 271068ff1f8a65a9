package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.AttemptLimiter = (*AttemptLimiter)(nil)

// AttemptLimiter counts OTP mismatches in a go-cache. Entries expire on their own after
// the lockout window; the injected clock decides whether a lock is still active.
type AttemptLimiter struct {
	mu          sync.Mutex
	cache       *cache.Cache
	now         func() time.Time
	maxFailures int
	window      time.Duration
}

type failureCount struct {
	count  int
	lastAt time.Time
}

// NewAttemptLimiter builds a limiter with the handover defaults.
func NewAttemptLimiter() *AttemptLimiter {
	return &AttemptLimiter{
		cache:       cache.New(domain.LockoutWindow, 10*time.Minute),
		now:         time.Now,
		maxFailures: domain.MaxConsecutiveMismatches,
		window:      domain.LockoutWindow,
	}
}

// WithClock overrides the time source for deterministic testing.
func (l *AttemptLimiter) WithClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Locked returns when the lock on key ends, or the zero time.
func (l *AttemptLimiter) Locked(_ context.Context, key string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedUntil(key), nil
}

// RecordFailure counts one mismatch and locks key once the limit is reached.
func (l *AttemptLimiter) RecordFailure(_ context.Context, key string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	current := failureCount{}
	if raw, ok := l.cache.Get(failuresKey(key)); ok {
		current = raw.(failureCount)
		if now.Sub(current.lastAt) > l.window {
			current = failureCount{}
		}
	}
	current.count++
	current.lastAt = now
	if current.count >= l.maxFailures {
		until := now.Add(l.window)
		l.cache.Delete(failuresKey(key))
		l.cache.Set(lockKey(key), until, l.window)
		return until, nil
	}
	l.cache.Set(failuresKey(key), current, l.window)
	return time.Time{}, nil
}

// Reset clears the counter after a successful validation.
func (l *AttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Delete(failuresKey(key))
	return nil
}

func (l *AttemptLimiter) lockedUntil(key string) time.Time {
	raw, ok := l.cache.Get(lockKey(key))
	if !ok {
		return time.Time{}
	}
	until := raw.(time.Time)
	if !l.now().Before(until) {
		l.cache.Delete(lockKey(key))
		return time.Time{}
	}
	return until
}

func failuresKey(key string) string { return "otp:failures:" + key }

func lockKey(key string) string { return "otp:lock:" + key }
