// Package redisstore keeps OTP mismatch counters in Redis so every API replica sees
// the same lockout.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

var _ ports.AttemptLimiter = (*AttemptLimiter)(nil)

const keyPrefix = "tca:otp:"

// AttemptLimiter counts consecutive mismatches with INCR and stores the lockout end
// under a key that expires with the window.
type AttemptLimiter struct {
	client      redis.UniversalClient
	now         func() time.Time
	maxFailures int64
	window      time.Duration
}

// Option customises the limiter.
type Option func(*AttemptLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *AttemptLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewAttemptLimiter builds a limiter with the handover defaults.
func NewAttemptLimiter(client redis.UniversalClient, opts ...Option) *AttemptLimiter {
	limiter := &AttemptLimiter{
		client:      client,
		now:         time.Now,
		maxFailures: domain.MaxConsecutiveMismatches,
		window:      domain.LockoutWindow,
	}
	for _, opt := range opts {
		opt(limiter)
	}
	return limiter
}

// Locked returns when the lock on key ends, or the zero time.
func (l *AttemptLimiter) Locked(ctx context.Context, key string) (time.Time, error) {
	raw, err := l.client.Get(ctx, lockKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read otp lock: %w", err)
	}
	until := time.UnixMilli(raw).UTC()
	if !l.now().Before(until) {
		return time.Time{}, nil
	}
	return until, nil
}

// RecordFailure counts one mismatch and locks key once the limit is reached.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, key string) (time.Time, error) {
	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, failuresKey(key))
		pipe.Expire(ctx, failuresKey(key), l.window)
		return nil
	}); err != nil {
		return time.Time{}, fmt.Errorf("count otp failure: %w", err)
	}
	if incr.Val() < l.maxFailures {
		return time.Time{}, nil
	}

	until := l.now().Add(l.window).UTC()
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey(key), until.UnixMilli(), l.window)
		pipe.Del(ctx, failuresKey(key))
		return nil
	}); err != nil {
		return time.Time{}, fmt.Errorf("lock otp: %w", err)
	}
	return until, nil
}

// Reset clears the counter after a successful validation.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, failuresKey(key)).Err(); err != nil {
		return fmt.Errorf("reset otp failures: %w", err)
	}
	return nil
}

func failuresKey(key string) string { return keyPrefix + "failures:" + key }

func lockKey(key string) string { return keyPrefix + "lock:" + key }
