// Package ratelimit bounds outgoing request rates per host key so external
// services are not overwhelmed. Buckets for distinct keys are fully
// independent; any task fetching the same host contends for the same bucket.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrAcquireTimeout is returned when a token cannot become available within
// the bucket's configured MaxWait.
var ErrAcquireTimeout = errors.New("rate limit acquire timed out")

// BucketConfig describes one token bucket: burst capacity, sustained refill
// rate, and the longest a caller is willing to wait for a token.
// A zero MaxWait means wait indefinitely (bounded only by the context).
type BucketConfig struct {
	Capacity        int
	RefillPerSecond float64
	MaxWait         time.Duration
}

func (c BucketConfig) normalized() BucketConfig {
	if c.Capacity <= 0 {
		c.Capacity = 1
	}
	if c.RefillPerSecond <= 0 {
		c.RefillPerSecond = 1
	}
	return c
}

// Limiter hands out tokens from per-key buckets, creating buckets lazily on
// first use. Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]BucketConfig
	def       BucketConfig
}

// New builds a limiter with a default bucket config and optional per-key
// overrides for hosts with different allowances.
func New(def BucketConfig, overrides map[string]BucketConfig) *Limiter {
	norm := make(map[string]BucketConfig, len(overrides))
	for key, cfg := range overrides {
		norm[key] = cfg.normalized()
	}
	return &Limiter{
		buckets:   make(map[string]*rate.Limiter),
		overrides: norm,
		def:       def.normalized(),
	}
}

// configFor returns the bucket config applying to key.
func (l *Limiter) configFor(key string) BucketConfig {
	if cfg, ok := l.overrides[key]; ok {
		return cfg
	}
	return l.def
}

// bucket returns the token bucket for key, creating it at full capacity on
// first use.
func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		cfg := l.configFor(key)
		b = rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity)
		l.buckets[key] = b
	}
	return b
}

// Acquire takes one token from key's bucket, waiting for refill when the
// bucket is empty. It returns how long the caller waited. It fails with
// ErrAcquireTimeout when the wait would exceed the bucket's MaxWait, and
// with the context error when the caller is cancelled mid-wait (the
// reserved token is not refunded in that case).
func (l *Limiter) Acquire(ctx context.Context, key string) (time.Duration, error) {
	return l.AcquireN(ctx, key, 1)
}

// AcquireN takes cost tokens from key's bucket.
func (l *Limiter) AcquireN(ctx context.Context, key string, cost int) (time.Duration, error) {
	if cost <= 0 {
		cost = 1
	}
	cfg := l.configFor(key)
	if cost > cfg.Capacity {
		return 0, fmt.Errorf("acquire %d tokens for %q exceeds bucket capacity %d", cost, key, cfg.Capacity)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Reservations are granted in call order, so waiters for the same key
	// are served roughly first-come first-served.
	res := l.bucket(key).ReserveN(time.Now(), cost)
	if !res.OK() {
		return 0, fmt.Errorf("bucket %q cannot ever satisfy %d tokens", key, cost)
	}

	delay := res.Delay()
	if delay == 0 {
		return 0, nil
	}
	if cfg.MaxWait > 0 && delay > cfg.MaxWait {
		res.Cancel()
		return 0, fmt.Errorf("acquire %q would wait %s (max %s): %w", key, delay, cfg.MaxWait, ErrAcquireTimeout)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}
