package fetch

import (
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts    = 4
	defaultBaseBackoff    = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultJitterFraction = 0.2
)

// RetryPolicy decides, given the attempt just performed and its failure,
// whether to retry and how long to back off first. It is a pure decision
// component: it performs no waiting itself.
type RetryPolicy struct {
	// MaxAttempts bounds the total number of attempts (including the first).
	MaxAttempts int
	// BaseBackoff is the backoff before the second attempt; each further
	// attempt doubles it, capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// JitterFraction randomizes each backoff by ±fraction (0.2 = ±20%).
	JitterFraction float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttempts,
		BaseBackoff:    defaultBaseBackoff,
		MaxBackoff:     defaultMaxBackoff,
		JitterFraction: defaultJitterFraction,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = defaultBaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.JitterFraction < 0 || p.JitterFraction >= 1 {
		p.JitterFraction = defaultJitterFraction
	}
	return p
}

// Next reports whether the failure of the given attempt (1-based) should be
// retried, and the wait before the next attempt. Non-retryable kinds and
// exhausted attempts stop immediately. A server-requested Retry-After acts
// as a floor on the wait.
func (p RetryPolicy) Next(attempt int, ferr *Error) (time.Duration, bool) {
	p = p.normalized()

	if ferr == nil || !ferr.Kind.Retryable() {
		return 0, false
	}
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	backoff := p.BaseBackoff << (attempt - 1)
	if backoff > p.MaxBackoff || backoff <= 0 {
		backoff = p.MaxBackoff
	}
	if p.JitterFraction > 0 {
		spread := 1 + p.JitterFraction*(2*rand.Float64()-1)
		backoff = time.Duration(float64(backoff) * spread)
	}
	if ferr.RetryAfter > backoff {
		backoff = ferr.RetryAfter
	}
	return backoff, true
}
