package fetch

import (
	"testing"
	"time"
)

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Millisecond, JitterFraction: 0}

	for _, kind := range []Kind{KindClient, KindCancelled} {
		if _, retry := p.Next(1, &Error{Kind: kind}); retry {
			t.Fatalf("kind %s should not retry", kind)
		}
	}
	if _, retry := p.Next(1, nil); retry {
		t.Fatalf("nil error should not retry")
	}
}

func TestRetryPolicyStopsWhenAttemptsExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, JitterFraction: 0}

	if _, retry := p.Next(2, &Error{Kind: KindServer}); !retry {
		t.Fatalf("attempt 2 of 3 should retry")
	}
	if _, retry := p.Next(3, &Error{Kind: KindServer}); retry {
		t.Fatalf("attempt 3 of 3 should stop")
	}
}

func TestRetryPolicyBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    10,
		BaseBackoff:    100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		JitterFraction: 0,
	}
	ferr := &Error{Kind: KindServer}

	wait, _ := p.Next(1, ferr)
	if wait != 100*time.Millisecond {
		t.Fatalf("attempt 1 backoff = %s, want 100ms", wait)
	}
	wait, _ = p.Next(2, ferr)
	if wait != 200*time.Millisecond {
		t.Fatalf("attempt 2 backoff = %s, want 200ms", wait)
	}
	wait, _ = p.Next(3, ferr)
	if wait != 300*time.Millisecond {
		t.Fatalf("attempt 3 backoff = %s, want cap 300ms", wait)
	}
	wait, _ = p.Next(8, ferr)
	if wait != 300*time.Millisecond {
		t.Fatalf("deep attempt backoff = %s, want cap 300ms", wait)
	}
}

func TestRetryPolicyJitterStaysWithinFraction(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    5,
		BaseBackoff:    100 * time.Millisecond,
		MaxBackoff:     time.Second,
		JitterFraction: 0.2,
	}
	ferr := &Error{Kind: KindNetwork}

	for i := 0; i < 50; i++ {
		wait, retry := p.Next(1, ferr)
		if !retry {
			t.Fatalf("expected retry")
		}
		if wait < 80*time.Millisecond || wait > 120*time.Millisecond {
			t.Fatalf("jittered backoff %s outside ±20%% of 100ms", wait)
		}
	}
}

func TestRetryPolicyHonorsRetryAfterFloor(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Millisecond, MaxBackoff: time.Second, JitterFraction: 0}

	wait, retry := p.Next(1, &Error{Kind: KindRateLimited, RetryAfter: 400 * time.Millisecond})
	if !retry {
		t.Fatalf("expected retry")
	}
	if wait < 400*time.Millisecond {
		t.Fatalf("wait %s shorter than Retry-After floor", wait)
	}
}
