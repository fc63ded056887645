package fetch

import (
	"fmt"
	"time"
)

// Kind classifies a fetch failure. The kind decides whether the client may
// retry the attempt.
type Kind int

const (
	// KindNetwork covers transport failures and attempt timeouts.
	KindNetwork Kind = iota + 1
	// KindServer covers 5xx responses.
	KindServer
	// KindRateLimited covers 429 responses.
	KindRateLimited
	// KindClient covers 4xx responses other than 429.
	KindClient
	// KindCancelled covers caller-initiated cancellation.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindRateLimited:
		return "rate_limited"
	case KindClient:
		return "client"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may be re-attempted.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	// Attempts is the number of attempts performed before giving up.
	Attempts int
	// RetryAfter is the server-requested minimum delay before the next
	// attempt (from a 429 Retry-After header), zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s error", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s)", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
