// Package fetch performs one logical fetch as a bounded sequence of attempts,
// consulting the per-host rate limiter before every attempt (retries
// included) and classifying every failure.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/samvad-digest-collector/internal/ratelimit"
)

// Limiter is the token-acquisition surface the client needs from the rate
// limiter.
type Limiter interface {
	Acquire(ctx context.Context, key string) (time.Duration, error)
}

// Request describes one logical fetch.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	// Timeout bounds a single attempt, not the whole retry sequence.
	Timeout time.Duration
	// HostKey selects the rate limit bucket; derived from URL when empty.
	HostKey string
}

// Result is a successful (2xx) fetch outcome.
type Result struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// HostKey derives the rate limit bucket key from a URL: the lowercased
// hostname without port.
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(u.Hostname())
}

// Client fetches URLs with per-host rate limiting and classified retries.
// Safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter Limiter
	policy  RetryPolicy
	obs     Observer
}

// NewClient builds a retrying client around the given limiter and policy.
// A nil observer disables event reporting.
func NewClient(limiter Limiter, policy RetryPolicy, obs Observer) *Client {
	return &Client{
		http:    resty.New(),
		limiter: limiter,
		policy:  policy.normalized(),
		obs:     ensureObserver(obs),
	}
}

// Fetch performs the request, retrying retryable failures with backoff up to
// the policy's attempt bound. It returns a *Error on failure.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("fetch request url is empty")
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	hostKey := req.HostKey
	if hostKey == "" {
		hostKey = HostKey(req.URL)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: KindCancelled, URL: req.URL, Attempts: attempt - 1, Err: err}
		}

		// Every attempt pays the rate limit cost, retries included.
		if _, err := c.limiter.Acquire(ctx, hostKey); err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindCancelled, URL: req.URL, Attempts: attempt - 1, Err: err}
			}
			// Acquire timeouts are surfaced as-is; retry-or-abort is the
			// caller's decision.
			return nil, fmt.Errorf("rate limit %q: %w", hostKey, err)
		}

		c.obs.FetchAttempt(req.URL, attempt)
		res, ferr := c.attempt(ctx, method, req)
		if ferr == nil {
			c.obs.FetchOutcome(req.URL, attempt, res.StatusCode, nil)
			return res, nil
		}
		ferr.Attempts = attempt

		if ferr.Kind == KindCancelled {
			c.obs.FetchOutcome(req.URL, attempt, ferr.StatusCode, ferr)
			return nil, ferr
		}

		wait, retry := c.policy.Next(attempt, ferr)
		if !retry {
			c.obs.FetchOutcome(req.URL, attempt, ferr.StatusCode, ferr)
			return nil, ferr
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cancelled := &Error{Kind: KindCancelled, URL: req.URL, Attempts: attempt, Err: ctx.Err()}
			c.obs.FetchOutcome(req.URL, attempt, ferr.StatusCode, cancelled)
			return nil, cancelled
		case <-timer.C:
		}
	}
}

// attempt performs a single network call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method string, req Request) (*Result, *Error) {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := c.http.R().SetContext(attemptCtx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, URL: req.URL, Err: ctx.Err()}
		}
		// Attempt timeouts classify as network failures and stay retryable.
		return nil, &Error{Kind: KindNetwork, URL: req.URL, Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return &Result{
			StatusCode: code,
			Body:       resp.Body(),
			Headers:    resp.Header(),
		}, nil
	case code == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindRateLimited,
			URL:        req.URL,
			StatusCode: code,
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	case code >= 500:
		return nil, &Error{Kind: KindServer, URL: req.URL, StatusCode: code}
	default:
		return nil, &Error{Kind: KindClient, URL: req.URL, StatusCode: code}
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

var _ Limiter = (*ratelimit.Limiter)(nil)
