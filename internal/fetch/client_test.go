package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/ratelimit"
)

// fakeLimiter records acquired keys and can inject failures.
type fakeLimiter struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeLimiter) Acquire(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.keys = append(f.keys, key)
	return 0, nil
}

func (f *fakeLimiter) acquired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

// recordingObserver captures attempt/outcome events.
type recordingObserver struct {
	mu       sync.Mutex
	attempts []int
	outcomes int
	lastErr  error
}

func (r *recordingObserver) FetchAttempt(_ string, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func (r *recordingObserver) FetchOutcome(_ string, _, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes++
	r.lastErr = err
}

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		JitterFraction: 0,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	lim := &fakeLimiter{}
	client := NewClient(lim, fastPolicy(3), nil)

	res, err := client.Fetch(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != http.StatusOK || string(res.Body) != "payload" {
		t.Fatalf("unexpected result %d %q", res.StatusCode, res.Body)
	}
	if lim.acquired() != 1 {
		t.Fatalf("limiter acquired %d times, want 1", lim.acquired())
	}
}

func TestFetchRetriesServerErrorUntilExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	lim := &fakeLimiter{}
	obs := &recordingObserver{}
	client := NewClient(lim, fastPolicy(4), obs)

	_, err := client.Fetch(context.Background(), Request{URL: srv.URL})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != KindServer || ferr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected classification %s status %d", ferr.Kind, ferr.StatusCode)
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("server hit %d times, want 4", got)
	}
	if ferr.Attempts != 4 {
		t.Fatalf("Attempts = %d, want 4", ferr.Attempts)
	}
	// Every attempt, retries included, paid a rate limit token.
	if lim.acquired() != 4 {
		t.Fatalf("limiter acquired %d times, want 4", lim.acquired())
	}
	if len(obs.attempts) != 4 || obs.outcomes != 1 {
		t.Fatalf("observer saw %d attempts / %d outcomes", len(obs.attempts), obs.outcomes)
	}
}

func TestFetchDoesNotRetryClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(&fakeLimiter{}, fastPolicy(5), nil)

	_, err := client.Fetch(context.Background(), Request{URL: srv.URL})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != KindClient || ferr.Attempts != 1 {
		t.Fatalf("got kind %s attempts %d, want client/1", ferr.Kind, ferr.Attempts)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
}

func TestFetchRecoversAfterTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(&fakeLimiter{}, fastPolicy(4), nil)

	res, err := client.Fetch(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(res.Body) != "ok" {
		t.Fatalf("unexpected body %q", res.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hit %d times, want 3", got)
	}
}

func TestFetchClassifiesRateLimitedWithRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// Single attempt so the classified error surfaces without waiting.
	client := NewClient(&fakeLimiter{}, fastPolicy(1), nil)

	_, err := client.Fetch(context.Background(), Request{URL: srv.URL})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != KindRateLimited {
		t.Fatalf("kind = %s, want rate_limited", ferr.Kind)
	}
	if ferr.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %s, want 7s", ferr.RetryAfter)
	}
}

func TestFetchCancellationStopsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(&fakeLimiter{}, fastPolicy(5), nil)
	_, err := client.Fetch(ctx, Request{URL: srv.URL})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != KindCancelled {
		t.Fatalf("kind = %s, want cancelled", ferr.Kind)
	}
}

func TestFetchAttemptTimeoutIsRetryableNetworkError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(&fakeLimiter{}, fastPolicy(2), nil)
	_, err := client.Fetch(context.Background(), Request{
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetch.Error, got %v", err)
	}
	if ferr.Kind != KindNetwork {
		t.Fatalf("kind = %s, want network", ferr.Kind)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("server hit %d times, want 2 (timeout retried)", got)
	}
}

func TestFetchSurfacesAcquireTimeout(t *testing.T) {
	lim := &fakeLimiter{err: ratelimit.ErrAcquireTimeout}
	client := NewClient(lim, fastPolicy(3), nil)

	_, err := client.Fetch(context.Background(), Request{URL: "http://example.com/x"})
	if !errors.Is(err, ratelimit.ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
}

func TestHostKeyDerivation(t *testing.T) {
	cases := map[string]string{
		"https://News.Example.com:8443/feed.xml": "news.example.com",
		"http://example.org/a/b":                 "example.org",
	}
	for raw, want := range cases {
		if got := HostKey(raw); got != want {
			t.Fatalf("HostKey(%q) = %q, want %q", raw, got, want)
		}
	}
}
