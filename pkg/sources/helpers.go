package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/fetch"
)

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigTimeoutSecondsKey = "timeout_seconds"

	defaultFetchTimeout = 15 * time.Second
)

// ConfigString returns the trimmed string value for key from source.Config
// or a fallback.
func ConfigString(cfg Source, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// Headers builds the common request headers from a source config (skips
// empty values).
func Headers(cfg Source) map[string]string {
	headers := make(map[string]string, 3)

	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}

	return headers
}

// timeoutFor returns the per-attempt timeout for the source.
func timeoutFor(cfg Source) time.Duration {
	if raw, ok := cfg.Config[ConfigTimeoutSecondsKey]; ok {
		switch v := raw.(type) {
		case int:
			if v > 0 {
				return time.Duration(v) * time.Second
			}
		case float64:
			if v > 0 {
				return time.Duration(v * float64(time.Second))
			}
		}
	}
	return defaultFetchTimeout
}

// fetchFeed retrieves the source's raw payload through the retrying client.
func fetchFeed(ctx context.Context, client HTTPFetcher, cfg Source) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("source %q has no http client wired", cfg.ID)
	}

	res, err := client.Fetch(ctx, fetch.Request{
		URL:     cfg.SourceURL,
		Method:  http.MethodGet,
		Headers: Headers(cfg),
		Timeout: timeoutFor(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", cfg.ID, err)
	}
	return res.Body, nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
