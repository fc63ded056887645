package fetch

import (
	"github.com/samvad-hq/samvad-digest-collector/internal/logger"
)

// Observer receives attempt and outcome events for logging/metrics. It has
// no behavioral effect on the client.
type Observer interface {
	FetchAttempt(url string, attempt int)
	FetchOutcome(url string, attempts, statusCode int, err error)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) FetchAttempt(string, int)             {}
func (NopObserver) FetchOutcome(string, int, int, error) {}

// logObserver reports fetch events through the shared structured logger.
type logObserver struct {
	log logger.Logger
}

// NewLogObserver builds an Observer that logs attempts at debug level and
// failed outcomes at warn level.
func NewLogObserver(log logger.Logger) Observer {
	return &logObserver{log: logger.Ensure(log)}
}

func (o *logObserver) FetchAttempt(url string, attempt int) {
	o.log.DebugObj("fetch attempt", "fetch_attempt", map[string]any{
		"url":     url,
		"attempt": attempt,
	})
}

func (o *logObserver) FetchOutcome(url string, attempts, statusCode int, err error) {
	fields := map[string]any{
		"url":      url,
		"attempts": attempts,
		"status":   statusCode,
	}
	if err != nil {
		fields["error"] = err.Error()
		o.log.WarnObj("fetch failed", "fetch_outcome", fields)
		return
	}
	o.log.DebugObj("fetch succeeded", "fetch_outcome", fields)
}

func ensureObserver(obs Observer) Observer {
	if obs == nil {
		return NopObserver{}
	}
	return obs
}
