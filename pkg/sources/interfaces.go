package sources

import (
	"context"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
	"github.com/samvad-hq/samvad-digest-collector/internal/fetch"
)

// Collector retrieves and extracts content items for one source type.
// Concrete implementations live in type-specific files (e.g. rss.go).
type Collector interface {
	Type() string
	Collect(ctx context.Context, cfg Source) ([]domain.ContentItem, error)
}

// CollectorRegistry resolves the collector implementation for a source
// config. Resolution happens at startup wiring, not per collection cycle.
type CollectorRegistry interface {
	CollectorFor(cfg Source) (Collector, error)
}

// HTTPFetcher is the fetching surface collectors rely on; satisfied by
// *fetch.Client.
type HTTPFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}
