package sources

import (
	"fmt"
	"strings"
)

// collectorRegistry implements CollectorRegistry with one typed collector
// per source type, fixed at construction.
type collectorRegistry struct {
	byType map[string]Collector
}

// NewCollectorRegistry builds a registry for the provided collector
// implementations keyed by their Type().
func NewCollectorRegistry(collectors ...Collector) CollectorRegistry {
	reg := &collectorRegistry{byType: make(map[string]Collector, len(collectors))}
	for _, c := range collectors {
		if c == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(c.Type()))
		if key == "" {
			continue
		}
		reg.byType[key] = c
	}
	return reg
}

// CollectorFor selects the collector for the given source based on its type.
func (r *collectorRegistry) CollectorFor(cfg Source) (Collector, error) {
	if r == nil {
		return nil, fmt.Errorf("collector registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("source %q has no type configured", cfg.ID)
	}
	if c, ok := r.byType[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no collector registered for source %q (type %q)", cfg.ID, cfg.Type)
}

// DefaultCollectorRegistry wires up the known collector types.
func DefaultCollectorRegistry(client HTTPFetcher) CollectorRegistry {
	return NewCollectorRegistry(
		NewRSSCollector(client),
		NewSitemapCollector(client),
	)
}
