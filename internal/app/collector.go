package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/config"
	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
	"github.com/samvad-hq/samvad-digest-collector/internal/fetch"
	"github.com/samvad-hq/samvad-digest-collector/internal/logger"
	"github.com/samvad-hq/samvad-digest-collector/internal/merge"
	"github.com/samvad-hq/samvad-digest-collector/internal/ratelimit"
	"github.com/samvad-hq/samvad-digest-collector/internal/store"
	"github.com/samvad-hq/samvad-digest-collector/pkg/publishers"
	"github.com/samvad-hq/samvad-digest-collector/pkg/sources"
)

// Collector wires together sources, the fetch client, the merge store, and
// publishers, and executes collection cycles on a fixed interval.
type Collector struct {
	cfg        *config.Config
	sourceReg  *sources.Registry
	collectors sources.CollectorRegistry
	scraper    *sources.Scraper
	mergeStore *merge.Store
	records    store.RecordStore
	fanout     *publishers.Fanout
	interval   time.Duration
	log        logger.Logger
}

// NewCollector builds a collector runtime from config files.
func NewCollector(ctx context.Context, cfg *config.Config, log logger.Logger) (*Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, src := range sourceList {
		sourceIDs = append(sourceIDs, src.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	records, err := store.NewRecordStore(cfg.StorageType, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init record store: %w", err)
	}
	log.InfoObj("record store initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.StoragePath,
	})

	mergeStore, err := merge.NewStore(records, cfg.LookbackDays, log)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("init merge store: %w", err)
	}

	client := fetch.NewClient(
		newLimiter(cfg, sourceList),
		fetch.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			BaseBackoff:    cfg.RetryBaseBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			JitterFraction: cfg.RetryJitterFraction,
		},
		fetch.NewLogObserver(log),
	)

	return &Collector{
		cfg:        cfg,
		sourceReg:  sourceReg,
		collectors: sources.DefaultCollectorRegistry(client),
		scraper:    sources.NewScraper(client, log),
		mergeStore: mergeStore,
		records:    records,
		fanout:     fanout,
		interval:   cfg.CollectInterval,
		log:        log,
	}, nil
}

// newLimiter builds the per-host limiter from the config defaults plus any
// per-source overrides keyed by the source URL's host.
func newLimiter(cfg *config.Config, sourceList []sources.Source) *ratelimit.Limiter {
	def := ratelimit.BucketConfig{
		Capacity:        cfg.RateLimitCapacity,
		RefillPerSecond: cfg.RateLimitRefillPerSecond,
		MaxWait:         cfg.RateLimitMaxWait,
	}

	overrides := make(map[string]ratelimit.BucketConfig)
	for _, src := range sourceList {
		if src.RateLimit == nil {
			continue
		}
		overrides[fetch.HostKey(src.SourceURL)] = ratelimit.BucketConfig{
			Capacity:        src.RateLimit.Capacity,
			RefillPerSecond: src.RateLimit.RefillPerSecond,
			MaxWait:         src.RateLimit.MaxWait(),
		}
	}

	return ratelimit.New(def, overrides)
}

// Run starts the collection loop until the context is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	if c == nil || c.mergeStore == nil {
		return fmt.Errorf("collector is not initialized")
	}
	defer c.closeRecords()

	sourceList := c.sourceReg.All()
	if len(sourceList) == 0 {
		c.log.WarnObj("no sources configured; collector idle", "sources_file", c.cfg.SourcesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	c.log.InfoObj("collector loop starting", "collector_state", map[string]any{
		"sources_count":    len(sourceList),
		"publishers_count": c.fanout.Size(),
		"collect_interval": c.interval.String(),
	})

	if err := c.runOnce(ctx, sourceList); err != nil {
		c.log.ErrorObj("initial collection failed", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.InfoObj("collector loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := c.runOnce(ctx, sourceList); err != nil {
				c.log.ErrorObj("scheduled collection failed", "error", err)
			}
		}
	}
}

// runOnce performs a single collection cycle across all sources, one
// goroutine per source.
func (c *Collector) runOnce(ctx context.Context, sourceList []sources.Source) error {
	start := time.Now()
	date := domain.DayOf(start)
	c.log.InfoObj("collection started", "cycle_meta", map[string]any{
		"sources_count": len(sourceList),
		"date":          string(date),
		"started_at":    start.UTC(),
	})

	var wg sync.WaitGroup
	for _, src := range sourceList {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			c.collectOne(ctx, date, src)
		}(src)
	}
	wg.Wait()

	c.log.InfoObj("collection completed", "cycle_meta", map[string]any{
		"sources_count": len(sourceList),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return ctx.Err()
}

// collectOne fetches one source, merges its items into the day's record, and
// publishes an event when the merge accepted anything new.
func (c *Collector) collectOne(ctx context.Context, date domain.Day, src sources.Source) {
	collector, err := c.collectors.CollectorFor(src)
	if err != nil {
		c.log.ErrorObj("no collector for source", "collect_error", map[string]any{
			"source_id": src.ID,
			"error":     err.Error(),
		})
		return
	}

	items, err := collector.Collect(ctx, src)
	if err != nil {
		c.log.ErrorObj("source collection failed", "collect_error", map[string]any{
			"source_id": src.ID,
			"error":     err.Error(),
		})
		return
	}
	if len(items) == 0 {
		c.log.DebugObj("source returned no items", "source_id", src.ID)
		return
	}

	items = c.scraper.Enrich(ctx, src, items)

	result, err := c.mergeStore.Merge(ctx, date, src.ID, items)
	if err != nil {
		c.log.ErrorObj("merge failed", "merge_error", map[string]any{
			"source_id": src.ID,
			"date":      string(date),
			"error":     err.Error(),
		})
		return
	}
	if result.Accepted == 0 {
		return
	}

	evt := publishers.NewEvent(src.ID, src.Name, date, result.Accepted, result.Rejected, result.AcceptedItems)
	delivered, err := c.fanout.Publish(ctx, evt)
	if err != nil {
		c.log.ErrorObj("publish fanout incomplete", "publish_error", map[string]any{
			"source_id": src.ID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}

// closeRecords safely closes the record store, logging any error encountered.
func (c *Collector) closeRecords() {
	if c == nil || c.records == nil {
		return
	}
	if err := c.records.Close(); err != nil {
		c.log.ErrorObj("record store close failed", "error", err)
	}
}
