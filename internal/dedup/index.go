// Package dedup answers "have we already recorded an item with this title
// for this source, within the lookback window?" without re-reading the
// backing store on every query.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
	"github.com/samvad-hq/samvad-digest-collector/internal/logger"
	"github.com/samvad-hq/samvad-digest-collector/internal/store"
)

// Index is the per-source fingerprint set. It is a derived cache over the
// DailyRecords in the lookback window, never an independent source of
// truth. IsDuplicate and Add are pure in-memory operations; all I/O is
// confined to Load.
//
// The index carries no internal locking: the merge store only mutates it
// while holding the corresponding source lock.
type Index struct {
	source  string
	members map[string]struct{}
	log     logger.Logger
}

// NewIndex creates an empty index for the given source.
func NewIndex(source string, log logger.Logger) *Index {
	return &Index{
		source:  source,
		members: make(map[string]struct{}),
		log:     logger.Ensure(log),
	}
}

// Source returns the source this index is scoped to.
func (i *Index) Source() string { return i.source }

// Len returns the current membership size.
func (i *Index) Len() int { return len(i.members) }

// Load rehydrates membership from the reader's DailyRecords across
// [asOf-lookbackDays, asOf]. Hydration is best-effort: missing days are
// skipped silently, corrupt or unreadable days are logged and skipped so a
// bad record degrades dedup completeness instead of failing the merge.
func (i *Index) Load(ctx context.Context, reader store.RecordReader, asOf domain.Day, lookbackDays int) error {
	if reader == nil {
		return fmt.Errorf("record reader must not be nil")
	}
	if lookbackDays < 0 {
		return fmt.Errorf("lookback days must not be negative")
	}

	i.members = make(map[string]struct{})

	for offset := lookbackDays; offset >= 0; offset-- {
		if err := ctx.Err(); err != nil {
			return err
		}

		day := asOf.AddDays(-offset)
		rec, err := reader.Read(ctx, i.source, day)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.log.WarnObj("dedup hydration skipped unreadable day", "dedup_load_error", map[string]any{
				"source": i.source,
				"day":    day.String(),
				"error":  err.Error(),
			})
			continue
		}

		for _, item := range rec.Items {
			i.Add(item.Title)
		}
	}

	i.log.DebugObj("dedup index hydrated", "dedup_load", map[string]any{
		"source":        i.source,
		"as_of":         asOf.String(),
		"lookback_days": lookbackDays,
		"fingerprints":  len(i.members),
	})
	return nil
}

// IsDuplicate reports whether the normalized title is already a member.
// An empty normalized title is never a duplicate.
func (i *Index) IsDuplicate(rawTitle string) bool {
	key := Normalize(rawTitle)
	if key == "" {
		return false
	}
	_, ok := i.members[key]
	return ok
}

// Add registers the title's fingerprint. Idempotent; empty normalized
// titles are excluded from indexing entirely so unrelated blank-titled
// items never collapse into one fingerprint.
func (i *Index) Add(rawTitle string) {
	key := Normalize(rawTitle)
	if key == "" {
		return
	}
	i.members[key] = struct{}{}
}
