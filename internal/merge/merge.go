// Package merge is the single write path for committing newly fetched items
// into DailyRecords. Merges are idempotent and atomic: replaying a batch
// accepts nothing the second time, and a persistence failure leaves both the
// stored record and the dedup index exactly as they were.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/dedup"
	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
	"github.com/samvad-hq/samvad-digest-collector/internal/logger"
	"github.com/samvad-hq/samvad-digest-collector/internal/store"
)

// ErrMergeFailed wraps persistence failures during Merge. The store state is
// guaranteed unchanged, so the caller may safely retry the whole call.
var ErrMergeFailed = errors.New("merge failed")

// Result reports how a batch fared.
type Result struct {
	Accepted int
	Rejected int
	// AcceptedItems are the items actually appended, in accepted order.
	AcceptedItems []domain.ContentItem
}

// sourceState carries the per-source dedup index and the lock serializing
// merges for that source. Serializing per source covers the per-(source,day)
// exclusion requirement; merges for different sources run fully in parallel.
type sourceState struct {
	mu          sync.Mutex
	index       *dedup.Index
	hydrated    bool
	hydratedFor domain.Day
}

// Store combines the dedup index and the persistence collaborator into one
// atomic, idempotent merge operation. Safe for concurrent use.
type Store struct {
	records      store.RecordStore
	lookbackDays int
	log          logger.Logger

	mu      sync.Mutex
	sources map[string]*sourceState
}

// NewStore builds a merge store over the given persistence backend. The
// dedup lookback window is a required, explicit parameter; there is no
// unbounded default.
func NewStore(records store.RecordStore, lookbackDays int, log logger.Logger) (*Store, error) {
	if records == nil {
		return nil, fmt.Errorf("record store must not be nil")
	}
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback window must be a positive number of days")
	}
	return &Store{
		records:      records,
		lookbackDays: lookbackDays,
		log:          logger.Ensure(log),
		sources:      make(map[string]*sourceState),
	}, nil
}

func (s *Store) state(source string) *sourceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sources[source]
	if !ok {
		st = &sourceState{index: dedup.NewIndex(source, s.log)}
		s.sources[source] = st
	}
	return st
}

// Merge commits newItems into the (date, source) DailyRecord, dropping
// items whose normalized title is already present within the lookback
// window. Relative order of newItems is preserved; prior entries are never
// reordered.
func (s *Store) Merge(ctx context.Context, date domain.Day, source string, newItems []domain.ContentItem) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, fmt.Errorf("source is empty")
	}
	if !date.Valid() {
		return Result{}, fmt.Errorf("invalid day %q", date)
	}

	st := s.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Hydrate lazily, and rehydrate when the merge day moves so the index
	// always reflects exactly the lookback window as of this date.
	if !st.hydrated || st.hydratedFor != date {
		if err := st.index.Load(ctx, s.records, date, s.lookbackDays); err != nil {
			return Result{}, fmt.Errorf("hydrate dedup index %s/%s: %w", source, date, err)
		}
		st.hydrated = true
		st.hydratedFor = date
	}

	working, err := s.readWorking(ctx, source, date)
	if err != nil {
		return Result{}, err
	}

	var res Result
	batch := make(map[string]struct{}, len(newItems))
	for _, item := range newItems {
		key := dedup.Normalize(item.Title)
		if key != "" {
			if _, seen := batch[key]; seen {
				res.Rejected++
				continue
			}
			if st.index.IsDuplicate(item.Title) {
				res.Rejected++
				continue
			}
			batch[key] = struct{}{}
		}

		accepted := item
		accepted.Source = source
		working.Items = append(working.Items, accepted)
		res.AcceptedItems = append(res.AcceptedItems, accepted)
		res.Accepted++
	}

	if res.Accepted > 0 {
		working.Version++
		working.UpdatedAt = time.Now().UTC()
		if err := s.records.Write(ctx, source, date, working); err != nil {
			return Result{}, fmt.Errorf("persist %s/%s: %w", source, date, errors.Join(ErrMergeFailed, err))
		}
		// The index learns the new fingerprints only after the write
		// commits, so a failed merge leaves it untouched and retryable.
		for _, item := range res.AcceptedItems {
			st.index.Add(item.Title)
		}
	}

	s.log.InfoObj("merge completed", "merge_result", map[string]any{
		"source":   source,
		"date":     date.String(),
		"accepted": res.Accepted,
		"rejected": res.Rejected,
		"total":    len(working.Items),
	})
	return res, nil
}

// readWorking loads a mutable copy of the current record, or starts a fresh
// one on first merge for (source, date).
func (s *Store) readWorking(ctx context.Context, source string, date domain.Day) (*domain.DailyRecord, error) {
	rec, err := s.records.Read(ctx, source, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.DailyRecord{Source: source, Date: date}, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", source, date, errors.Join(ErrMergeFailed, err))
	}
	return rec.Clone(), nil
}
