// Package store provides the pluggable DailyRecord persistence collaborator.
// Writes are atomic from the caller's perspective: a crash mid-write leaves
// the previous record intact, never a half-written one.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

// ErrNotFound is returned by Read when no record exists for (source, day).
var ErrNotFound = errors.New("daily record not found")

// RecordReader is the read-only surface used to hydrate dedup indexes.
type RecordReader interface {
	Read(ctx context.Context, source string, date domain.Day) (*domain.DailyRecord, error)
}

// RecordStore persists DailyRecords keyed by (source, day).
type RecordStore interface {
	RecordReader
	Write(ctx context.Context, source string, date domain.Day, rec *domain.DailyRecord) error
	Close() error
}

// NewRecordStore creates the configured persistence backend.
func NewRecordStore(typ, path string) (RecordStore, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%s storage requires a path", typ)
	}

	switch typ {
	case "", "fs":
		return openFS(path)
	case "bbolt":
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}
