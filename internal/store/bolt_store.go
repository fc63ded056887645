package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

// boltStore implements RecordStore backed by a single bbolt database: one
// bucket per source, the day string as key. bbolt's transactional Update
// gives the atomic-replace guarantee without temp files.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a bbolt-backed RecordStore.
func openBolt(path string) (RecordStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	return &boltStore{db: db}, nil
}

// Close closes the underlying database.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Read loads the record for (source, day), or ErrNotFound.
func (b *boltStore) Read(ctx context.Context, source string, date domain.Day) (*domain.DailyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *domain.DailyRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(source))
		if bucket == nil {
			return fmt.Errorf("%s/%s: %w", source, date, ErrNotFound)
		}
		value := bucket.Get([]byte(date))
		if value == nil {
			return fmt.Errorf("%s/%s: %w", source, date, ErrNotFound)
		}

		var decoded domain.DailyRecord
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("decode record %s/%s: %w", source, date, err)
		}
		rec = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Write persists the record inside a single transaction.
func (b *boltStore) Write(ctx context.Context, source string, date domain.Day, rec *domain.DailyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("record must not be nil")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(source))
		if err != nil {
			return fmt.Errorf("create source bucket: %w", err)
		}
		return bucket.Put([]byte(date), payload)
	})
}
