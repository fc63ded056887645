package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

// fsStore keeps one JSON document per (source, day) under
// <root>/<source>/<day>.json. Writes go to a temp file in the same
// directory followed by a rename, so readers never observe a partial
// document.
type fsStore struct {
	root string
}

// openFS initializes the filesystem-backed RecordStore.
func openFS(root string) (RecordStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &fsStore{root: root}, nil
}

func (s *fsStore) Close() error { return nil }

func (s *fsStore) recordPath(source string, date domain.Day) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("source is empty")
	}
	if !date.Valid() {
		return "", fmt.Errorf("invalid day %q", date)
	}
	// Source ids come from config; keep path traversal out regardless.
	if strings.ContainsAny(source, `/\`) || source == "." || source == ".." {
		return "", fmt.Errorf("source id %q is not a valid path segment", source)
	}
	return filepath.Join(s.root, source, date.String()+".json"), nil
}

// Read loads the record for (source, day), or ErrNotFound.
func (s *fsStore) Read(ctx context.Context, source string, date domain.Day) (*domain.DailyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.recordPath(source, date)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", source, date, ErrNotFound)
		}
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}

	var rec domain.DailyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	return &rec, nil
}

// Write persists the record with a write-new-then-rename commit.
func (s *fsStore) Write(ctx context.Context, source string, date domain.Day, rec *domain.DailyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("record must not be nil")
	}

	path, err := s.recordPath(source, date)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create source directory: %w", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), date.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}
