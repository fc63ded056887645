package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Domain contains core models shared across the collection pipeline.

const dayLayout = "2006-01-02"

// Day identifies a single calendar day (UTC) in YYYY-MM-DD form. It keys
// DailyRecords together with the source id.
type Day string

// DayOf returns the Day containing t, interpreted in UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(dayLayout))
}

// ParseDay parses a YYYY-MM-DD string into a Day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// AddDays returns the day shifted by n calendar days (n may be negative).
func (d Day) AddDays(n int) Day {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return DayOf(t.AddDate(0, 0, n))
}

// Valid reports whether the day is a well-formed YYYY-MM-DD date.
func (d Day) Valid() bool {
	_, err := time.Parse(dayLayout, string(d))
	return err == nil
}

func (d Day) String() string { return string(d) }

// ContentItem is one collected item (article, post, repository, thread).
// Items are read-only once handed to the merge store.
type ContentItem struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Source      string          `json:"source"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// DailyRecord accumulates the items accepted for one (source, day) pair.
// Item order is first-accepted order across all merges for that pair.
type DailyRecord struct {
	Source    string        `json:"source"`
	Date      Day           `json:"date"`
	Items     []ContentItem `json:"items"`
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a copy whose item slice can be mutated without affecting
// the receiver.
func (r *DailyRecord) Clone() *DailyRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Items = append([]ContentItem(nil), r.Items...)
	return &cp
}
