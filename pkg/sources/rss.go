package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

const TypeRSS = "rss"

// rssCollector implements Collector for RSS 2.0 feeds.
type rssCollector struct {
	client HTTPFetcher
}

func NewRSSCollector(client HTTPFetcher) Collector {
	return &rssCollector{client: client}
}

func (c *rssCollector) Type() string { return TypeRSS }

func (c *rssCollector) Collect(ctx context.Context, cfg Source) ([]domain.ContentItem, error) {
	raw, err := fetchFeed(ctx, c.client, cfg)
	if err != nil {
		return nil, err
	}

	items, err := parseRSS(cfg.ID, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s rss feed: %w (body: %s)", cfg.ID, err, responseSnippet(raw))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s feed returned no items", cfg.ID)
	}
	return items, nil
}

type rssDocument struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func parseRSS(sourceID string, data []byte) ([]domain.ContentItem, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(doc.Channel.Items))
	for _, entry := range doc.Channel.Items {
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}

		item := domain.ContentItem{
			Title:       strings.TrimSpace(entry.Title),
			URL:         link,
			Source:      sourceID,
			PublishedAt: parsePubDate(entry.PubDate),
		}
		if desc := strings.TrimSpace(entry.Description); desc != "" {
			if payload, err := json.Marshal(map[string]string{"description": desc}); err == nil {
				item.Payload = payload
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// parsePubDate tries the date layouts commonly seen in RSS feeds.
func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
