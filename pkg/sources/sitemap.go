package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
)

const TypeNewsSitemap = "news_sitemap"

// sitemapCollector implements Collector for Google-News-style sitemaps.
type sitemapCollector struct {
	client HTTPFetcher
}

func NewSitemapCollector(client HTTPFetcher) Collector {
	return &sitemapCollector{client: client}
}

func (c *sitemapCollector) Type() string { return TypeNewsSitemap }

func (c *sitemapCollector) Collect(ctx context.Context, cfg Source) ([]domain.ContentItem, error) {
	raw, err := fetchFeed(ctx, c.client, cfg)
	if err != nil {
		return nil, err
	}

	items, err := parseNewsSitemap(cfg.ID, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s sitemap: %w (body: %s)", cfg.ID, err, responseSnippet(raw))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s sitemap returned no records", cfg.ID)
	}
	return items, nil
}

type newsSitemap struct {
	URLs []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc  string      `xml:"loc"`
	News sitemapNews `xml:"news"`
}

type sitemapNews struct {
	Title           string `xml:"title"`
	PublicationDate string `xml:"publication_date"`
}

func parseNewsSitemap(sourceID string, data []byte) ([]domain.ContentItem, error) {
	var sitemap newsSitemap
	if err := xml.Unmarshal(data, &sitemap); err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(sitemap.URLs))
	for _, entry := range sitemap.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}

		item := domain.ContentItem{
			// Some sitemaps omit the news title; the scraper fills it in.
			Title:  strings.TrimSpace(entry.News.Title),
			URL:    loc,
			Source: sourceID,
		}
		if raw := strings.TrimSpace(entry.News.PublicationDate); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				utc := t.UTC()
				item.PublishedAt = &utc
			}
		}
		items = append(items, item)
	}
	return items, nil
}
