package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-digest-collector/internal/domain"
	"github.com/samvad-hq/samvad-digest-collector/internal/fetch"
	"github.com/samvad-hq/samvad-digest-collector/internal/logger"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// Scraper fetches article pages for items that arrived without a title and
// extracts one from OG tags. Dedup fingerprints need titles, so this runs
// before the merge.
type Scraper struct {
	client HTTPFetcher
	log    logger.Logger
}

// NewScraper constructs a scraper over the shared retrying client.
func NewScraper(client HTTPFetcher, log logger.Logger) *Scraper {
	return &Scraper{client: client, log: logger.Ensure(log)}
}

// Enrich fills missing titles by scraping each item's page. Failures leave
// the item as-is; pacing is handled by the client's rate limiter.
func (s *Scraper) Enrich(ctx context.Context, cfg Source, items []domain.ContentItem) []domain.ContentItem {
	out := append([]domain.ContentItem(nil), items...)

	for i, item := range out {
		if strings.TrimSpace(item.Title) != "" {
			continue
		}
		select {
		case <-ctx.Done():
			return out
		default:
		}

		title, err := s.scrapeTitle(ctx, cfg, item.URL)
		if err != nil {
			s.log.WarnObj("item title scrape failed", "scrape_error", map[string]any{
				"source": cfg.ID,
				"url":    item.URL,
				"error":  err.Error(),
			})
			continue
		}
		out[i].Title = title
	}

	return out
}

func (s *Scraper) scrapeTitle(ctx context.Context, cfg Source, url string) (string, error) {
	res, err := s.client.Fetch(ctx, fetch.Request{
		URL:     url,
		Method:  http.MethodGet,
		Headers: Headers(cfg),
		Timeout: timeoutFor(cfg),
	})
	if err != nil {
		return "", err
	}

	body := res.Body
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	if node := doc.Find(`meta[property="og:title"]`).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val), nil
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title, nil
	}
	return "", fmt.Errorf("page has no usable title")
}
