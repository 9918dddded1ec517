package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"NewsScanner/internal/crawler"
	"NewsScanner/internal/domain"
	"NewsScanner/pkg/workerpool"
)

// DirectCrawler reads a fixed list of named RSS/Atom feeds.
type DirectCrawler struct {
	fetcher     fetcher
	concurrency int
	logger      *slog.Logger
}

var _ crawler.Crawler = (*DirectCrawler)(nil)

// NewDirectCrawler wires an HTTP client; concurrency bounds parallel feed fetches.
func NewDirectCrawler(client *http.Client, userAgent string, concurrency int, log *slog.Logger) *DirectCrawler {
	if log == nil {
		log = slog.Default()
	}
	return &DirectCrawler{
		fetcher:     newFetcher(client, userAgent),
		concurrency: concurrency,
		logger:      log,
	}
}

// Name identifies the strategy inside the registry.
func (d *DirectCrawler) Name() string {
	return "rss"
}

// Crawl fetches every feed concurrently. A failing feed is logged and skipped;
// entries from the others are returned in feed order.
func (d *DirectCrawler) Crawl(ctx context.Context, req crawler.Request) ([]domain.RawEntry, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	batches, _ := workerpool.Run(ctx, d.concurrency, req.Feeds, func(ctx context.Context, f crawler.Feed) ([]domain.RawEntry, bool) {
		parsed, err := d.fetcher.fetch(ctx, f.URL)
		if err != nil {
			d.logger.Warn("feed failed", "site", req.SiteName, "feed", f.Name, "url", f.URL, "error", err)
			return nil, false
		}

		entries := make([]domain.RawEntry, 0, len(parsed.Items))
		for _, item := range parsed.Items {
			if item == nil {
				continue
			}
			entries = append(entries, toRawEntry(item, domain.SourceSpecificFeed, f.Name))
		}
		d.logger.Debug("feed fetched", "site", req.SiteName, "feed", f.Name, "entries", len(entries))
		return entries, true
	})

	var results []domain.RawEntry
	for _, batch := range batches {
		results = append(results, batch...)
	}
	return results, nil
}
