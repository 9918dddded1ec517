package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsScanner/internal/config"
	"NewsScanner/internal/crawler"
	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/pkg/workerpool"
)

// StrategySource implements EntrySource via registered crawler strategies.
type StrategySource struct {
	registry *crawler.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.EntrySource = (*StrategySource)(nil)

// NewStrategySource wires crawler registry with config-defined sites.
func NewStrategySource(reg *crawler.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchEntries runs every configured site concurrently. A site whose crawler
// is unknown or fails is logged and skipped; the rest are returned in site order.
func (s *StrategySource) FetchEntries(ctx context.Context, now time.Time) ([]domain.RawEntry, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("crawler registry is not configured")
	}

	s.debug("fetch entries", "sites", len(s.sites))

	batches, _ := workerpool.Run(ctx, len(s.sites), s.sites, func(ctx context.Context, site config.SiteConfig) ([]domain.RawEntry, bool) {
		s.debug("process site", "site", site.Name, "crawler", site.Crawler)
		strategy, err := s.registry.Resolve(site.Crawler)
		if err != nil {
			s.warn("site skipped", "site", site.Name, "error", err)
			return nil, false
		}

		req := crawler.Request{
			Now:       now,
			SiteName:  site.Name,
			Feeds:     toCrawlerFeeds(site.Feeds),
			Queries:   site.Queries,
			Locations: site.Locations,
			Options:   site.Options,
		}

		results, err := strategy.Crawl(ctx, req)
		if err != nil {
			s.warn("site crawl failed", "site", site.Name, "error", err)
			return nil, false
		}
		s.debug("site produced entries", "site", site.Name, "count", len(results))
		return results, true
	})

	var aggregated []domain.RawEntry
	for _, batch := range batches {
		aggregated = append(aggregated, batch...)
	}

	s.debug("strategy source done", "total_entries", len(aggregated))
	return aggregated, nil
}

func toCrawlerFeeds(cfg []config.FeedConfig) []crawler.Feed {
	feeds := make([]crawler.Feed, 0, len(cfg))
	for _, f := range cfg {
		feeds = append(feeds, crawler.Feed{
			Name: f.Name,
			URL:  f.URL,
		})
	}
	return feeds
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
