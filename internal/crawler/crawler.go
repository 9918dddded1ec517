package crawler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"NewsScanner/internal/domain"
)

// Feed is one named endpoint provided by config.
type Feed struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a crawl.
type Request struct {
	Now       time.Time
	SiteName  string
	Feeds     []Feed
	Queries   []string
	Locations []string
	Options   map[string]string
}

// Option returns a site option or fallback when it is unset.
func (r Request) Option(key, fallback string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Crawler captures a single source family (direct feeds, aggregator search, etc.).
// Crawl returns a fully materialized batch and may be called repeatedly.
type Crawler interface {
	Name() string
	Crawl(ctx context.Context, req Request) ([]domain.RawEntry, error)
}

// Registry keeps a mapping from crawler names to their implementations.
type Registry struct {
	crawlers map[string]Crawler
}

// NewRegistry builds a registry with the given crawlers.
func NewRegistry(crawlers ...Crawler) *Registry {
	r := &Registry{crawlers: map[string]Crawler{}}
	for _, c := range crawlers {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a crawler implementation.
func (r *Registry) Register(c Crawler) {
	if r.crawlers == nil {
		r.crawlers = map[string]Crawler{}
	}
	r.crawlers[c.Name()] = c
}

// Resolve returns a crawler by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Crawler, error) {
	if c, ok := r.crawlers[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("crawler %s is not registered", name)
}

// Names lists registered crawlers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.crawlers))
	for name := range r.crawlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
