package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/textnorm"
	"NewsScanner/pkg/workerpool"
)

// IngestDeps wires the adapters used by ingestion.
type IngestDeps struct {
	Source      ports.EntrySource
	Repository  ports.ItemRepository
	Resolver    ports.URLResolver
	Concurrency int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Ingestor crawls every configured site and stores entries not seen before.
type Ingestor struct {
	source      ports.EntrySource
	repository  ports.ItemRepository
	resolver    ports.URLResolver
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	lock        stageLock
}

var _ Stage = (*Ingestor)(nil)

// NewIngestor builds the ingest stage. A nil Resolver keeps canonical URLs
// unresolved; Now defaults to time.Now.
func NewIngestor(deps IngestDeps) *Ingestor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		source:      deps.Source,
		repository:  deps.Repository,
		resolver:    deps.Resolver,
		concurrency: deps.Concurrency,
		logger:      logger,
		now:         now,
	}
}

func (in *Ingestor) Name() string { return "ingest" }

// Run is IngestAll.
func (in *Ingestor) Run(ctx context.Context) ([]int64, error) {
	return in.IngestAll(ctx)
}

// IngestAll returns the ids created by this run in ascending order. Only an
// unreachable repository or missing wiring fails the run; every per-site and
// per-entry problem is logged and skipped.
func (in *Ingestor) IngestAll(ctx context.Context) ([]int64, error) {
	if in.source == nil || in.repository == nil {
		return nil, errors.New("ingest: source and repository are required")
	}
	release, err := in.lock.acquire(in.Name())
	if err != nil {
		return nil, err
	}
	defer release()

	log := runLogger(in.logger, in.Name())

	if pinger, ok := in.repository.(ports.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return nil, fmt.Errorf("repository unreachable: %w", err)
		}
	}

	entries, err := in.source.FetchEntries(ctx, in.now())
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	unique := dedupeEntries(entries)
	log.Info("entries fetched", "total", len(entries), "unique", len(unique))

	ids, ok := workerpool.Run(ctx, in.concurrency, unique, func(ctx context.Context, e domain.RawEntry) (int64, bool) {
		return in.ingestOne(ctx, log, e)
	})

	created := make([]int64, 0, len(ids))
	for i, id := range ids {
		if ok[i] {
			created = append(created, id)
		}
	}
	slices.Sort(created)

	log.Info("ingest finished", "created", len(created))
	return created, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, log *slog.Logger, e domain.RawEntry) (int64, bool) {
	url := e.CanonicalURL()
	log = log.With("url", url)

	existing, err := in.repository.FindByCanonicalURL(ctx, url)
	if err != nil {
		log.Warn("lookup failed", "error", err)
		return 0, false
	}
	if existing != nil {
		return 0, false
	}

	item := buildItem(e)
	if resolved := in.resolve(ctx, log, url); resolved != url {
		item.ResolvedURL = &resolved
	}

	created, err := in.repository.Insert(ctx, item)
	switch {
	case errors.Is(err, ports.ErrDuplicate):
		log.Debug("duplicate skipped")
		return 0, false
	case err != nil:
		log.Warn("insert failed", "error", err)
		return 0, false
	}
	return created.ID, true
}

// resolve never fails; a panicking or empty resolver yields url.
func (in *Ingestor) resolve(ctx context.Context, log *slog.Logger, url string) (out string) {
	if in.resolver == nil {
		return url
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("resolver panicked", "panic", r)
			out = url
		}
	}()
	if resolved := strings.TrimSpace(in.resolver.Resolve(ctx, url)); resolved != "" {
		return resolved
	}
	return url
}

// dedupeEntries keeps the first entry per canonical URL and drops entries
// without one.
func dedupeEntries(entries []domain.RawEntry) []domain.RawEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.RawEntry, 0, len(entries))
	for _, e := range entries {
		url := e.CanonicalURL()
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, e)
	}
	return out
}

func buildItem(e domain.RawEntry) domain.Item {
	payload := e.Payload
	if len(payload) == 0 {
		payload, _ = json.Marshal(map[string]string{
			"title":     e.Title,
			"link":      e.Link,
			"guid":      e.GUID,
			"published": e.Published,
		})
	}
	if e.Query != "" || e.Location != "" {
		payload = withProvenance(e, payload)
	}

	return domain.Item{
		SourceType:           e.SourceType,
		RawPayload:           payload,
		CanonicalURL:         e.CanonicalURL(),
		ExtractedTitle:       domain.StringPtr(strings.TrimSpace(e.Title)),
		ExtractedSourceName:  domain.StringPtr(strings.TrimSpace(e.NewsSource())),
		ExtractedPublishedAt: e.PublishedAt,
		ExtractedAuthor:      domain.StringPtr(strings.TrimSpace(e.Author)),
		ExtractedSummary:     domain.StringPtr(textnorm.Normalize(e.Summary)),
	}
}

// provenance records which search produced an entry. The crawler's payload is
// kept byte for byte under Entry.
type provenance struct {
	Source   string          `json:"source,omitempty"`
	Query    string          `json:"query,omitempty"`
	Location string          `json:"location,omitempty"`
	Entry    json.RawMessage `json:"entry"`
}

func withProvenance(e domain.RawEntry, payload json.RawMessage) json.RawMessage {
	wrapped, err := json.Marshal(provenance{
		Source:   e.SourceName,
		Query:    e.Query,
		Location: e.Location,
		Entry:    payload,
	})
	if err != nil {
		// payload was not valid JSON; store it as it came
		return payload
	}
	return wrapped
}
