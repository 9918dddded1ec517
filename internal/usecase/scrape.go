package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/textnorm"
	"NewsScanner/pkg/workerpool"
)

// ErrScrapeFailed is returned by RescrapeByID when the page could not be
// fetched, extracted or stored. Details are logged.
var ErrScrapeFailed = errors.New("scrape failed")

// ScrapeDeps wires the adapters used by the scrape stage.
type ScrapeDeps struct {
	Repository  ports.ItemRepository
	Fetcher     ports.PageFetcher
	Extractor   ports.TextExtractor
	Concurrency int
	BatchSize   int
	Logger      *slog.Logger
}

// ScrapeStage fills article_text for items that do not have it yet.
type ScrapeStage struct {
	repository  ports.ItemRepository
	fetcher     ports.PageFetcher
	extractor   ports.TextExtractor
	concurrency int
	batchSize   int
	logger      *slog.Logger
	lock        stageLock
}

var _ Stage = (*ScrapeStage)(nil)

// NewScrapeStage builds the scrape stage from its fetcher and extractor.
func NewScrapeStage(deps ScrapeDeps) *ScrapeStage {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeStage{
		repository:  deps.Repository,
		fetcher:     deps.Fetcher,
		extractor:   deps.Extractor,
		concurrency: deps.Concurrency,
		batchSize:   deps.BatchSize,
		logger:      logger,
	}
}

func (s *ScrapeStage) Name() string { return "scrape" }

// Run selects visible items without article text, oldest first, and scrapes
// up to one batch of them.
func (s *ScrapeStage) Run(ctx context.Context) ([]int64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	release, err := s.lock.acquire(s.Name())
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := s.repository.Select(ctx, PendingScrapeQuery(s.batchSize))
	if err != nil {
		return nil, fmt.Errorf("select pending items: %w", err)
	}

	log := runLogger(s.logger, s.Name())
	log.Info("scrape started", "pending", len(pending))
	ids := s.scrape(ctx, log, pending, false)
	log.Info("scrape finished", "updated", len(ids))
	return ids, nil
}

// PendingScrapeQuery selects visible items that still lack article text.
func PendingScrapeQuery(limit int) domain.Query {
	return domain.Query{
		Filters: []domain.Filter{
			domain.IsNull(domain.FieldArticleText),
			domain.Eq(domain.FieldIsRemovedFromDisplay, false),
		},
		Sort:     []domain.Sort{{Field: domain.FieldID}},
		PageSize: limit,
	}
}

// ScrapePending scrapes the given items, skipping those that already have
// text, and returns the ids that were updated.
func (s *ScrapeStage) ScrapePending(ctx context.Context, items []domain.Item) []int64 {
	if s.ready() != nil {
		return nil
	}
	return s.scrape(ctx, runLogger(s.logger, s.Name()), items, false)
}

// Rescrape fetches the items again and overwrites any stored text.
func (s *ScrapeStage) Rescrape(ctx context.Context, items []domain.Item) []int64 {
	if s.ready() != nil {
		return nil
	}
	return s.scrape(ctx, runLogger(s.logger, "rescrape"), items, true)
}

// RescrapeByID re-scrapes a single stored item.
func (s *ScrapeStage) RescrapeByID(ctx context.Context, id int64) (domain.Item, error) {
	if err := s.ready(); err != nil {
		return domain.Item{}, err
	}
	item, err := getItem(ctx, s.repository, id)
	if err != nil {
		return domain.Item{}, err
	}
	updated, ok := s.scrapeOne(ctx, runLogger(s.logger, "rescrape"), item)
	if !ok {
		return domain.Item{}, fmt.Errorf("rescrape item %d: %w", id, ErrScrapeFailed)
	}
	return updated, nil
}

func (s *ScrapeStage) ready() error {
	if s.repository == nil || s.fetcher == nil || s.extractor == nil {
		return errors.New("scrape: repository, fetcher and extractor are required")
	}
	return nil
}

func (s *ScrapeStage) scrape(ctx context.Context, log *slog.Logger, items []domain.Item, overwrite bool) []int64 {
	todo := items
	if !overwrite {
		todo = make([]domain.Item, 0, len(items))
		for _, item := range items {
			if !item.HasText() {
				todo = append(todo, item)
			}
		}
	}

	results, ok := workerpool.Run(ctx, s.concurrency, todo, func(ctx context.Context, item domain.Item) (domain.Item, bool) {
		return s.scrapeOne(ctx, log, item)
	})
	return collectIDs(results, ok)
}

func (s *ScrapeStage) scrapeOne(ctx context.Context, log *slog.Logger, item domain.Item) (domain.Item, bool) {
	target := item.OnlineURL()
	log = log.With("item_id", item.ID, "url", target)

	page, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		return domain.Item{}, false
	}
	text, err := s.extractor.Extract(page)
	if err != nil {
		log.Warn("extract failed", "error", err)
		return domain.Item{}, false
	}
	text = textnorm.Normalize(text)
	if text == "" {
		log.Warn("extract produced no text")
		return domain.Item{}, false
	}

	item.ArticleText = &text
	updated, err := s.repository.Update(ctx, item.ID, item, domain.FieldArticleText)
	if err != nil {
		log.Warn("update failed", "error", err)
		return domain.Item{}, false
	}
	return updated, true
}
