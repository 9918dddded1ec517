package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"NewsScanner/internal/config"
	"NewsScanner/internal/crawler"
	"NewsScanner/internal/enrichment"
	"NewsScanner/internal/httpapi"
	"NewsScanner/internal/infrastructure/feed"
	"NewsScanner/internal/infrastructure/llm"
	"NewsScanner/internal/infrastructure/render"
	"NewsScanner/internal/infrastructure/resolver"
	"NewsScanner/internal/infrastructure/scheduler"
	"NewsScanner/internal/infrastructure/scraper"
	"NewsScanner/internal/infrastructure/storage"
	"NewsScanner/internal/infrastructure/telegram"
	"NewsScanner/internal/logging"
	"NewsScanner/internal/ports"
	"NewsScanner/internal/themes"
	"NewsScanner/internal/usecase"
)

// Repository is the storage contract the application owns.
type Repository interface {
	ports.ItemRepository
	ports.Pinger
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	repo   Repository
	close  func() error

	Ingestor *usecase.Ingestor
	Scraper  *usecase.ScrapeStage
	Enricher *usecase.EnrichStage
	Pipeline *usecase.Pipeline
	Items    *usecase.ItemService
}

// New opens the repository and builds every stage from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return build(cfg, baseLogger, repo, closeRepo), nil
}

func build(cfg config.Config, baseLogger *slog.Logger, repo Repository, closeRepo func() error) *Application {
	feedClient := &http.Client{Timeout: cfg.Crawl.FetchTimeout}
	registry := crawler.NewRegistry(
		feed.NewDirectCrawler(feedClient, cfg.Crawl.UserAgent, cfg.Crawl.Concurrency, baseLogger.With("component", "crawler.rss")),
		feed.NewGoogleNewsCrawler(feedClient, cfg.Crawl.UserAgent, cfg.Crawl.Concurrency, baseLogger.With("component", "crawler.gnews")),
	)
	source := feed.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var urlResolver ports.URLResolver = resolver.Identity
	if cfg.Resolver.IsEnabled() {
		urlResolver = resolver.NewGoogleNews(
			&http.Client{Timeout: cfg.Resolver.Timeout},
			cfg.Resolver.BaseURL,
			baseLogger.With("component", "resolver"),
		)
	}

	var fetcher ports.PageFetcher
	if cfg.Scraper.RenderEndpoint != "" {
		fetcher = render.NewClient(cfg.Scraper.RenderEndpoint, cfg.Scraper.RenderToken, cfg.Scraper.PageTimeout, nil)
	} else {
		fetcher = scraper.NewHTTPFetcher(nil, "", cfg.Scraper.PageTimeout)
	}
	extractor := scraper.NewExtractor(scraper.Options{
		MinWords:         cfg.Scraper.MinWords,
		MaxDepth:         cfg.Scraper.MaxDepth,
		ExcludedClasses:  cfg.Scraper.ExcludedClasses,
		ExcludedKeywords: cfg.Scraper.ExcludedKeywords,
	})

	completion := llm.NewOpenAIClient(cfg.LLM, nil, baseLogger.With("component", "llm"))
	enricher := enrichment.NewService(completion, enrichment.Options{
		ClassificationModel: cfg.LLM.ClassificationModel,
		SummarizationModel:  cfg.LLM.SummarizationModel,
		SummaryMaxTokens:    cfg.LLM.SummaryMaxTokens,
	}, baseLogger.With("component", "enrichment"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram, nil)
	}
	var grouper ports.ThemeGrouper
	if cfg.Enrichment.ThemesEnabled() {
		grouper = themes.NewGrouper(completion, themes.Options{
			Model:       cfg.LLM.SummarizationModel,
			MaxThemes:   cfg.Enrichment.MaxThemes,
			Concurrency: cfg.Enrichment.Concurrency,
		}, baseLogger.With("component", "themes"))
	}

	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Source:      source,
		Repository:  repo,
		Resolver:    urlResolver,
		Concurrency: cfg.Crawl.IngestConcurrency,
		Logger:      baseLogger.With("component", "ingest"),
	})
	scrapeStage := usecase.NewScrapeStage(usecase.ScrapeDeps{
		Repository:  repo,
		Fetcher:     fetcher,
		Extractor:   extractor,
		Concurrency: cfg.Scraper.Concurrency,
		BatchSize:   cfg.Scraper.BatchSize,
		Logger:      baseLogger.With("component", "scrape"),
	})
	enrichStage := usecase.NewEnrichStage(usecase.EnrichDeps{
		Repository:  repo,
		Enricher:    enricher,
		Notifier:    notifier,
		Themes:      grouper,
		Concurrency: cfg.Enrichment.Concurrency,
		BatchSize:   cfg.Enrichment.BatchSize,
		Logger:      baseLogger.With("component", "enrich"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		repo:     repo,
		close:    closeRepo,
		Ingestor: ingestor,
		Scraper:  scrapeStage,
		Enricher: enrichStage,
		Pipeline: usecase.NewPipeline(ingestor, scrapeStage, enrichStage, baseLogger.With("component", "pipeline")),
		Items:    usecase.NewItemService(repo),
	}
}

func openRepository(ctx context.Context, db config.DatabaseConfig) (Repository, func() error, error) {
	if strings.EqualFold(db.Driver, storage.DriverMemory) {
		return storage.NewMemoryRepository(), func() error { return nil }, nil
	}
	repo, err := storage.Open(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, repo.Close, nil
}

// Migrate applies pending schema migrations and returns their names.
func Migrate(ctx context.Context, db config.DatabaseConfig) ([]string, error) {
	if strings.EqualFold(db.Driver, storage.DriverMemory) {
		return nil, nil
	}
	conn, dialect, err := storage.Connect(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return storage.Migrate(ctx, conn, dialect)
}

// Stage looks up a stage by name.
func (a *Application) Stage(name string) (usecase.Stage, error) {
	for _, s := range a.Stages() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}

// Stages lists the stages in pipeline order.
func (a *Application) Stages() []usecase.Stage {
	return []usecase.Stage{a.Ingestor, a.Scraper, a.Enricher}
}

// Serve runs the HTTP API and the cron schedule until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return err
	}

	sched := usecase.NewScheduler(
		scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler")),
		a.Pipeline,
		a.logger.With("component", "scheduler"),
	)
	server := httpapi.NewServer(a.cfg.Server.Addr, &httpapi.Handlers{
		Stages:    a.Stages(),
		Pipeline:  a.Pipeline,
		Items:     a.Items,
		Rescraper: a.Scraper,
		Health:    a.repo,
	}, a.logger.With("component", "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return sched.Stop(context.Background())
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the repository.
func (a *Application) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}
