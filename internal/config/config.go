package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWS_SCANNER_CONFIG"

	databaseDriverEnv   = "DATABASE_DRIVER"
	databaseDSNEnv      = "DATABASE_DSN"
	openAIAPIKeyEnv     = "OPENAI_API_KEY"
	openAIOrgEnv        = "OPENAI_ORGANIZATION"
	llmEndpointEnv      = "LLM_ENDPOINT"
	classifyModelEnv    = "LLM_CLASSIFICATION_MODEL"
	summarizeModelEnv   = "LLM_SUMMARIZATION_MODEL"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	logLevelEnv         = "LOG_LEVEL"
	serverAddrEnv       = "SERVER_ADDR"
	renderEndpointEnv   = "RENDER_ENDPOINT"
	renderTokenEnv      = "RENDER_TOKEN"
	hostedModel         = "gpt-4o"
	localModel          = "mistral-nemo"
	localEndpoint       = "http://localhost:11434/v1"
	defaultUserAgent    = "NewsScanner/1.0"
	googleNewsSearchURL = "https://news.google.com/rss/search"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Crawl         CrawlConfig        `yaml:"crawl"`
	Sites         []SiteConfig       `yaml:"sites"`
	Resolver      ResolverConfig     `yaml:"resolver"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	LLM           LLMConfig          `yaml:"llm"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Server        ServerConfig       `yaml:"server"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the item store. Driver is "sqlite", "postgres" or "memory".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the combined pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CrawlConfig bounds feed fetching and ingestion.
type CrawlConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	IngestConcurrency int           `yaml:"ingestConcurrency"`
	UserAgent         string        `yaml:"userAgent"`
	FetchTimeout      time.Duration `yaml:"fetchTimeout"`
}

// SiteConfig describes a single site with its crawler strategy.
type SiteConfig struct {
	Name      string            `yaml:"name"`
	Crawler   string            `yaml:"crawler"`
	Feeds     []FeedConfig      `yaml:"feeds"`
	Queries   []string          `yaml:"queries"`
	Locations []string          `yaml:"locations"`
	Options   map[string]string `yaml:"options"`
}

// FeedConfig is one named feed endpoint.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ResolverConfig controls aggregator link decoding.
type ResolverConfig struct {
	Enabled *bool         `yaml:"enabled"`
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// IsEnabled defaults to true when the flag is not set.
func (r ResolverConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ScraperConfig drives page fetching and article extraction.
type ScraperConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	PageTimeout      time.Duration `yaml:"pageTimeout"`
	BatchSize        int           `yaml:"batchSize"`
	MinWords         int           `yaml:"minWords"`
	MaxDepth         int           `yaml:"maxDepth"`
	ExcludedClasses  []string      `yaml:"excludedClasses"`
	ExcludedKeywords []string      `yaml:"excludedKeywords"`
	// RenderEndpoint, when set, sends pages through a crawl4ai-compatible
	// rendering service instead of a plain HTTP GET.
	RenderEndpoint string `yaml:"renderEndpoint"`
	RenderToken    string `yaml:"renderToken"`
}

// LLMConfig defines how to contact the completion service.
type LLMConfig struct {
	Endpoint            string        `yaml:"endpoint"`
	APIKey              string        `yaml:"apiKey"`
	Organization        string        `yaml:"organization"`
	ClassificationModel string        `yaml:"classificationModel"`
	SummarizationModel  string        `yaml:"summarizationModel"`
	SummaryMaxTokens    int           `yaml:"summaryMaxTokens"`
	RequestsPerSecond   float64       `yaml:"requestsPerSecond"`
	Timeout             time.Duration `yaml:"timeout"`
}

// EnrichmentConfig bounds the enrichment stage.
type EnrichmentConfig struct {
	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batchSize"`
	// Themes groups the digest by topic when enabled (the default).
	Themes    *bool `yaml:"themes"`
	MaxThemes int   `yaml:"maxThemes"`
}

// ThemesEnabled defaults to true when the flag is not set.
func (e EnrichmentConfig) ThemesEnabled() bool {
	return e.Themes == nil || *e.Themes
}

// ServerConfig configures the HTTP trigger API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether digests can be delivered.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyLLMDefaults()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

// ReadFile parses a YAML config file without applying defaults.
func ReadFile(path string) (Config, error) {
	var fileCfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileCfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fileCfg, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(openAIOrgEnv); v != "" {
		c.LLM.Organization = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv(classifyModelEnv); v != "" {
		c.LLM.ClassificationModel = v
	}
	if v := os.Getenv(summarizeModelEnv); v != "" {
		c.LLM.SummarizationModel = v
	}

	if v := os.Getenv(renderEndpointEnv); v != "" {
		c.Scraper.RenderEndpoint = v
	}
	if v := os.Getenv(renderTokenEnv); v != "" {
		c.Scraper.RenderToken = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}
}

// applyLLMDefaults picks the hosted model when an API key is present and a
// local OpenAI-compatible server otherwise.
func (c *Config) applyLLMDefaults() {
	model := localModel
	if c.LLM.APIKey != "" {
		model = hostedModel
	} else if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = localEndpoint
	}
	if c.LLM.ClassificationModel == "" {
		c.LLM.ClassificationModel = model
	}
	if c.LLM.SummarizationModel == "" {
		c.LLM.SummarizationModel = model
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	base.Crawl.Concurrency = pickInt(base.Crawl.Concurrency, override.Crawl.Concurrency)
	base.Crawl.IngestConcurrency = pickInt(base.Crawl.IngestConcurrency, override.Crawl.IngestConcurrency)
	base.Crawl.FetchTimeout = pickDuration(base.Crawl.FetchTimeout, override.Crawl.FetchTimeout)
	if override.Crawl.UserAgent != "" {
		base.Crawl.UserAgent = override.Crawl.UserAgent
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	if override.Resolver.Enabled != nil {
		base.Resolver.Enabled = override.Resolver.Enabled
	}
	if override.Resolver.BaseURL != "" {
		base.Resolver.BaseURL = override.Resolver.BaseURL
	}
	base.Resolver.Timeout = pickDuration(base.Resolver.Timeout, override.Resolver.Timeout)

	base.Scraper.Concurrency = pickInt(base.Scraper.Concurrency, override.Scraper.Concurrency)
	base.Scraper.PageTimeout = pickDuration(base.Scraper.PageTimeout, override.Scraper.PageTimeout)
	base.Scraper.BatchSize = pickInt(base.Scraper.BatchSize, override.Scraper.BatchSize)
	base.Scraper.MinWords = pickInt(base.Scraper.MinWords, override.Scraper.MinWords)
	base.Scraper.MaxDepth = pickInt(base.Scraper.MaxDepth, override.Scraper.MaxDepth)
	if len(override.Scraper.ExcludedClasses) > 0 {
		base.Scraper.ExcludedClasses = override.Scraper.ExcludedClasses
	}
	if len(override.Scraper.ExcludedKeywords) > 0 {
		base.Scraper.ExcludedKeywords = override.Scraper.ExcludedKeywords
	}
	if override.Scraper.RenderEndpoint != "" {
		base.Scraper.RenderEndpoint = override.Scraper.RenderEndpoint
	}
	if override.Scraper.RenderToken != "" {
		base.Scraper.RenderToken = override.Scraper.RenderToken
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Organization != "" {
		base.LLM.Organization = override.LLM.Organization
	}
	if override.LLM.ClassificationModel != "" {
		base.LLM.ClassificationModel = override.LLM.ClassificationModel
	}
	if override.LLM.SummarizationModel != "" {
		base.LLM.SummarizationModel = override.LLM.SummarizationModel
	}
	base.LLM.SummaryMaxTokens = pickInt(base.LLM.SummaryMaxTokens, override.LLM.SummaryMaxTokens)
	if override.LLM.RequestsPerSecond > 0 {
		base.LLM.RequestsPerSecond = override.LLM.RequestsPerSecond
	}
	base.LLM.Timeout = pickDuration(base.LLM.Timeout, override.LLM.Timeout)

	base.Enrichment.Concurrency = pickInt(base.Enrichment.Concurrency, override.Enrichment.Concurrency)
	base.Enrichment.BatchSize = pickInt(base.Enrichment.BatchSize, override.Enrichment.BatchSize)
	if override.Enrichment.Themes != nil {
		base.Enrichment.Themes = override.Enrichment.Themes
	}
	base.Enrichment.MaxThemes = pickInt(base.Enrichment.MaxThemes, override.Enrichment.MaxThemes)

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}

	return base
}

func pickInt(base, override int) int {
	if override > 0 {
		return override
	}
	return base
}

func pickDuration(base, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return base
}

// Validate reports settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	driver := strings.ToLower(c.Database.Driver)
	switch driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, errors.New("database.driver must be sqlite, postgres or memory"))
	}
	if driver != "memory" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	for _, site := range c.Sites {
		if site.Name == "" || site.Crawler == "" {
			errs = append(errs, errors.New("every site needs a name and a crawler"))
			break
		}
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:newsscanner.db?_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Crawl: CrawlConfig{
			Concurrency:       8,
			IngestConcurrency: 8,
			UserAgent:         defaultUserAgent,
			FetchTimeout:      30 * time.Second,
		},
		Resolver: ResolverConfig{BaseURL: "https://news.google.com", Timeout: 15 * time.Second},
		Scraper: ScraperConfig{
			Concurrency:      4,
			PageTimeout:      20 * time.Second,
			BatchSize:        100,
			MinWords:         20,
			MaxDepth:         3,
			ExcludedClasses:  []string{"ad", "ads", "advert", "sponsored", "promo", "sidebar", "footer", "social", "share", "newsletter", "cookie"},
			ExcludedKeywords: []string{"advertisement", "subscribe", "click here"},
		},
		LLM: LLMConfig{
			SummaryMaxTokens:  100,
			RequestsPerSecond: 2,
			Timeout:           60 * time.Second,
		},
		Enrichment: EnrichmentConfig{Concurrency: 4, BatchSize: 100, MaxThemes: 10},
		Server:     ServerConfig{Addr: ":8080"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		Sites: []SiteConfig{
			{
				Name:    "housing-feeds",
				Crawler: "rss",
				Feeds: []FeedConfig{
					{Name: "Canadian Mortgage Trends", URL: "https://www.canadianmortgagetrends.com/feed/"},
				},
			},
			{
				Name:      "housing-search",
				Crawler:   "gnews",
				Queries:   []string{"middle housing", "accessory dwelling units"},
				Locations: []string{"Ontario"},
				Options: map[string]string{
					"endpoint": googleNewsSearchURL,
					"hl":       "en",
					"gl":       "CA",
					"ceid":     "CA:en",
				},
			},
		},
	}
}
