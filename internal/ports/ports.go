package ports

import (
	"context"
	"errors"
	"time"

	"NewsScanner/internal/domain"
)

var (
	// ErrDuplicate is returned by Insert when the canonical URL is already stored.
	ErrDuplicate = errors.New("item with this canonical url already exists")
	// ErrNotFound is returned when an item id does not exist.
	ErrNotFound = errors.New("item not found")
)

// ItemRepository is the narrow persistence contract the pipeline depends on.
type ItemRepository interface {
	// FindByCanonicalURL returns nil, nil when no item has the url.
	FindByCanonicalURL(ctx context.Context, url string) (*domain.Item, error)
	Insert(ctx context.Context, item domain.Item) (domain.Item, error)
	// Update writes only fields when given, otherwise every mutable field.
	Update(ctx context.Context, id int64, item domain.Item, fields ...domain.Field) (domain.Item, error)
	Select(ctx context.Context, query domain.Query) ([]domain.Item, error)
	Delete(ctx context.Context, id int64) error
}

// Pinger is implemented by repositories that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EntrySource yields the raw entries of every configured site.
type EntrySource interface {
	FetchEntries(ctx context.Context, now time.Time) ([]domain.RawEntry, error)
}

// URLResolver unwraps redirect-wrapped links. It never fails: on any problem
// it returns the input unchanged.
type URLResolver interface {
	Resolve(ctx context.Context, url string) string
}

// PageFetcher retrieves a page for content extraction.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// TextExtractor turns a fetched page into clean article text.
type TextExtractor interface {
	Extract(page domain.Page) (string, error)
}

// CompletionClient talks to a text-completion service (OpenAI-compatible).
type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Enricher produces generated fields. ok is false on any failure.
type Enricher interface {
	AssignCategory(ctx context.Context, text string) (domain.Category, bool)
	GenerateSummary(ctx context.Context, text string) (string, bool)
}

// ThemeGrouper clusters enriched items into named themes for the digest.
// It never fails; an empty result means no grouping.
type ThemeGrouper interface {
	Group(ctx context.Context, items []domain.Item) []domain.Theme
}

// Notifier streams digests of enriched items to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
