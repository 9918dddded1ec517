package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/infrastructure/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	entries []domain.RawEntry
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSource) FetchEntries(ctx context.Context, _ time.Time) ([]domain.RawEntry, error) {
	if f.started != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.entries, f.err
}

// flakyRepo wraps the memory repository to inject failures.
type flakyRepo struct {
	*storage.MemoryRepository
	pingErr    error
	lookupErr  map[string]error
	hideLookup bool
}

func (r *flakyRepo) Ping(ctx context.Context) error {
	if r.pingErr != nil {
		return r.pingErr
	}
	return r.MemoryRepository.Ping(ctx)
}

func (r *flakyRepo) FindByCanonicalURL(ctx context.Context, url string) (*domain.Item, error) {
	if err := r.lookupErr[url]; err != nil {
		return nil, err
	}
	if r.hideLookup {
		return nil, nil
	}
	return r.MemoryRepository.FindByCanonicalURL(ctx, url)
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Page, error) {
	if err := f.errs[url]; err != nil {
		return domain.Page{}, err
	}
	html, ok := f.pages[url]
	if !ok {
		return domain.Page{}, errors.New("404 Not Found")
	}
	return domain.Page{URL: url, HTML: html}, nil
}

// gatedFetcher signals started and waits for release before serving html.
type gatedFetcher struct {
	html    string
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	close(f.started)
	select {
	case <-f.release:
	case <-ctx.Done():
		return domain.Page{}, ctx.Err()
	}
	return domain.Page{URL: url, HTML: f.html}, nil
}

// passthroughExtractor returns the page body as article text.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(page domain.Page) (string, error) {
	return page.HTML, nil
}

type fakeEnricher struct {
	mu            sync.Mutex
	categories    map[string]domain.Category
	summaries     map[string]string
	categoryCalls int
	summaryCalls  int
}

func (f *fakeEnricher) AssignCategory(_ context.Context, text string) (domain.Category, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryCalls++
	c, ok := f.categories[text]
	return c, ok
}

func (f *fakeEnricher) GenerateSummary(_ context.Context, text string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	s, ok := f.summaries[text]
	return s, ok
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return f.err
}

// fakeGrouper puts every item into one theme, or none when empty is set.
type fakeGrouper struct {
	empty bool
	calls int
}

func (f *fakeGrouper) Group(_ context.Context, items []domain.Item) []domain.Theme {
	f.calls++
	if f.empty {
		return nil
	}
	return []domain.Theme{{Name: "Housing Supply", Summary: "Cities add homes.", Items: items}}
}

type fakeStage struct {
	name  string
	ids   []int64
	err   error
	calls int
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Run(context.Context) ([]int64, error) {
	f.calls++
	return f.ids, f.err
}

func entry(link, title string) domain.RawEntry {
	return domain.RawEntry{
		SourceType: domain.SourceSpecificFeed,
		SourceName: "Test Feed",
		Link:       link,
		Title:      title,
		Payload:    []byte(`{"link":"` + link + `"}`),
	}
}

func strPtr(s string) *string { return &s }
