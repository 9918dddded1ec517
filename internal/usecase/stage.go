// Package usecase drives the ingest, scrape and enrich stages against the
// item repository.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// ErrStageBusy is returned when a stage is triggered while a previous run of
// the same stage is still in progress in this process.
var ErrStageBusy = errors.New("stage is already running")

// Stage is a single idempotent "run now" operation returning affected ids.
type Stage interface {
	Name() string
	Run(ctx context.Context) ([]int64, error)
}

type stageLock struct {
	mu sync.Mutex
}

func (l *stageLock) acquire(stage string) (func(), error) {
	if !l.mu.TryLock() {
		return nil, fmt.Errorf("%s: %w", stage, ErrStageBusy)
	}
	return l.mu.Unlock, nil
}

func runLogger(base *slog.Logger, stage string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("stage", stage, "run_id", uuid.NewString())
}

func getItem(ctx context.Context, repo ports.ItemRepository, id int64) (domain.Item, error) {
	items, err := repo.Select(ctx, domain.Query{
		Filters:  []domain.Filter{domain.Eq(domain.FieldID, id)},
		PageSize: 1,
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("load item %d: %w", id, err)
	}
	if len(items) == 0 {
		return domain.Item{}, ports.ErrNotFound
	}
	return items[0], nil
}

func collectIDs(items []domain.Item, ok []bool) []int64 {
	ids := make([]int64, 0, len(items))
	for i, item := range items {
		if ok[i] {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
