// Package workerpool runs a function over a slice with bounded concurrency.
package workerpool

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 4

// Run calls fn for every item with at most limit calls in flight and returns
// the results in input order. fn reports per-item failure through ok; a
// failed item leaves the zero value in its slot and does not stop the others.
// Items not yet started when ctx is cancelled are skipped. A panicking call
// counts as a failed item.
func Run[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, bool)) ([]R, []bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	done := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					var zero R
					results[i], done[i] = zero, false
					slog.Error("worker panicked", "index", i, "panic", r)
				}
			}()
			if gctx.Err() != nil {
				return nil
			}
			res, ok := fn(gctx, item)
			results[i] = res
			done[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	return results, done
}

// Each calls fn for every item with bounded concurrency and no result.
func Each[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T)) {
	Run(ctx, limit, items, func(ctx context.Context, item T) (struct{}, bool) {
		fn(ctx, item)
		return struct{}{}, true
	})
}
