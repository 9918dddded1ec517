// Package resolver unwraps aggregator links into publisher URLs.
package resolver

import (
	"context"

	"NewsScanner/internal/ports"
)

// Func adapts a plain function to ports.URLResolver.
type Func func(ctx context.Context, url string) string

var _ ports.URLResolver = Func(nil)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, url string) string {
	return f(ctx, url)
}

// Identity returns every URL unchanged.
var Identity = Func(func(_ context.Context, url string) string { return url })

// Chain applies resolvers in order; each receives the previous output.
type Chain []ports.URLResolver

var _ ports.URLResolver = Chain(nil)

// Resolve runs the chain. Empty results are ignored so a misbehaving link in
// the chain cannot erase the URL.
func (c Chain) Resolve(ctx context.Context, url string) string {
	current := url
	for _, r := range c {
		if r == nil {
			continue
		}
		if next := r.Resolve(ctx, current); next != "" {
			current = next
		}
	}
	return current
}
