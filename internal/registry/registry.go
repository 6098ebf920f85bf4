// Package registry provides the active crawl sources of each lane.
package registry

import (
	"context"
	"slices"
	"time"

	"github.com/tangocommunity/crawler/internal/model"
)

// Registry lists the sources a lane should crawl.
type Registry interface {
	ActiveSources(ctx context.Context) ([]model.CrawlSource, error)
}

// Filter narrows a source list.
type Filter struct {
	// IDs keeps only the named sources when non-empty.
	IDs []string
	// DueOnly drops sources whose frequency interval has not elapsed at Now.
	DueOnly bool
	Now     time.Time
}

// Apply returns the sources matching f, preserving order.
func (f Filter) Apply(sources []model.CrawlSource) []model.CrawlSource {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	out := make([]model.CrawlSource, 0, len(sources))
	for _, s := range sources {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, s.ID) {
			continue
		}
		if f.DueOnly && !s.Due(now) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Filtered wraps a registry and applies a filter to every listing.
type Filtered struct {
	Registry Registry
	Filter   Filter
}

// ActiveSources lists the wrapped registry's sources and filters them.
func (f Filtered) ActiveSources(ctx context.Context) ([]model.CrawlSource, error) {
	sources, err := f.Registry.ActiveSources(ctx)
	if err != nil {
		return nil, err
	}
	return f.Filter.Apply(sources), nil
}
