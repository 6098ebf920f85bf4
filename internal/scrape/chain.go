package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

// Chain dispatches each fetch to the fetcher matching the source's strategy.
// Dynamic sources fall back to the static fetcher when no browser fetcher is
// configured.
type Chain struct {
	static  Fetcher
	dynamic Fetcher

	warnOnce sync.Once
}

// NewChain creates a Chain. dynamic may be nil.
func NewChain(static, dynamic Fetcher) *Chain {
	return &Chain{static: static, dynamic: dynamic}
}

func (c *Chain) Name() string { return "chain" }

// Fetch routes to the dynamic fetcher for dynamic sources.
func (c *Chain) Fetch(ctx context.Context, url string, cfg model.ParserConfig) (string, error) {
	if cfg.Strategy == model.FetchDynamic {
		if c.dynamic != nil {
			return c.dynamic.Fetch(ctx, url, cfg)
		}
		c.warnOnce.Do(func() {
			zap.L().Warn("scrape: no browser configured, fetching dynamic sources statically")
		})
	}
	return c.static.Fetch(ctx, url, cfg)
}
