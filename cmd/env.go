package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/affiliate"
	"github.com/tangocommunity/crawler/internal/browser"
	"github.com/tangocommunity/crawler/internal/config"
	"github.com/tangocommunity/crawler/internal/extract"
	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/monitoring"
	"github.com/tangocommunity/crawler/internal/pipeline"
	"github.com/tangocommunity/crawler/internal/registry"
	"github.com/tangocommunity/crawler/internal/scheduler"
	"github.com/tangocommunity/crawler/internal/scrape"
	"github.com/tangocommunity/crawler/internal/store"
	anthropicpkg "github.com/tangocommunity/crawler/pkg/anthropic"
)

// envOptions narrows what a command crawls.
type envOptions struct {
	SourceIDs []string
	// DueOnly skips event sources whose crawl frequency has not elapsed.
	DueOnly bool
}

// crawlEnv holds the shared resources and lanes used by run and schedule.
type crawlEnv struct {
	Store   *store.PostgresStore
	Browser *browser.Handle
	Metrics *monitoring.Metrics
	Lanes   map[model.Lane]pipeline.Lane
}

// initCrawlEnv connects to Postgres, prepares the fetchers and extractors
// and builds every lane. Callers must Close the env.
func initCrawlEnv(ctx context.Context, opts envOptions) (*crawlEnv, error) {
	if err := cfg.Validate("crawl"); err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.Database.DSN(), store.Options{
		MaxConns:       cfg.Database.MaxConns,
		FuzzyThreshold: cfg.Crawl.FuzzyThreshold,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	products, err := registry.ProductsFromFile(cfg.Registry.ProductsFile)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load product sources")
	}

	handle := browser.NewHandle(browser.Options{
		ExecPath:  cfg.Browser.ExecPath,
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Crawl.UserAgent,
	})
	env := &crawlEnv{
		Store:   st,
		Browser: handle,
		Metrics: monitoring.NewMetrics(),
	}
	env.Lanes = buildLanes(cfg, st, registry.NewDBRegistry(st.Pool()), products, handle, env.Metrics, opts)
	return env, nil
}

// buildLanes wires the three lanes from configuration.
func buildLanes(c *config.Config, st store.Store, events, products registry.Registry, handle *browser.Handle, rec pipeline.Recorder, opts envOptions) map[model.Lane]pipeline.Lane {
	static := scrape.NewStaticFetcher(scrape.StaticOptions{
		UserAgent: c.Crawl.UserAgent,
		Timeout:   c.Crawl.Timeout,
		MaxChars:  c.Crawl.MaxContentChars,
	})
	dynamic := browser.NewFetcher(handle, browser.FetcherOptions{
		Timeout:  c.Crawl.Timeout,
		MaxChars: c.Crawl.MaxContentChars,
	})
	fetcher := scrape.NewChain(static, dynamic)
	pages := scrape.NewPaginator(fetcher, scrape.NewPacer(c.Crawl.RequestDelay))

	client := anthropicpkg.NewClient(c.Anthropic.Key)
	links := affiliate.New(c.Affiliate)
	maxTokens := c.Anthropic.MaxTokens

	limiter := anthropicpkg.NewRequestLimiter(c.Anthropic.RequestsPerMinute)

	eventEngine := extract.NewEngine[model.ExtractedEvent](
		anthropicpkg.NewCompleter(client, c.Anthropic.Model, "events").WithLimiter(limiter), extract.EventDomain{}, maxTokens)
	productCompleter := anthropicpkg.NewCompleter(client, c.Anthropic.Model, "products").WithLimiter(limiter)
	hotelCompleter := anthropicpkg.NewCompleter(client, c.Anthropic.Model, "hotels").WithLimiter(limiter)

	filter := registry.Filter{IDs: opts.SourceIDs}
	eventFilter := filter
	eventFilter.DueOnly = opts.DueOnly

	return map[model.Lane]pipeline.Lane{
		model.LaneEvents: &pipeline.EventLane{
			Registry: registry.Filtered{Registry: events, Filter: eventFilter},
			Crawler:  pipeline.NewEventCrawler(pages, eventEngine, st, c.Crawl.MinConfidence),
			Delay:    c.Crawl.RequestDelay,
			Recorder: rec,
		},
		model.LaneProducts: &pipeline.ProductLane{
			Registry: registry.Filtered{Registry: products, Filter: filter},
			Crawler: pipeline.NewProductCrawler(pages, func(src model.CrawlSource) pipeline.Extractor[model.ExtractedProduct] {
				return extract.NewEngine[model.ExtractedProduct](productCompleter, extract.ProductDomain{Source: src, Links: links}, maxTokens)
			}, st, c.Crawl.MinConfidence),
			Store:    st,
			Delay:    c.Crawl.RequestDelay,
			Recorder: rec,
		},
		model.LaneHotels: withRecorder(pipeline.NewHotelLane(st, hotelCompleter, fetcher, links, pipeline.HotelLaneOptions{
			MaxTokens:     maxTokens,
			MinConfidence: c.Crawl.MinConfidence,
			MaxHotels:     c.Crawl.MaxHotelsPerProvider,
			EventLimit:    c.Crawl.HotelEventLimit,
			Delay:         c.Crawl.RequestDelay,
		}), rec),
	}
}

func withRecorder(l *pipeline.HotelLane, rec pipeline.Recorder) *pipeline.HotelLane {
	l.Recorder = rec
	return l
}

// selectLanes returns the lanes to run in full-cycle order. An empty name
// selects every lane.
func (e *crawlEnv) selectLanes(name string) ([]pipeline.Lane, error) {
	if name == "" {
		out := make([]pipeline.Lane, 0, len(model.AllLanes))
		for _, l := range model.AllLanes {
			out = append(out, e.Lanes[l])
		}
		return out, nil
	}
	lane, err := model.ParseLane(name)
	if err != nil {
		return nil, err
	}
	return []pipeline.Lane{e.Lanes[lane]}, nil
}

// closers releases the browser and the pool, in that order of urgency.
func (e *crawlEnv) closers() []scheduler.CloseFunc {
	return []scheduler.CloseFunc{
		e.Browser.Close,
		func(context.Context) error {
			e.Store.Close()
			return nil
		},
	}
}

// Close releases resources outside the scheduler's shutdown path.
func (e *crawlEnv) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Browser.Close(ctx); err != nil {
		zap.L().Warn("close browser", zap.Error(err))
	}
	e.Store.Close()
}
