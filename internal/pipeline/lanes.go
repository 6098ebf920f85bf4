package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/registry"
	"github.com/tangocommunity/crawler/internal/scrape"
	"github.com/tangocommunity/crawler/internal/store"
)

// Lane is one independently scheduled crawl task.
type Lane interface {
	Name() model.Lane
	// Run processes the lane once. Only setup failures are returned; per
	// source problems are reported in the summary.
	Run(ctx context.Context) (*model.RunSummary, error)
}

// runSources crawls sources sequentially with a pause between them. It stops
// starting new sources once ctx is done.
func runSources[T model.Record](ctx context.Context, crawler *SourceCrawler[T], sources []model.CrawlSource, delay time.Duration, rec Recorder) *model.RunSummary {
	start := time.Now()
	summary := model.NewRunSummary(crawler.Lane)
	pacer := scrape.NewPacer(delay)
	if rec == nil {
		rec = nopRecorder{}
	}

	for i, src := range sources {
		if err := pause(ctx, pacer, i); err != nil {
			zap.L().Info("pipeline: lane stopping before next source",
				zap.String("lane", string(crawler.Lane)), zap.String("source_id", src.ID))
			break
		}
		res := crawler.Crawl(ctx, src)
		rec.ObserveCrawl(res)
		summary.Add(res)
	}

	summary.Duration = time.Since(start)
	return summary
}

// pause waits on pacer before every unit but the first. The first unit only
// checks ctx.
func pause(ctx context.Context, pacer scrape.Pacer, i int) error {
	if i == 0 {
		return ctx.Err()
	}
	return pacer.Wait(ctx)
}

func logSummary(s *model.RunSummary) {
	zap.L().Info("pipeline: lane run complete",
		zap.String("lane", string(s.Lane)),
		zap.Int("sources", s.Sources),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("found", s.Found),
		zap.Int("created", s.Created),
		zap.Int("updated", s.Updated),
		zap.Int("skipped", s.Skipped),
		zap.Int("errors", s.Errors),
		zap.Duration("duration", s.Duration),
	)
}

// EventLane crawls the event sources listed in the database.
type EventLane struct {
	Registry registry.Registry
	Crawler  *SourceCrawler[model.ExtractedEvent]
	Delay    time.Duration
	Recorder Recorder
}

func (l *EventLane) Name() model.Lane { return model.LaneEvents }

func (l *EventLane) Run(ctx context.Context) (*model.RunSummary, error) {
	sources, err := l.Registry.ActiveSources(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list event sources")
	}
	if len(sources) == 0 {
		zap.L().Warn("pipeline: no active event sources")
	}
	summary := runSources(ctx, l.Crawler, sources, l.Delay, l.Recorder)
	logSummary(summary)
	return summary, nil
}

// ProductLane crawls affiliate shops and then retires expired deals.
type ProductLane struct {
	Registry registry.Registry
	Crawler  *SourceCrawler[model.ExtractedProduct]
	Store    store.ProductStore
	Delay    time.Duration
	Recorder Recorder
}

func (l *ProductLane) Name() model.Lane { return model.LaneProducts }

func (l *ProductLane) Run(ctx context.Context) (*model.RunSummary, error) {
	sources, err := l.Registry.ActiveSources(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list product sources")
	}
	if len(sources) == 0 {
		zap.L().Warn("pipeline: no active product sources")
	}
	summary := runSources(ctx, l.Crawler, sources, l.Delay, l.Recorder)

	hctx := context.WithoutCancel(ctx)
	if n, err := l.Store.DeactivateExpiredDeals(hctx); err != nil {
		zap.L().Error("pipeline: deactivate expired deals failed", zap.Error(err))
	} else {
		zap.L().Info("pipeline: expired deals deactivated", zap.Int64("deactivated", n))
	}
	if n, err := l.Store.ActiveDealsCount(hctx); err != nil {
		zap.L().Warn("pipeline: count active deals failed", zap.Error(err))
	} else {
		zap.L().Info("pipeline: active deals", zap.Int64("active_deals", n))
	}

	logSummary(summary)
	return summary, nil
}

// NewEventCrawler wires a SourceCrawler for events backed by st.
func NewEventCrawler(pages PageFetcher, ext Extractor[model.ExtractedEvent], st store.EventStore, minConfidence float64) *SourceCrawler[model.ExtractedEvent] {
	return &SourceCrawler[model.ExtractedEvent]{
		Lane:      model.LaneEvents,
		Pages:     pages,
		Extractor: func(model.CrawlSource) Extractor[model.ExtractedEvent] { return ext },
		Persist: func(ctx context.Context, ev model.ExtractedEvent, page scrape.Page, src model.CrawlSource) (model.Outcome, error) {
			return st.UpsertEvent(ctx, ev, EventSourceURL(page.URL, ev), src.ID)
		},
		MinConfidence: minConfidence,
		Logs:          st,
	}
}

// NewProductCrawler wires a SourceCrawler for product deals. Product sources
// are not rows in crawl_sources, so no crawl logs are written.
func NewProductCrawler(pages PageFetcher, ext func(model.CrawlSource) Extractor[model.ExtractedProduct], st store.ProductStore, minConfidence float64) *SourceCrawler[model.ExtractedProduct] {
	return &SourceCrawler[model.ExtractedProduct]{
		Lane:      model.LaneProducts,
		Pages:     pages,
		Extractor: ext,
		Persist: func(ctx context.Context, p model.ExtractedProduct, _ scrape.Page, _ model.CrawlSource) (model.Outcome, error) {
			return st.UpsertProductDeal(ctx, p)
		},
		MinConfidence: minConfidence,
	}
}
