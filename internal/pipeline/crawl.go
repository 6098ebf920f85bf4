// Package pipeline runs the per-source crawl procedure and the three crawl
// lanes built on it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/extract"
	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/resilience"
	"github.com/tangocommunity/crawler/internal/scrape"
	"github.com/tangocommunity/crawler/internal/store"
)

// PageFetcher returns the listing pages of a source.
type PageFetcher interface {
	FetchPages(ctx context.Context, src model.CrawlSource) ([]scrape.Page, error)
}

// Extractor turns page text into records.
type Extractor[T model.Record] interface {
	Extract(ctx context.Context, text string, src extract.SourceContext) ([]T, error)
}

// PersistFunc reconciles one record found on page of src.
type PersistFunc[T model.Record] func(ctx context.Context, rec T, page scrape.Page, src model.CrawlSource) (model.Outcome, error)

// Recorder observes finished crawl units. monitoring.Metrics implements it.
type Recorder interface {
	ObserveCrawl(res model.CrawlResult)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCrawl(model.CrawlResult) {}

// SourceCrawler runs fetch, extract, confidence gate and reconcile for one
// source at a time. Events and products share it.
type SourceCrawler[T model.Record] struct {
	Lane  model.Lane
	Pages PageFetcher
	// Extractor builds the extractor for a source.
	Extractor     func(src model.CrawlSource) Extractor[T]
	Persist       PersistFunc[T]
	MinConfidence float64
	// Logs records crawl logs and last-crawled stamps. Nil disables both,
	// for sources that have no crawl_sources row.
	Logs store.CrawlLogger
}

// Crawl processes src and always returns a result. Per-record failures are
// recorded and the loop continues; a fetch failure with no pages, or a panic,
// marks the whole crawl failed.
func (c *SourceCrawler[T]) Crawl(ctx context.Context, src model.CrawlSource) (res model.CrawlResult) {
	start := time.Now()
	res = model.CrawlResult{Lane: c.Lane, SourceID: src.ID, SourceName: src.Name}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("lane", string(c.Lane)),
		zap.String("source_id", src.ID),
	)
	log.Info("pipeline: starting source crawl", zap.String("url", src.BaseURL))

	var logID string
	if c.Logs != nil {
		id, err := c.Logs.CreateCrawlLog(ctx, src.ID)
		if err != nil {
			log.Error("pipeline: create crawl log failed", zap.Error(err))
			res.Failed = true
			res.AddError("create crawl log: %v", err)
			res.Duration = time.Since(start)
			return res
		}
		logID = id
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: source crawl panicked", zap.Any("panic", r))
			res.Failed = true
			res.AddError("panic: %v", r)
		}
		res.Duration = time.Since(start)
		c.finish(ctx, log, logID, src, &res)
	}()

	pages, err := c.Pages.FetchPages(ctx, src)
	if err != nil {
		log.Warn("pipeline: fetch failed", zap.Int("pages_fetched", len(pages)), zap.Error(err))
		res.AddError("fetch: %s", resilience.Tag(err))
		if len(pages) == 0 {
			res.Failed = true
			return res
		}
	}

	extractor := c.Extractor(src)
	for _, page := range pages {
		records, err := extractor.Extract(ctx, page.Text, extract.SourceContext{
			SourceID: src.ID,
			URL:      page.URL,
			Language: src.ParserConfig.Language,
		})
		if err != nil {
			log.Error("pipeline: extraction failed", zap.Int("page", page.Number), zap.Error(err))
			res.AddError("extract page %d: %v", page.Number, err)
			continue
		}
		res.Found += len(records)

		kept, low := extract.FilterByConfidence(records, c.MinConfidence)
		res.LowConfidence += len(low)
		for _, rec := range low {
			log.Info("pipeline: low confidence record skipped",
				zap.String("title", rec.Label()), zap.Float64("confidence", rec.Score()))
		}

		for _, rec := range kept {
			outcome, err := c.Persist(ctx, rec, page, src)
			if err != nil {
				log.Error("pipeline: upsert failed", zap.String("title", rec.Label()), zap.Error(err))
				res.AddError("upsert %q: %v", rec.Label(), err)
				continue
			}
			res.Record(outcome)
		}
	}
	return res
}

func (c *SourceCrawler[T]) finish(ctx context.Context, log *zap.Logger, logID string, src model.CrawlSource, res *model.CrawlResult) {
	log.Info("pipeline: source crawl complete",
		zap.String("status", string(res.Status())),
		zap.Int("found", res.Found),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("low_confidence", res.LowConfidence),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", res.Duration),
	)
	if c.Logs == nil {
		return
	}

	// Bookkeeping must land even when the run context is being cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := c.Logs.FinalizeCrawlLog(ctx, logID, model.CrawlLog{
		ID:       logID,
		SourceID: src.ID,
		Status:   res.Status(),
		Found:    res.Found,
		Created:  res.Created,
		Updated:  res.Updated,
		ErrorLog: strings.Join(res.Errors, "\n"),
	}); err != nil {
		log.Error("pipeline: finalize crawl log failed", zap.Error(err))
	}
	if res.Failed {
		return
	}
	if err := c.Logs.TouchSource(ctx, src.ID); err != nil {
		log.Warn("pipeline: update last crawled failed", zap.Error(err))
	}
}

// EventSourceURL derives the canonical URL of an event found on pageURL.
// Listing pages carry many events, so the page URL is qualified with a
// fragment built from the title and start date.
func EventSourceURL(pageURL string, ev model.ExtractedEvent) string {
	day := ev.StartDatetime
	if t, err := ev.StartTime(); err == nil {
		day = t.Format("2006-01-02")
	}
	base, _, _ := strings.Cut(pageURL, "#")
	return fmt.Sprintf("%s#%s-%s", base, slugify(ev.Title), day)
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
