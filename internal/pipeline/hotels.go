package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/extract"
	"github.com/tangocommunity/crawler/internal/geo"
	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/resilience"
	"github.com/tangocommunity/crawler/internal/scrape"
	"github.com/tangocommunity/crawler/internal/store"
	"github.com/tangocommunity/crawler/pkg/anthropic"
)

// HotelProviders are searched in this order for every event.
var HotelProviders = []model.AffiliateProvider{model.ProviderBooking, model.ProviderAgoda}

// SearchLinker builds provider search pages for an event.
type SearchLinker interface {
	SearchURL(provider model.AffiliateProvider, query string, checkIn time.Time) string
}

// HotelLane finds hotels near persisted events that have none yet.
type HotelLane struct {
	Store     store.HotelStore
	Completer anthropic.Completer
	Fetcher   scrape.Fetcher
	Links     SearchLinker
	// Extractor builds the hotel extractor for one provider search of ev.
	Extractor     func(provider model.AffiliateProvider, ev model.EventForEnrichment) Extractor[model.ExtractedHotel]
	MinConfidence float64
	MaxHotels     int
	EventLimit    int
	Delay         time.Duration
	Recorder      Recorder
}

// HotelLaneOptions configures NewHotelLane.
type HotelLaneOptions struct {
	MaxTokens     int64
	MinConfidence float64
	MaxHotels     int
	EventLimit    int
	Delay         time.Duration
}

// HotelLinks is what the hotel lane needs from the affiliate builder.
type HotelLinks interface {
	extract.LinkBuilder
	SearchLinker
}

// NewHotelLane wires a HotelLane whose extractors are AI engines over
// HotelDomain.
func NewHotelLane(st store.HotelStore, completer anthropic.Completer, fetcher scrape.Fetcher, links HotelLinks, opts HotelLaneOptions) *HotelLane {
	return &HotelLane{
		Store:     st,
		Completer: completer,
		Fetcher:   fetcher,
		Links:     links,
		Extractor: func(provider model.AffiliateProvider, ev model.EventForEnrichment) Extractor[model.ExtractedHotel] {
			return extract.NewEngine[model.ExtractedHotel](completer, extract.HotelDomain{
				Provider:  provider,
				Event:     ev,
				MaxHotels: opts.MaxHotels,
				Links:     links,
			}, opts.MaxTokens)
		},
		MinConfidence: opts.MinConfidence,
		MaxHotels:     opts.MaxHotels,
		EventLimit:    opts.EventLimit,
		Delay:         opts.Delay,
	}
}

func (l *HotelLane) Name() model.Lane { return model.LaneHotels }

// Run enriches up to EventLimit events. Listing the events is the only
// setup step that can fail the run.
func (l *HotelLane) Run(ctx context.Context) (*model.RunSummary, error) {
	start := time.Now()
	events, err := l.Store.EventsWithoutHotels(ctx, l.EventLimit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list events without hotels")
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("lane", string(model.LaneHotels)))
	log.Info("pipeline: events loaded for hotel enrichment", zap.Int("events", len(events)))

	rec := l.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	summary := model.NewRunSummary(model.LaneHotels)
	// Each event costs two provider searches, so events are spaced twice as far apart.
	eventPacer := scrape.NewPacer(2 * l.Delay)
	for i, ev := range events {
		if err := pause(ctx, eventPacer, i); err != nil {
			log.Info("pipeline: lane stopping before next event", zap.String("event_id", ev.ID))
			break
		}
		res := l.enrich(ctx, ev)
		rec.ObserveCrawl(res)
		summary.Add(res)
	}

	summary.Duration = time.Since(start)
	logSummary(summary)
	return summary, nil
}

func (l *HotelLane) enrich(ctx context.Context, ev model.EventForEnrichment) (res model.CrawlResult) {
	start := time.Now()
	res = model.CrawlResult{Lane: model.LaneHotels, SourceID: ev.ID, SourceName: ev.Title}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("lane", string(model.LaneHotels)),
		zap.String("event_id", ev.ID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: hotel enrichment panicked", zap.Any("panic", r))
			res.AddError("panic: %v", r)
		}
		// An event fails only when nothing could be stored for it.
		res.Failed = len(res.Errors) > 0 && res.Written() == 0
		res.Duration = time.Since(start)
		log.Info("pipeline: hotel enrichment complete",
			zap.Int("found", res.Found),
			zap.Int("upserted", res.Written()),
			zap.Int("errors", len(res.Errors)),
			zap.Duration("duration", res.Duration),
		)
	}()

	query := extract.HotelSearchQuery(ctx, l.Completer, ev)
	log.Debug("pipeline: hotel search query", zap.String("query", query))

	pacer := scrape.NewPacer(l.Delay)
	for i, provider := range HotelProviders {
		if err := pause(ctx, pacer, i); err != nil {
			res.AddError("%s: %v", provider, err)
			return res
		}

		searchURL := l.Links.SearchURL(provider, query, ev.StartDatetime)
		text, err := l.Fetcher.Fetch(ctx, searchURL, model.ParserConfig{Strategy: model.FetchDynamic})
		if err != nil {
			log.Warn("pipeline: hotel search fetch failed", zap.String("provider", string(provider)), zap.Error(err))
			res.AddError("%s search: %s", provider, resilience.Tag(err))
			continue
		}

		hotels, err := l.Extractor(provider, ev).Extract(ctx, text, extract.SourceContext{SourceID: ev.ID, URL: searchURL})
		if err != nil {
			log.Warn("pipeline: hotel extraction failed", zap.String("provider", string(provider)), zap.Error(err))
			res.AddError("%s extract: %v", provider, err)
			continue
		}
		if l.MaxHotels > 0 && len(hotels) > l.MaxHotels {
			hotels = hotels[:l.MaxHotels]
		}
		res.Found += len(hotels)

		kept, low := extract.FilterByConfidence(hotels, l.MinConfidence)
		res.LowConfidence += len(low)
		for _, h := range kept {
			geo.Annotate(&h, ev.Latitude, ev.Longitude)
			outcome, err := l.Store.UpsertHotelAffiliate(ctx, h, ev.ID)
			if err != nil {
				log.Error("pipeline: hotel upsert failed", zap.String("hotel", h.HotelName), zap.Error(err))
				res.AddError("upsert %q: %v", h.HotelName, err)
				continue
			}
			res.Record(outcome)
		}
	}
	return res
}
