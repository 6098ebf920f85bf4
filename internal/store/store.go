// Package store reconciles extracted records against Postgres and persists
// them along with crawl logs.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tangocommunity/crawler/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// CrawlLogger records crawl attempts for a source.
type CrawlLogger interface {
	CreateCrawlLog(ctx context.Context, sourceID string) (string, error)
	FinalizeCrawlLog(ctx context.Context, id string, log model.CrawlLog) error
	TouchSource(ctx context.Context, sourceID string) error
}

// EventStore persists events.
type EventStore interface {
	CrawlLogger
	UpsertEvent(ctx context.Context, ev model.ExtractedEvent, sourceURL, sourceID string) (model.Outcome, error)
}

// ProductStore persists affiliate product deals.
type ProductStore interface {
	CrawlLogger
	UpsertProductDeal(ctx context.Context, p model.ExtractedProduct) (model.Outcome, error)
	DeactivateExpiredDeals(ctx context.Context) (int64, error)
	ActiveDealsCount(ctx context.Context) (int64, error)
}

// HotelStore persists hotel affiliates for events.
type HotelStore interface {
	EventsWithoutHotels(ctx context.Context, limit int) ([]model.EventForEnrichment, error)
	UpsertHotelAffiliate(ctx context.Context, h model.ExtractedHotel, eventID string) (model.Outcome, error)
}

// Store is the full persistence surface used by the crawler.
type Store interface {
	EventStore
	ProductStore
	HotelStore
	Ping(ctx context.Context) error
	Close()
}
