package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

// Querier is the subset of a pgx pool the registry needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DBRegistry reads event sources from the crawl_sources table.
type DBRegistry struct {
	db Querier
}

// NewDBRegistry creates a DBRegistry.
func NewDBRegistry(db Querier) *DBRegistry {
	return &DBRegistry{db: db}
}

// ActiveSources returns active sources, least recently crawled first.
// Rows with an unreadable parser_config are skipped with a warning.
func (r *DBRegistry) ActiveSources(ctx context.Context) ([]model.CrawlSource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, base_url, crawl_frequency, last_crawled_at, is_active, parser_config
		 FROM crawl_sources
		 WHERE is_active = TRUE
		 ORDER BY last_crawled_at ASC NULLS FIRST`)
	if err != nil {
		return nil, eris.Wrap(err, "registry: query crawl sources")
	}
	defer rows.Close()

	var sources []model.CrawlSource
	for rows.Next() {
		var (
			s         model.CrawlSource
			frequency string
			last      *time.Time
			rawConfig []byte
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.BaseURL, &frequency, &last, &s.Active, &rawConfig); err != nil {
			return nil, eris.Wrap(err, "registry: scan crawl source")
		}
		s.Frequency = model.Frequency(frequency)
		s.LastCrawledAt = last

		if len(rawConfig) > 0 {
			if err := json.Unmarshal(rawConfig, &s.ParserConfig); err != nil {
				zap.L().Warn("registry: skipping source with invalid parser_config",
					zap.String("source_id", s.ID), zap.Error(err))
				continue
			}
		} else {
			s.ParserConfig.Strategy = model.FetchStatic
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "registry: iterate crawl sources")
	}
	return sources, nil
}
