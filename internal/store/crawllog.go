package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/tangocommunity/crawler/internal/model"
)

// CreateCrawlLog opens a running crawl log for sourceID and returns its ID.
func (s *PostgresStore) CreateCrawlLog(ctx context.Context, sourceID string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_logs (id, crawl_source_id, status, started_at)
		 VALUES ($1, $2, 'running', now())`,
		id, sourceID,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: create crawl log for %s", sourceID)
	}
	return id, nil
}

// FinalizeCrawlLog records the terminal status and counters of a crawl.
// An empty error transcript is stored as NULL.
func (s *PostgresStore) FinalizeCrawlLog(ctx context.Context, id string, log model.CrawlLog) error {
	var errorLog *string
	if log.ErrorLog != "" {
		errorLog = &log.ErrorLog
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE crawl_logs
		 SET status = $1, completed_at = now(), events_found = $2,
		     events_created = $3, events_updated = $4, error_log = $5
		 WHERE id = $6`,
		string(log.Status), log.Found, log.Created, log.Updated, errorLog, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize crawl log %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: crawl log not found: %s", id)
	}
	return nil
}

// TouchSource stamps last_crawled_at on a source.
func (s *PostgresStore) TouchSource(ctx context.Context, sourceID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE crawl_sources SET last_crawled_at = now() WHERE id = $1`, sourceID)
	return eris.Wrapf(err, "postgres: touch source %s", sourceID)
}
