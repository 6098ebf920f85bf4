package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

// UpsertEvent reconciles ev against existing events inside one transaction.
// An event with the same source URL is updated. Otherwise an existing event
// in the same city on the same day with a similar title makes ev a skipped
// duplicate. Anything else is inserted.
func (s *PostgresStore) UpsertEvent(ctx context.Context, ev model.ExtractedEvent, sourceURL, sourceID string) (model.Outcome, error) {
	start, err := ev.StartTime()
	if err != nil {
		return "", eris.Wrap(err, "postgres: event start")
	}
	end, err := ev.EndTime()
	if err != nil {
		end = nil
	}
	images, err := json.Marshal(nonNil(ev.ImageURLs))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal image urls")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin upsert event")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existingID string
	err = tx.QueryRow(ctx, `SELECT id FROM events WHERE source_url = $1`, sourceURL).Scan(&existingID)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE events SET
			   title = $1, description = $2, event_type = $3,
			   venue_name = $4, address = $5, city = $6, country_code = $7,
			   latitude = $8, longitude = $9,
			   start_datetime = $10, end_datetime = $11,
			   recurrence_rule = $12, organizer_name = $13,
			   price_info = $14, currency = $15, image_urls = $16,
			   updated_at = now()
			 WHERE id = $17`,
			ev.Title, ev.Description, string(ev.EventType),
			ev.VenueName, ev.Address, ev.City, ev.CountryCode,
			ev.Latitude, ev.Longitude,
			start, end,
			ev.RecurrenceRule, ev.OrganizerName,
			ev.PriceInfo, ev.Currency, images,
			existingID,
		); err != nil {
			return "", eris.Wrap(err, "postgres: update event")
		}
		if err := tx.Commit(ctx); err != nil {
			return "", eris.Wrap(err, "postgres: commit event update")
		}
		return model.OutcomeUpdated, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return "", eris.Wrap(err, "postgres: lookup event by source url")
	}

	dup, err := s.fuzzyDuplicate(ctx, tx, ev, start)
	if err != nil {
		return "", err
	}
	if dup {
		zap.L().Debug("postgres: fuzzy duplicate event skipped",
			zap.String("title", ev.Title), zap.String("city", ev.City))
		return model.OutcomeSkipped, nil
	}

	// A concurrent crawl can insert the same source URL after the lookup; the
	// conflict branch then refreshes every mutable column and xmax tells the
	// two cases apart.
	var inserted bool
	if err := tx.QueryRow(ctx,
		`INSERT INTO events (
		   title, description, event_type,
		   venue_name, address, city, country_code,
		   latitude, longitude,
		   start_datetime, end_datetime,
		   recurrence_rule, source_url, crawl_source_id,
		   organizer_name, price_info, currency, image_urls
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (source_url) DO UPDATE SET
		   title = EXCLUDED.title, description = EXCLUDED.description,
		   event_type = EXCLUDED.event_type,
		   venue_name = EXCLUDED.venue_name, address = EXCLUDED.address,
		   city = EXCLUDED.city, country_code = EXCLUDED.country_code,
		   latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
		   start_datetime = EXCLUDED.start_datetime, end_datetime = EXCLUDED.end_datetime,
		   recurrence_rule = EXCLUDED.recurrence_rule,
		   organizer_name = EXCLUDED.organizer_name, price_info = EXCLUDED.price_info,
		   currency = EXCLUDED.currency, image_urls = EXCLUDED.image_urls,
		   updated_at = now()
		 RETURNING (xmax = 0)`,
		ev.Title, ev.Description, string(ev.EventType),
		ev.VenueName, ev.Address, ev.City, ev.CountryCode,
		ev.Latitude, ev.Longitude,
		start, end,
		ev.RecurrenceRule, sourceURL, sourceID,
		ev.OrganizerName, ev.PriceInfo, ev.Currency, images,
	).Scan(&inserted); err != nil {
		return "", eris.Wrap(err, "postgres: insert event")
	}
	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit event insert")
	}
	if !inserted {
		return model.OutcomeUpdated, nil
	}
	return model.OutcomeCreated, nil
}

// fuzzyDuplicate runs the similarity check inside a savepoint. When the
// trigram extension is unavailable the savepoint is rolled back and the
// check reports no match so the transaction stays usable.
func (s *PostgresStore) fuzzyDuplicate(ctx context.Context, tx pgx.Tx, ev model.ExtractedEvent, start time.Time) (bool, error) {
	if _, err := tx.Exec(ctx, `SAVEPOINT fuzzy_check`); err != nil {
		return false, eris.Wrap(err, "postgres: savepoint fuzzy check")
	}

	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM events
		 WHERE city ILIKE $1
		   AND start_datetime::date = $2::date
		   AND similarity(title, $3) > $4
		 LIMIT 1`,
		ev.City, start, ev.Title, s.fuzzyThreshold,
	).Scan(&id)

	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `RELEASE SAVEPOINT fuzzy_check`); err != nil {
			return false, eris.Wrap(err, "postgres: release fuzzy check")
		}
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `RELEASE SAVEPOINT fuzzy_check`); err != nil {
			return false, eris.Wrap(err, "postgres: release fuzzy check")
		}
		return false, nil
	default:
		zap.L().Warn("postgres: fuzzy duplicate check unavailable", zap.Error(err))
		if _, err := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT fuzzy_check`); err != nil {
			return false, eris.Wrap(err, "postgres: rollback fuzzy check")
		}
		return false, nil
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
