package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/tangocommunity/crawler/internal/geo"
	"github.com/tangocommunity/crawler/internal/model"
)

// UpsertHotelAffiliate inserts or refreshes a hotel keyed by (event, name).
// The location column is written as an SRID 4326 point when coordinates are
// known, NULL otherwise.
func (s *PostgresStore) UpsertHotelAffiliate(ctx context.Context, h model.ExtractedHotel, eventID string) (model.Outcome, error) {
	var location []byte
	if h.HasCoordinates() {
		var err error
		location, err = geo.PointEWKB(*h.Latitude, *h.Longitude)
		if err != nil {
			return "", eris.Wrap(err, "postgres: encode hotel location")
		}
	}
	amenities, err := json.Marshal(nonNil(h.Amenities))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal amenities")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin upsert hotel")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM hotel_affiliates WHERE event_id = $1 AND hotel_name = $2 LIMIT 1`,
		eventID, h.HotelName,
	).Scan(&existingID)

	outcome := model.OutcomeUpdated
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE hotel_affiliates SET
			   hotel_address = $1, location = ST_GeomFromEWKB($2),
			   latitude = $3, longitude = $4, distance_from_event_meters = $5,
			   price_per_night_min = $6, currency = $7, rating = $8, review_count = $9,
			   affiliate_provider = $10, affiliate_url = $11, affiliate_id = $12,
			   image_url = $13, amenities = $14, updated_at = now()
			 WHERE id = $15`,
			h.HotelAddress, location,
			h.Latitude, h.Longitude, h.DistanceFromEventMeters,
			h.PricePerNightMin, h.Currency, h.Rating, h.ReviewCount,
			string(h.AffiliateProvider), h.AffiliateURL, h.AffiliateID,
			h.ImageURL, amenities, existingID,
		); err != nil {
			return "", eris.Wrap(err, "postgres: update hotel affiliate")
		}
	case errors.Is(err, pgx.ErrNoRows):
		outcome = model.OutcomeCreated
		if _, err := tx.Exec(ctx,
			`INSERT INTO hotel_affiliates (
			   event_id, hotel_name, hotel_address, location,
			   latitude, longitude, distance_from_event_meters,
			   price_per_night_min, currency, rating, review_count,
			   affiliate_provider, affiliate_url, affiliate_id, image_url, amenities
			 ) VALUES ($1,$2,$3,ST_GeomFromEWKB($4),$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			eventID, h.HotelName, h.HotelAddress, location,
			h.Latitude, h.Longitude, h.DistanceFromEventMeters,
			h.PricePerNightMin, h.Currency, h.Rating, h.ReviewCount,
			string(h.AffiliateProvider), h.AffiliateURL, h.AffiliateID, h.ImageURL, amenities,
		); err != nil {
			return "", eris.Wrap(err, "postgres: insert hotel affiliate")
		}
	default:
		return "", eris.Wrap(err, "postgres: lookup hotel affiliate")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit hotel affiliate")
	}
	return outcome, nil
}

// EventsWithoutHotels returns active events with coordinates and no hotel
// affiliates yet, soonest first.
func (s *PostgresStore) EventsWithoutHotels(ctx context.Context, limit int) ([]model.EventForEnrichment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.title, e.venue_name, e.address, e.city, e.country_code,
		        e.latitude, e.longitude, e.start_datetime
		 FROM events e
		 WHERE e.latitude IS NOT NULL
		   AND e.longitude IS NOT NULL
		   AND e.status = 'active'
		   AND NOT EXISTS (SELECT 1 FROM hotel_affiliates ha WHERE ha.event_id = e.id)
		 ORDER BY e.start_datetime ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query events without hotels")
	}
	defer rows.Close()

	var events []model.EventForEnrichment
	for rows.Next() {
		var ev model.EventForEnrichment
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.VenueName, &ev.Address, &ev.City,
			&ev.CountryCode, &ev.Latitude, &ev.Longitude, &ev.StartDatetime); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event for enrichment")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events without hotels")
}
