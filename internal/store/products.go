package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/tangocommunity/crawler/internal/model"
)

// UpsertProductDeal inserts or refreshes a deal keyed by its canonical source
// URL. A refresh updates prices, images, expiry and the affiliate link and
// re-activates the deal.
func (s *PostgresStore) UpsertProductDeal(ctx context.Context, p model.ExtractedProduct) (model.Outcome, error) {
	images, err := json.Marshal(nonNil(p.ImageURLs))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal image urls")
	}
	affiliateURL := p.AffiliateURL
	if affiliateURL == "" {
		affiliateURL = p.SourceURL
	}
	expires := p.ExpiryTime()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin upsert product")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM product_deals WHERE source_url = $1 LIMIT 1`, p.SourceURL,
	).Scan(&existingID)

	outcome := model.OutcomeUpdated
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE product_deals SET
			   title = $1, description = $2, product_category = $3,
			   original_price = $4, deal_price = $5, currency = $6,
			   affiliate_url = $7, affiliate_id = $8, image_urls = $9,
			   is_active = TRUE, expires_at = $10, updated_at = now()
			 WHERE id = $11`,
			p.Title, p.Description, string(p.ProductCategory),
			p.OriginalPrice, p.DealPrice, p.Currency,
			affiliateURL, p.AffiliateID, images,
			expires, existingID,
		); err != nil {
			return "", eris.Wrap(err, "postgres: update product deal")
		}
	case errors.Is(err, pgx.ErrNoRows):
		outcome = model.OutcomeCreated
		if _, err := tx.Exec(ctx,
			`INSERT INTO product_deals (
			   title, description, product_category,
			   original_price, deal_price, currency,
			   affiliate_provider, source_url, affiliate_url, affiliate_id,
			   image_urls, is_active, expires_at
			 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,TRUE,$12)`,
			p.Title, p.Description, string(p.ProductCategory),
			p.OriginalPrice, p.DealPrice, p.Currency,
			string(p.AffiliateProvider), p.SourceURL, affiliateURL, p.AffiliateID,
			images, expires,
		); err != nil {
			return "", eris.Wrap(err, "postgres: insert product deal")
		}
	default:
		return "", eris.Wrap(err, "postgres: lookup product deal")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit product deal")
	}
	return outcome, nil
}

// DeactivateExpiredDeals marks active deals past their expiry as inactive
// and returns how many changed.
func (s *PostgresStore) DeactivateExpiredDeals(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE product_deals
		 SET is_active = FALSE, updated_at = now()
		 WHERE is_active = TRUE
		   AND expires_at IS NOT NULL
		   AND expires_at < now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: deactivate expired deals")
	}
	return tag.RowsAffected(), nil
}

// ActiveDealsCount returns the number of active deals across providers.
func (s *PostgresStore) ActiveDealsCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM product_deals WHERE is_active = TRUE`,
	).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count active deals")
	}
	return n, nil
}
