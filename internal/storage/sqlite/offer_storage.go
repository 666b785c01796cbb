package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/repost"
	"github.com/fxlatam/indago/internal/storage"
)

// UpsertOffer writes the scalar fields of an offer by its
// (provider, provider_offer_id) identity. On conflict the scalars are
// overwritten; the canonicalization columns (content_fingerprint,
// canonical_offer_id, repost_count, last_seen_at) are left untouched.
func (s *Store) UpsertOffer(ctx context.Context, offer models.IncomingOffer, companyID int64) (int64, bool, error) {
	if err := offer.Validate(); err != nil {
		return 0, false, err
	}

	now := time.Now().UTC().Unix()

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM offers WHERE provider = ? AND provider_offer_id = ?",
		offer.Provider, offer.ProviderOfferID).Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE offers SET
				company_id = ?,
				title = ?,
				description = ?,
				min_requirements = ?,
				desired_requirements = ?,
				url = ?,
				location = ?,
				published_at = ?,
				updated_at = ?,
				applications_count = ?,
				category = ?,
				subcategory = ?,
				contract_type = ?,
				workday = ?,
				experience = ?,
				salary = ?
			WHERE id = ?`,
			companyID, offer.Title, offer.Description,
			nullString(offer.MinRequirements), nullString(offer.DesiredRequirements),
			nullString(offer.URL), nullString(offer.Location),
			nullTime(offer.PublishedAt), nullTime(offer.UpdatedAt),
			nullInt(offer.ApplicationsCount),
			nullString(offer.Metadata.Category), nullString(offer.Metadata.Subcategory),
			nullString(offer.Metadata.ContractType), nullString(offer.Metadata.Workday),
			nullString(offer.Metadata.Experience), nullString(offer.Metadata.Salary),
			id)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update offer %d: %w", id, mapConstraintError(err))
		}
		return id, false, nil

	case errors.Is(err, sql.ErrNoRows):
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO offers (
				company_id, provider, provider_offer_id, title, description,
				min_requirements, desired_requirements, url, location,
				published_at, updated_at, applications_count,
				category, subcategory, contract_type, workday, experience, salary,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			companyID, offer.Provider, offer.ProviderOfferID, offer.Title, offer.Description,
			nullString(offer.MinRequirements), nullString(offer.DesiredRequirements),
			nullString(offer.URL), nullString(offer.Location),
			nullTime(offer.PublishedAt), nullTime(offer.UpdatedAt),
			nullInt(offer.ApplicationsCount),
			nullString(offer.Metadata.Category), nullString(offer.Metadata.Subcategory),
			nullString(offer.Metadata.ContractType), nullString(offer.Metadata.Workday),
			nullString(offer.Metadata.Experience), nullString(offer.Metadata.Salary),
			now)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert offer: %w", mapConstraintError(err))
		}
		newID, err := result.LastInsertId()
		return newID, true, err

	default:
		return 0, false, fmt.Errorf("failed to look up offer: %w", err)
	}
}

// SetCanonicalization assigns the repost-path fields of a newly ingested
// offer: its fingerprint, and a canonical pointer when the offer is a
// duplicate (nil pointer marks the row itself canonical).
func (s *Store) SetCanonicalization(ctx context.Context, offerID int64, canonicalOfferID *int64, fingerprint *string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE offers SET canonical_offer_id = ?, content_fingerprint = ? WHERE id = ?",
		nullInt64(canonicalOfferID), nullString(fingerprint), offerID)
	if err != nil {
		return fmt.Errorf("failed to set canonicalization of offer %d: %w", offerID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// BumpCanonical records a repost event on the canonical row
func (s *Store) BumpCanonical(ctx context.Context, canonicalID int64, lastSeenAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE offers SET repost_count = repost_count + 1, last_seen_at = ? WHERE id = ?",
		lastSeenAt.UTC().Unix(), canonicalID)
	if err != nil {
		return fmt.Errorf("failed to bump canonical offer %d: %w", canonicalID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindCanonicalOffersByFingerprint preselects duplicate candidates for the
// repost detector: canonical offers of the company with the same content
// fingerprint, in stable id order.
func (s *Store) FindCanonicalOffersByFingerprint(ctx context.Context, fingerprint string, companyID int64) ([]repost.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, last_seen_at, published_at, updated_at
		FROM offers
		WHERE company_id = ? AND content_fingerprint = ? AND canonical_offer_id IS NULL
		ORDER BY id`, companyID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to find canonical offers by fingerprint: %w", err)
	}
	defer rows.Close()

	var candidates []repost.Candidate
	for rows.Next() {
		var (
			c                                 repost.Candidate
			lastSeen, publishedAt, updatedAt  sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &lastSeen, &publishedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		c.LastSeenAt = scanTime(lastSeen)
		c.PublishedAt = scanTime(publishedAt)
		c.UpdatedAt = scanTime(updatedAt)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListCompanyOffersForAggregation returns the minimal projection the
// aggregator consumes, joined with each offer's match score
func (s *Store) ListCompanyOffersForAggregation(ctx context.Context, companyID int64) ([]models.OfferAggregationView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, COALESCE(m.score, 0), m.top_category_id,
			o.canonical_offer_id, o.repost_count, o.published_at, o.updated_at
		FROM offers o
		LEFT JOIN matches m ON m.offer_id = o.id
		WHERE o.company_id = ?
		ORDER BY o.id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for aggregation: %w", err)
	}
	defer rows.Close()

	var views []models.OfferAggregationView
	for rows.Next() {
		var (
			v                         models.OfferAggregationView
			topCategory               sql.NullString
			canonicalID               sql.NullInt64
			publishedAt, updatedAt    sql.NullInt64
		)
		if err := rows.Scan(&v.OfferID, &v.Score, &topCategory, &canonicalID,
			&v.RepostCount, &publishedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aggregation row: %w", err)
		}
		v.TopCategoryID = scanString(topCategory)
		v.CanonicalOfferID = scanInt64(canonicalID)
		v.PublishedAt = scanTime(publishedAt)
		v.UpdatedAt = scanTime(updatedAt)
		views = append(views, v)
	}
	return views, rows.Err()
}

// DeleteCompanyOffers removes every offer of a company together with its
// matches. Used by the resolution workflow when a human marks the company
// RESOLVED.
func (s *Store) DeleteCompanyOffers(ctx context.Context, companyID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM matches WHERE offer_id IN (SELECT id FROM offers WHERE company_id = ?)", companyID); err != nil {
		return fmt.Errorf("failed to delete matches of company %d: %w", companyID, err)
	}
	// Duplicates reference canonical rows of the same company, so clear
	// the pointers before the delete to satisfy the self reference.
	if _, err := tx.ExecContext(ctx,
		"UPDATE offers SET canonical_offer_id = NULL WHERE company_id = ?", companyID); err != nil {
		return fmt.Errorf("failed to unlink offers of company %d: %w", companyID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM offers WHERE company_id = ?", companyID); err != nil {
		return fmt.Errorf("failed to delete offers of company %d: %w", companyID, err)
	}

	return tx.Commit()
}
