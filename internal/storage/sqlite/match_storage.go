package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/storage"
)

// UpsertMatch writes the scoring record of an offer, replacing any prior one
func (s *Store) UpsertMatch(ctx context.Context, m models.Match) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (offer_id, score, top_category_id, reasons, catalog_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(offer_id) DO UPDATE SET
			score = excluded.score,
			top_category_id = excluded.top_category_id,
			reasons = excluded.reasons,
			catalog_version = excluded.catalog_version,
			updated_at = excluded.updated_at`,
		m.OfferID, m.Score, nullString(m.TopCategoryID), m.Reasons, m.CatalogVersion,
		m.UpdatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert match for offer %d: %w", m.OfferID, mapConstraintError(err))
	}
	return nil
}

// GetMatch returns the scoring record of an offer
func (s *Store) GetMatch(ctx context.Context, offerID int64) (*models.Match, error) {
	var (
		m           models.Match
		topCategory sql.NullString
		updatedAt   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT offer_id, score, top_category_id, reasons, catalog_version, updated_at
		FROM matches WHERE offer_id = ?`, offerID).
		Scan(&m.OfferID, &m.Score, &topCategory, &m.Reasons, &m.CatalogVersion, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match for offer %d: %w", offerID, err)
	}
	m.TopCategoryID = scanString(topCategory)
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &m, nil
}
