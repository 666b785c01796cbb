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

// UpsertCompanySource inserts or updates the (provider, provider_company_id)
// link. A tenant already claimed by a different company returns
// ErrUniqueConstraint so discovery can count the conflict instead of
// silently stealing the tenant. Rows without a provider company id are
// keyed by (company, provider) instead.
func (s *Store) UpsertCompanySource(ctx context.Context, source models.CompanySource) (int64, error) {
	if err := source.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Unix()

	if source.ProviderCompanyID == nil || *source.ProviderCompanyID == "" {
		var id int64
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM company_sources
			WHERE company_id = ? AND provider = ? AND provider_company_id IS NULL`,
			source.CompanyID, source.Provider).Scan(&id)
		switch {
		case err == nil:
			_, err = s.db.ExecContext(ctx,
				"UPDATE company_sources SET url = ?, hidden = ?, updated_at = ? WHERE id = ?",
				nullString(source.URL), boolInt(source.Hidden), now, id)
			if err != nil {
				return 0, fmt.Errorf("failed to update company source %d: %w", id, err)
			}
			return id, nil
		case errors.Is(err, sql.ErrNoRows):
			result, err := s.db.ExecContext(ctx, `
				INSERT INTO company_sources (company_id, provider, provider_company_id, url, hidden, created_at, updated_at)
				VALUES (?, ?, NULL, ?, ?, ?, ?)`,
				source.CompanyID, source.Provider, nullString(source.URL), boolInt(source.Hidden), now, now)
			if err != nil {
				return 0, fmt.Errorf("failed to insert company source: %w", mapConstraintError(err))
			}
			return result.LastInsertId()
		default:
			return 0, fmt.Errorf("failed to look up company source: %w", err)
		}
	}

	var (
		id        int64
		companyID int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, company_id FROM company_sources WHERE provider = ? AND provider_company_id = ?",
		source.Provider, *source.ProviderCompanyID).Scan(&id, &companyID)
	switch {
	case err == nil:
		if companyID != source.CompanyID {
			return 0, fmt.Errorf("tenant %s/%s already linked to company %d: %w",
				source.Provider, *source.ProviderCompanyID, companyID, storage.ErrUniqueConstraint)
		}
		_, err = s.db.ExecContext(ctx,
			"UPDATE company_sources SET url = ?, hidden = ?, updated_at = ? WHERE id = ?",
			nullString(source.URL), boolInt(source.Hidden), now, id)
		if err != nil {
			return 0, fmt.Errorf("failed to update company source %d: %w", id, err)
		}
		return id, nil

	case errors.Is(err, sql.ErrNoRows):
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO company_sources (company_id, provider, provider_company_id, url, hidden, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			source.CompanyID, source.Provider, *source.ProviderCompanyID,
			nullString(source.URL), boolInt(source.Hidden), now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert company source: %w", mapConstraintError(err))
		}
		return result.LastInsertId()

	default:
		return 0, fmt.Errorf("failed to look up company source: %w", err)
	}
}

// ListCompanySources returns the visible sources for one provider. These
// are the units of work for an ATS ingestion run, ordered for a
// deterministic run sequence.
func (s *Store) ListCompanySources(ctx context.Context, provider string) ([]models.CompanySource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, provider, provider_company_id, url, hidden, created_at, updated_at
		FROM company_sources
		WHERE provider = ? AND hidden = 0
		ORDER BY company_id, id`, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list company sources for %s: %w", provider, err)
	}
	defer rows.Close()

	var sources []models.CompanySource
	for rows.Next() {
		var (
			src                  models.CompanySource
			providerCompanyID    sql.NullString
			url                  sql.NullString
			hidden               int
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&src.ID, &src.CompanyID, &src.Provider, &providerCompanyID,
			&url, &hidden, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company source row: %w", err)
		}
		src.ProviderCompanyID = scanString(providerCompanyID)
		src.URL = scanString(url)
		src.Hidden = hidden != 0
		src.CreatedAt = time.Unix(createdAt, 0).UTC()
		src.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
