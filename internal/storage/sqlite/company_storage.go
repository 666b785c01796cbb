package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/storage"
)

const companyColumns = `id, raw_name, display_name, normalized_name, website_url, website_domain,
	created_at, updated_at,
	unique_offer_count, offer_count, max_score, top_offer_id, top_category_id,
	strong_offer_count, avg_strong_score, category_max_scores, last_strong_at`

// UpsertCompany resolves evidence to a company id. The website domain is
// looked up first when present; otherwise the normalized name. Existing
// rows are enriched monotonically: incoming non-null fields overwrite,
// incoming nulls leave the stored value alone, nothing is ever cleared.
func (s *Store) UpsertCompany(ctx context.Context, evidence models.CompanyEvidence) (int64, error) {
	if !evidence.HasIdentity() {
		return 0, storage.ErrMissingIdentity
	}

	var (
		row *sql.Row
	)
	if evidence.WebsiteDomain != nil && *evidence.WebsiteDomain != "" {
		row = s.db.QueryRowContext(ctx,
			"SELECT id FROM companies WHERE website_domain = ?", *evidence.WebsiteDomain)
	} else {
		row = s.db.QueryRowContext(ctx,
			"SELECT id FROM companies WHERE normalized_name = ? ORDER BY id LIMIT 1", *evidence.NormalizedName)
	}

	now := time.Now().UTC().Unix()

	var id int64
	err := row.Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE companies SET
				raw_name = COALESCE(?, raw_name),
				display_name = COALESCE(?, display_name),
				normalized_name = COALESCE(?, normalized_name),
				website_url = COALESCE(?, website_url),
				website_domain = COALESCE(?, website_domain),
				updated_at = ?
			WHERE id = ?`,
			nullString(evidence.RawName), nullString(evidence.DisplayName),
			nullString(evidence.NormalizedName), nullString(evidence.WebsiteURL),
			nullString(evidence.WebsiteDomain), now, id)
		if err != nil {
			return 0, fmt.Errorf("failed to enrich company %d: %w", id, mapConstraintError(err))
		}
		return id, nil

	case errors.Is(err, sql.ErrNoRows):
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO companies (raw_name, display_name, normalized_name, website_url, website_domain, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nullString(evidence.RawName), nullString(evidence.DisplayName),
			nullString(evidence.NormalizedName), nullString(evidence.WebsiteURL),
			nullString(evidence.WebsiteDomain), now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert company: %w", mapConstraintError(err))
		}
		return result.LastInsertId()

	default:
		return 0, fmt.Errorf("failed to look up company: %w", err)
	}
}

// GetCompany returns a company by id
func (s *Store) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE id = ?", id)
	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company %d: %w", id, err)
	}
	return company, nil
}

// CompaniesNeedingDiscovery lists companies with a website URL and no
// company_source for any of the given providers
func (s *Store) CompaniesNeedingDiscovery(ctx context.Context, providers []string, limit int) ([]models.Company, error) {
	if len(providers) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(providers))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(providers)+1)
	for _, p := range providers {
		args = append(args, p)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+companyColumns+` FROM companies c
		WHERE c.website_url IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM company_sources cs
			WHERE cs.company_id = c.id AND cs.provider IN (`+placeholders+`)
		)
		ORDER BY c.id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies needing discovery: %w", err)
	}
	defer rows.Close()

	return collectCompanies(rows)
}

// UpdateCompanyAggregates persists all aggregate columns atomically
func (s *Store) UpdateCompanyAggregates(ctx context.Context, companyID int64, agg models.CompanyAggregates) error {
	var categoryScores interface{}
	if len(agg.CategoryMaxScores) > 0 {
		data, err := json.Marshal(agg.CategoryMaxScores)
		if err != nil {
			return fmt.Errorf("failed to serialize category scores: %w", err)
		}
		categoryScores = string(data)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE companies SET
			unique_offer_count = ?,
			offer_count = ?,
			max_score = ?,
			top_offer_id = ?,
			top_category_id = ?,
			strong_offer_count = ?,
			avg_strong_score = ?,
			category_max_scores = ?,
			last_strong_at = ?,
			updated_at = ?
		WHERE id = ?`,
		agg.UniqueOfferCount, agg.OfferCount, agg.MaxScore,
		nullInt64(agg.TopOfferID), nullString(agg.TopCategoryID),
		agg.StrongOfferCount, nullFloat(agg.AvgStrongScore),
		categoryScores, nullTime(agg.LastStrongAt),
		time.Now().UTC().Unix(), companyID)
	if err != nil {
		return fmt.Errorf("failed to update aggregates for company %d: %w", companyID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListCompaniesForExport returns every company ordered by max score
// descending, then id for a stable sheet layout
func (s *Store) ListCompaniesForExport(ctx context.Context) ([]models.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+companyColumns+" FROM companies ORDER BY max_score DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list companies for export: %w", err)
	}
	defer rows.Close()

	return collectCompanies(rows)
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		c                                                  models.Company
		rawName, displayName, normalizedName               sql.NullString
		websiteURL, websiteDomain, topCategory, catScores  sql.NullString
		createdAt, updatedAt, topOfferID, lastStrongAt     sql.NullInt64
		avgStrong                                          sql.NullFloat64
	)

	err := row.Scan(&c.ID, &rawName, &displayName, &normalizedName, &websiteURL, &websiteDomain,
		&createdAt, &updatedAt,
		&c.Aggregates.UniqueOfferCount, &c.Aggregates.OfferCount, &c.Aggregates.MaxScore,
		&topOfferID, &topCategory,
		&c.Aggregates.StrongOfferCount, &avgStrong, &catScores, &lastStrongAt)
	if err != nil {
		return nil, err
	}

	c.RawName = scanString(rawName)
	c.DisplayName = scanString(displayName)
	c.NormalizedName = scanString(normalizedName)
	c.WebsiteURL = scanString(websiteURL)
	c.WebsiteDomain = scanString(websiteDomain)
	if createdAt.Valid {
		c.CreatedAt = time.Unix(createdAt.Int64, 0).UTC()
	}
	if updatedAt.Valid {
		c.UpdatedAt = time.Unix(updatedAt.Int64, 0).UTC()
	}
	c.Aggregates.TopOfferID = scanInt64(topOfferID)
	c.Aggregates.TopCategoryID = scanString(topCategory)
	c.Aggregates.AvgStrongScore = scanFloat(avgStrong)
	c.Aggregates.LastStrongAt = scanTime(lastStrongAt)
	if catScores.Valid && catScores.String != "" {
		scores := map[string]int{}
		if err := json.Unmarshal([]byte(catScores.String), &scores); err == nil {
			c.Aggregates.CategoryMaxScores = scores
		}
	}

	return &c, nil
}

func collectCompanies(rows *sql.Rows) ([]models.Company, error) {
	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}
