package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrate runs database migrations in order. Each migration is idempotent,
// applied inside a transaction and recorded in schema_migrations.
func (s *Store) migrate() error {
	ctx := context.Background()

	if err := s.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "company_aggregates", up: migrateV2},
		{version: 3, name: "feedback_events", up: migrateV3},
	}

	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (s *Store) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Store) runMigration(ctx context.Context, m migration) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s', 'now'))",
		m.version, m.name)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// migrateV1 creates the initial schema
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		// Companies: global identity. website_domain is the strong key,
		// normalized_name the fallback; at least one is always present.
		`CREATE TABLE IF NOT EXISTS companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			raw_name TEXT,
			display_name TEXT,
			normalized_name TEXT,
			website_url TEXT,
			website_domain TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			CHECK (website_domain IS NOT NULL OR normalized_name IS NOT NULL)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain
			ON companies(website_domain) WHERE website_domain IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(normalized_name)`,

		// Company sources: (provider, provider_company_id) is unique when
		// the provider id is set. SQLite treats NULLs in unique indexes as
		// distinct, so rows without a provider id may repeat.
		`CREATE TABLE IF NOT EXISTS company_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL REFERENCES companies(id),
			provider TEXT NOT NULL,
			provider_company_id TEXT,
			url TEXT,
			hidden INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(provider, provider_company_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_company_sources_company ON company_sources(company_id)`,

		// Offers. Canonicalization fields are written only by the repost
		// path; the ordinary upsert never touches them.
		`CREATE TABLE IF NOT EXISTS offers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL REFERENCES companies(id),
			provider TEXT NOT NULL,
			provider_offer_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			min_requirements TEXT,
			desired_requirements TEXT,
			url TEXT,
			location TEXT,
			published_at INTEGER,
			updated_at INTEGER,
			applications_count INTEGER,
			category TEXT,
			subcategory TEXT,
			contract_type TEXT,
			workday TEXT,
			experience TEXT,
			salary TEXT,
			content_fingerprint TEXT,
			canonical_offer_id INTEGER REFERENCES offers(id),
			repost_count INTEGER NOT NULL DEFAULT 0,
			last_seen_at INTEGER,
			created_at INTEGER NOT NULL,
			UNIQUE(provider, provider_offer_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_company ON offers(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_fingerprint
			ON offers(company_id, content_fingerprint) WHERE canonical_offer_id IS NULL`,

		// Matches: 1:1 with offers, reasons serialized as JSON
		`CREATE TABLE IF NOT EXISTS matches (
			offer_id INTEGER PRIMARY KEY REFERENCES offers(id) ON DELETE CASCADE,
			score INTEGER NOT NULL,
			top_category_id TEXT,
			reasons TEXT NOT NULL,
			catalog_version TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Ingestion run audit records
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			query_fingerprint TEXT,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			status TEXT NOT NULL,
			pages_fetched INTEGER NOT NULL DEFAULT 0,
			offers_fetched INTEGER NOT NULL DEFAULT 0,
			requests_count INTEGER NOT NULL DEFAULT 0,
			http_429_count INTEGER NOT NULL DEFAULT 0,
			errors_count INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingestion_runs(started_at)`,

		// Advisory run lock, single row per lock name
		`CREATE TABLE IF NOT EXISTS run_locks (
			name TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			acquired_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
	}

	return nil
}

// migrateV2 adds the aggregate signal columns to companies
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`ALTER TABLE companies ADD COLUMN unique_offer_count INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE companies ADD COLUMN offer_count INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE companies ADD COLUMN max_score INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE companies ADD COLUMN top_offer_id INTEGER`,
		`ALTER TABLE companies ADD COLUMN top_category_id TEXT`,
		`ALTER TABLE companies ADD COLUMN strong_offer_count INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE companies ADD COLUMN avg_strong_score REAL`,
		`ALTER TABLE companies ADD COLUMN category_max_scores TEXT`,
		`ALTER TABLE companies ADD COLUMN last_strong_at INTEGER`,
		`CREATE INDEX IF NOT EXISTS idx_companies_max_score ON companies(max_score)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
	}

	return nil
}

// migrateV3 creates the append-only feedback_events table
func migrateV3(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS feedback_events (
			id TEXT PRIMARY KEY,
			company_id INTEGER NOT NULL REFERENCES companies(id),
			value TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_company ON feedback_events(company_id)`,
	}

	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w\nQuery: %s", err, query)
		}
	}

	return nil
}
