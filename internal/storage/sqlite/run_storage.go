package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fxlatam/indago/internal/models"
)

// CreateRun inserts a new ingestion run audit row in running state
func (s *Store) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (id, provider, query_fingerprint, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Provider, nullString(run.QueryFingerprint),
		run.StartedAt.UTC().Unix(), run.Status)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run %s: %w", run.ID, mapConstraintError(err))
	}
	return nil
}

// CloseRun records the terminal status and final counters of a run
func (s *Store) CloseRun(ctx context.Context, run *models.IngestionRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_runs SET
			ended_at = ?,
			status = ?,
			pages_fetched = ?,
			offers_fetched = ?,
			requests_count = ?,
			http_429_count = ?,
			errors_count = ?,
			skipped = ?,
			duplicates = ?,
			error = ?
		WHERE id = ?`,
		nullTime(run.EndedAt), run.Status,
		run.Counters.PagesFetched, run.Counters.OffersFetched,
		run.Counters.RequestsCount, run.Counters.HTTP429Count,
		run.Counters.ErrorsCount, run.Counters.Skipped, run.Counters.Duplicates,
		nullString(run.Error), run.ID)
	if err != nil {
		return fmt.Errorf("failed to close ingestion run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, query_fingerprint, started_at, ended_at, status,
			pages_fetched, offers_fetched, requests_count, http_429_count,
			errors_count, skipped, duplicates, error
		FROM ingestion_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	defer rows.Close()

	var runs []models.IngestionRun
	for rows.Next() {
		var (
			run               models.IngestionRun
			queryFingerprint  sql.NullString
			startedAt         int64
			endedAt           sql.NullInt64
			runError          sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Provider, &queryFingerprint, &startedAt, &endedAt,
			&run.Status, &run.Counters.PagesFetched, &run.Counters.OffersFetched,
			&run.Counters.RequestsCount, &run.Counters.HTTP429Count,
			&run.Counters.ErrorsCount, &run.Counters.Skipped, &run.Counters.Duplicates,
			&runError); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion run row: %w", err)
		}
		run.QueryFingerprint = scanString(queryFingerprint)
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.EndedAt = scanTime(endedAt)
		run.Error = scanString(runError)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
