package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/fxlatam/indago/internal/models"
)

// AppendFeedbackEvent records one human-entered feedback value. Events
// are append-only; there is no update or delete path.
func (s *Store) AppendFeedbackEvent(ctx context.Context, event models.FeedbackEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_events (id, company_id, value, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.CompanyID, event.Value, event.Source, event.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to append feedback event %s: %w", event.ID, mapConstraintError(err))
	}
	return nil
}

// ListFeedbackEvents returns the feedback history of a company, oldest first
func (s *Store) ListFeedbackEvents(ctx context.Context, companyID int64) ([]models.FeedbackEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, value, source, created_at
		FROM feedback_events
		WHERE company_id = ?
		ORDER BY created_at, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback events: %w", err)
	}
	defer rows.Close()

	var events []models.FeedbackEvent
	for rows.Next() {
		var (
			ev        models.FeedbackEvent
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.Value, &ev.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback event row: %w", err)
		}
		ev.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
