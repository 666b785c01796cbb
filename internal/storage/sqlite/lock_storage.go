package sqlite

import (
	"context"
	"fmt"
	"time"
)

// AcquireRunLock atomically inserts the lock row, or takes it over when
// the current holder's TTL has expired. Returns false when another owner
// holds a live lock. Re-acquiring a lock you already hold extends it.
func (s *Store) AcquireRunLock(ctx context.Context, name, ownerID string, ttl time.Duration, now time.Time) (bool, error) {
	acquiredAt := now.UTC().Unix()
	expiresAt := now.UTC().Add(ttl).Unix()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO run_locks (name, owner_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner_id = excluded.owner_id,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= excluded.acquired_at
			OR run_locks.owner_id = excluded.owner_id`,
		name, ownerID, acquiredAt, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock acquire result: %w", err)
	}
	return n > 0, nil
}

// RefreshRunLock extends the TTL of a lock the caller still owns
func (s *Store) RefreshRunLock(ctx context.Context, name, ownerID string, ttl time.Duration, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE run_locks SET expires_at = ? WHERE name = ? AND owner_id = ?",
		now.UTC().Add(ttl).Unix(), name, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to refresh run lock %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock refresh result: %w", err)
	}
	return n > 0, nil
}

// ReleaseRunLock deletes the lock row iff the caller owns it. Releasing a
// lock held by someone else (after a takeover) is a no-op.
func (s *Store) ReleaseRunLock(ctx context.Context, name, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM run_locks WHERE name = ? AND owner_id = ?", name, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", name, err)
	}
	return nil
}
