package models

import "time"

// Run status constants
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// RunCounters are the per-run bookkeeping totals
type RunCounters struct {
	PagesFetched  int `json:"pages_fetched"`
	OffersFetched int `json:"offers_fetched"`
	RequestsCount int `json:"requests_count"`
	HTTP429Count  int `json:"http_429_count"`
	ErrorsCount   int `json:"errors_count"`
	Skipped       int `json:"skipped"`
	Duplicates    int `json:"duplicates"`
}

// IngestionRun is the audit record for one pipeline invocation of a provider
type IngestionRun struct {
	ID               string      `json:"id"`
	Provider         string      `json:"provider"`
	QueryFingerprint *string     `json:"query_fingerprint,omitempty"` // set for paginated aggregator searches
	StartedAt        time.Time   `json:"started_at"`
	EndedAt          *time.Time  `json:"ended_at,omitempty"`
	Status           string      `json:"status"`
	Counters         RunCounters `json:"counters"`
	Error            *string     `json:"error,omitempty"`
}

// RunLock is the single-row advisory lock mutually excluding pipeline runs.
// The store does not enforce it beyond row-level atomicity.
type RunLock struct {
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock has passed its TTL at the given instant
func (l *RunLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
