package models

import "time"

// Feedback source constants
const (
	FeedbackSourceSheet = "sheet"
	FeedbackSourceCLI   = "cli"
)

// Feedback value a human enters to close out a company
const FeedbackResolved = "RESOLVED"

// FeedbackEvent is an append-only record of a human-entered feedback value
// for a company. Events are never updated or deleted.
type FeedbackEvent struct {
	ID        string    `json:"id"`
	CompanyID int64     `json:"company_id"`
	Value     string    `json:"value"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
