package models

import "time"

// Match is the scoring record for an offer, 1:1 with the offers table.
// Reasons holds the serialized score breakdown for auditability.
type Match struct {
	OfferID        int64     `json:"offer_id"`
	Score          int       `json:"score"` // integer in [0, 10]
	TopCategoryID  *string   `json:"top_category_id,omitempty"`
	Reasons        string    `json:"reasons"` // JSON document
	CatalogVersion string    `json:"catalog_version"`
	UpdatedAt      time.Time `json:"updated_at"`
}
