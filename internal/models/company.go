package models

import (
	"fmt"
	"time"
)

// Company is the global, provider-independent identity for an employer.
// WebsiteDomain is the strong identity key; NormalizedName is the fallback.
// At least one of the two must be present on every row.
type Company struct {
	ID             int64      `json:"id"`
	RawName        *string    `json:"raw_name,omitempty"`
	DisplayName    *string    `json:"display_name,omitempty"`
	NormalizedName *string    `json:"normalized_name,omitempty"`
	WebsiteURL     *string    `json:"website_url,omitempty"`
	WebsiteDomain  *string    `json:"website_domain,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Aggregates CompanyAggregates `json:"aggregates"`
}

// CompanyEvidence is the identity evidence carried by an ingestion payload
// or a directory candidate. Nil fields are "no evidence", never "clear".
type CompanyEvidence struct {
	RawName        *string `json:"raw_name,omitempty"`
	DisplayName    *string `json:"display_name,omitempty"`
	NormalizedName *string `json:"normalized_name,omitempty"`
	WebsiteURL     *string `json:"website_url,omitempty"`
	WebsiteDomain  *string `json:"website_domain,omitempty"`
}

// HasIdentity reports whether the evidence carries at least one identity key
func (e *CompanyEvidence) HasIdentity() bool {
	return (e.WebsiteDomain != nil && *e.WebsiteDomain != "") ||
		(e.NormalizedName != nil && *e.NormalizedName != "")
}

// Validate checks the at-least-one-identity-key invariant
func (e *CompanyEvidence) Validate() error {
	if !e.HasIdentity() {
		return fmt.Errorf("company evidence has neither website domain nor normalized name")
	}
	return nil
}

// CompanyAggregates holds the per-company signals computed over canonical
// offers. Persisted atomically per company after each ingestion run.
type CompanyAggregates struct {
	UniqueOfferCount  int                `json:"unique_offer_count"`
	OfferCount        int                `json:"offer_count"` // activity-weighted: sum of (1 + repost count)
	MaxScore          int                `json:"max_score"`
	TopOfferID        *int64             `json:"top_offer_id,omitempty"`
	TopCategoryID     *string            `json:"top_category_id,omitempty"`
	StrongOfferCount  int                `json:"strong_offer_count"`
	AvgStrongScore    *float64           `json:"avg_strong_score,omitempty"`
	CategoryMaxScores map[string]int     `json:"category_max_scores,omitempty"`
	LastStrongAt      *time.Time         `json:"last_strong_at,omitempty"`
}

// CompanySource links a global company to a provider tenant or record.
// Unique by (provider, provider_company_id) when the id is set; rows
// without a provider id are unique per (company, provider).
type CompanySource struct {
	ID                int64     `json:"id"`
	CompanyID         int64     `json:"company_id"`
	Provider          string    `json:"provider"`
	ProviderCompanyID *string   `json:"provider_company_id,omitempty"` // tenant key / board token
	URL               *string   `json:"url,omitempty"`
	Hidden            bool      `json:"hidden"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks the source row shape
func (s *CompanySource) Validate() error {
	if s.CompanyID == 0 {
		return fmt.Errorf("company source requires a company id")
	}
	return ValidateProvider(s.Provider)
}
