package models

import (
	"fmt"
	"time"
)

// Offer is a normalized job posting. Identity is (provider, provider_offer_id).
// CanonicalOfferID is NULL for canonical rows; duplicates point at their
// canonical row, which itself is always canonical (the graph has depth 1).
type Offer struct {
	ID              int64  `json:"id"`
	CompanyID       int64  `json:"company_id"`
	Provider        string `json:"provider"`
	ProviderOfferID string `json:"provider_offer_id"`

	Title               string     `json:"title"`
	Description         string     `json:"description"`
	MinRequirements     *string    `json:"min_requirements,omitempty"`
	DesiredRequirements *string    `json:"desired_requirements,omitempty"`
	URL                 *string    `json:"url,omitempty"`
	Location            *string    `json:"location,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"` // provider-side update stamp
	ApplicationsCount   *int       `json:"applications_count,omitempty"`
	Metadata            OfferMetadata `json:"metadata"`

	// Canonicalization fields. Written only by the repost path; the
	// ordinary upsert never touches them.
	ContentFingerprint *string    `json:"content_fingerprint,omitempty"`
	CanonicalOfferID   *int64     `json:"canonical_offer_id,omitempty"`
	RepostCount        int        `json:"repost_count"`
	LastSeenAt         *time.Time `json:"last_seen_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsCanonical reports whether this row is a canonical offer
func (o *Offer) IsCanonical() bool {
	return o.CanonicalOfferID == nil
}

// OfferMetadata carries the provider-mapped classification fields
type OfferMetadata struct {
	Category     *string `json:"category,omitempty"`
	Subcategory  *string `json:"subcategory,omitempty"`
	ContractType *string `json:"contract_type,omitempty"`
	Workday      *string `json:"workday,omitempty"`
	Experience   *string `json:"experience,omitempty"`
	Salary       *string `json:"salary,omitempty"`
}

// IncomingOffer is the canonical shape a provider mapper produces before
// persistence: the offer scalar fields plus the company identity evidence
// found in the payload. KnownCompanyID, when set, takes precedence over
// the evidence (ATS units already know their company).
type IncomingOffer struct {
	Provider        string
	ProviderOfferID string

	Title               string
	Description         string
	MinRequirements     *string
	DesiredRequirements *string
	URL                 *string
	Location            *string
	PublishedAt         *time.Time
	UpdatedAt           *time.Time
	ApplicationsCount   *int
	Metadata            OfferMetadata

	Company        CompanyEvidence
	KnownCompanyID int64 // 0 = resolve from evidence
}

// Validate rejects payload records missing required fields
func (in *IncomingOffer) Validate() error {
	if err := ValidateProvider(in.Provider); err != nil {
		return err
	}
	if in.ProviderOfferID == "" {
		return fmt.Errorf("offer is missing a provider offer id")
	}
	if in.Title == "" {
		return fmt.Errorf("offer %s/%s is missing a title", in.Provider, in.ProviderOfferID)
	}
	return nil
}

// OfferAggregationView is the minimal projection the aggregator consumes:
// one row per offer of a company, joined with its match score.
type OfferAggregationView struct {
	OfferID          int64
	Score            int
	TopCategoryID    *string
	CanonicalOfferID *int64
	RepostCount      int
	PublishedAt      *time.Time
	UpdatedAt        *time.Time
}

// IsCanonical reports whether the projected offer is canonical
func (v *OfferAggregationView) IsCanonical() bool {
	return v.CanonicalOfferID == nil
}
