package interfaces

import (
	"context"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/repost"
)

// CompanyStorage resolves and enriches global company identities
type CompanyStorage interface {
	// UpsertCompany resolves the evidence to a company id, creating the
	// company on first sighting. Each field keeps the most recent non-null
	// value seen: incoming non-null fields overwrite, incoming nulls
	// never clear what is stored.
	// Returns ErrMissingIdentity when the evidence has neither key.
	UpsertCompany(ctx context.Context, evidence models.CompanyEvidence) (int64, error)

	// GetCompany returns a company by id, ErrNotFound when absent
	GetCompany(ctx context.Context, id int64) (*models.Company, error)

	// CompaniesNeedingDiscovery lists companies with a website URL and no
	// company_source row for any of the given providers
	CompaniesNeedingDiscovery(ctx context.Context, providers []string, limit int) ([]models.Company, error)

	// UpdateCompanyAggregates persists the aggregate signal columns for one
	// company atomically
	UpdateCompanyAggregates(ctx context.Context, companyID int64, agg models.CompanyAggregates) error

	// ListCompaniesForExport returns all companies ordered by max score
	// descending then id, with aggregates populated
	ListCompaniesForExport(ctx context.Context) ([]models.Company, error)
}

// CompanySourceStorage links companies to provider tenants
type CompanySourceStorage interface {
	// UpsertCompanySource inserts or updates by (provider,
	// provider_company_id); rows without a provider company id are keyed
	// by (company, provider) instead. Conflicting tenant claims by
	// another company return ErrUniqueConstraint.
	UpsertCompanySource(ctx context.Context, source models.CompanySource) (int64, error)

	// ListCompanySources returns the visible sources for one provider,
	// ordered by company id
	ListCompanySources(ctx context.Context, provider string) ([]models.CompanySource, error)
}

// OfferStorage persists normalized offers and their canonicalization state
type OfferStorage interface {
	// UpsertOffer writes the offer's scalar fields by (provider,
	// provider_offer_id). Canonicalization fields are never touched.
	// Returns the row id and whether the row was created.
	UpsertOffer(ctx context.Context, offer models.IncomingOffer, companyID int64) (int64, bool, error)

	// SetCanonicalization assigns the fingerprint and canonical pointer of
	// a newly ingested offer. Called exactly once per new row.
	SetCanonicalization(ctx context.Context, offerID int64, canonicalOfferID *int64, fingerprint *string) error

	// BumpCanonical increments the repost count of a canonical offer and
	// advances its last-seen stamp. ErrNotFound when the row is missing.
	BumpCanonical(ctx context.Context, canonicalID int64, lastSeenAt time.Time) error

	// FindCanonicalOffersByFingerprint preselects duplicate candidates:
	// canonical offers of the company with a matching fingerprint
	FindCanonicalOffersByFingerprint(ctx context.Context, fingerprint string, companyID int64) ([]repost.Candidate, error)

	// ListCompanyOffersForAggregation returns the aggregation projection of
	// every offer of a company, joined with its match score
	ListCompanyOffersForAggregation(ctx context.Context, companyID int64) ([]models.OfferAggregationView, error)

	// DeleteCompanyOffers removes all offers and matches of a company
	// (resolution workflow hand-off)
	DeleteCompanyOffers(ctx context.Context, companyID int64) error
}

// MatchStorage persists scoring results, 1:1 with offers
type MatchStorage interface {
	UpsertMatch(ctx context.Context, m models.Match) error
	GetMatch(ctx context.Context, offerID int64) (*models.Match, error)
}

// RunStorage records ingestion run audit rows
type RunStorage interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	CloseRun(ctx context.Context, run *models.IngestionRun) error
	ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error)
}

// LockStorage is the advisory run lock. Acquire is an atomic
// insert-or-takeover-if-expired; the store enforces nothing beyond that.
type LockStorage interface {
	AcquireRunLock(ctx context.Context, name, ownerID string, ttl time.Duration, now time.Time) (bool, error)
	RefreshRunLock(ctx context.Context, name, ownerID string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseRunLock(ctx context.Context, name, ownerID string) error
}

// FeedbackStorage appends human feedback events
type FeedbackStorage interface {
	AppendFeedbackEvent(ctx context.Context, event models.FeedbackEvent) error
	ListFeedbackEvents(ctx context.Context, companyID int64) ([]models.FeedbackEvent, error)
}

// StorageManager aggregates every storage contract behind one handle
type StorageManager interface {
	CompanyStorage
	CompanySourceStorage
	OfferStorage
	MatchStorage
	RunStorage
	LockStorage
	FeedbackStorage

	Close() error
}
