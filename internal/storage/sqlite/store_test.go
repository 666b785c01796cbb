package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.GetLogger(), &common.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func TestUpsertCompany_IdentityPartitioning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("missing identity rejected", func(t *testing.T) {
		_, err := store.UpsertCompany(ctx, models.CompanyEvidence{RawName: strp("Acme")})
		assert.ErrorIs(t, err, storage.ErrMissingIdentity)
	})

	t.Run("domain is the strong key", func(t *testing.T) {
		first, err := store.UpsertCompany(ctx, models.CompanyEvidence{
			NormalizedName: strp("acme"),
			WebsiteDomain:  strp("acme.com"),
		})
		require.NoError(t, err)

		// Same domain, different name: same company
		second, err := store.UpsertCompany(ctx, models.CompanyEvidence{
			NormalizedName: strp("acme corporation"),
			WebsiteDomain:  strp("acme.com"),
		})
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// Different domain: different company
		third, err := store.UpsertCompany(ctx, models.CompanyEvidence{
			WebsiteDomain: strp("other.com"),
		})
		require.NoError(t, err)
		assert.NotEqual(t, first, third)
	})

	t.Run("name is the fallback key", func(t *testing.T) {
		first, err := store.UpsertCompany(ctx, models.CompanyEvidence{NormalizedName: strp("globex")})
		require.NoError(t, err)
		second, err := store.UpsertCompany(ctx, models.CompanyEvidence{NormalizedName: strp("globex")})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestUpsertCompany_MonotoneEnrichment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.UpsertCompany(ctx, models.CompanyEvidence{
		WebsiteDomain: strp("initech.com"),
	})
	require.NoError(t, err)

	// Second sighting fills the null name fields
	_, err = store.UpsertCompany(ctx, models.CompanyEvidence{
		RawName:        strp("Initech Inc."),
		DisplayName:    strp("Initech"),
		NormalizedName: strp("initech"),
		WebsiteDomain:  strp("initech.com"),
		WebsiteURL:     strp("https://www.initech.com"),
	})
	require.NoError(t, err)

	company, err := store.GetCompany(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, company.DisplayName)
	assert.Equal(t, "Initech", *company.DisplayName)
	require.NotNil(t, company.WebsiteURL)

	// Later non-null evidence wins; absent fields keep their stored value
	_, err = store.UpsertCompany(ctx, models.CompanyEvidence{
		DisplayName:   strp("Initech Global"),
		WebsiteDomain: strp("initech.com"),
	})
	require.NoError(t, err)

	company, err = store.GetCompany(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Initech Global", *company.DisplayName)
	assert.Equal(t, "initech", *company.NormalizedName)
	assert.Equal(t, "Initech Inc.", *company.RawName)
	assert.Equal(t, "https://www.initech.com", *company.WebsiteURL)
}

func TestUpsertCompanySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	companyA, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("a.com")})
	require.NoError(t, err)
	companyB, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("b.com")})
	require.NoError(t, err)

	t.Run("insert then update by tenant key", func(t *testing.T) {
		id1, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID:         companyA,
			Provider:          models.ProviderLever,
			ProviderCompanyID: strp("acme"),
			URL:               strp("https://a.com/careers"),
		})
		require.NoError(t, err)

		id2, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID:         companyA,
			Provider:          models.ProviderLever,
			ProviderCompanyID: strp("acme"),
			URL:               strp("https://a.com/jobs"),
		})
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})

	t.Run("conflicting tenant claim", func(t *testing.T) {
		_, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID:         companyB,
			Provider:          models.ProviderLever,
			ProviderCompanyID: strp("acme"),
		})
		assert.ErrorIs(t, err, storage.ErrUniqueConstraint)
	})

	t.Run("nil provider id keyed by company and provider", func(t *testing.T) {
		id1, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID: companyA,
			Provider:  models.ProviderGetOnBrd,
		})
		require.NoError(t, err)
		id2, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID: companyA,
			Provider:  models.ProviderGetOnBrd,
			URL:       strp("https://getonbrd.com/companies/acme"),
		})
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		id3, err := store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID: companyB,
			Provider:  models.ProviderGetOnBrd,
		})
		require.NoError(t, err)
		assert.NotEqual(t, id1, id3)
	})

	t.Run("listing is scoped to provider", func(t *testing.T) {
		sources, err := store.ListCompanySources(ctx, models.ProviderLever)
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, companyA, sources[0].CompanyID)
		assert.Equal(t, "acme", *sources[0].ProviderCompanyID)
	})
}

func TestUpsertOffer_Idempotency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	companyID, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("acme.com")})
	require.NoError(t, err)

	offer := models.IncomingOffer{
		Provider:        models.ProviderLever,
		ProviderOfferID: "abc-123",
		Title:           "Backend Engineer",
		Description:     "Go and SQL",
	}

	id1, created, err := store.UpsertOffer(ctx, offer, companyID)
	require.NoError(t, err)
	assert.True(t, created)

	// Canonicalization is assigned once, on the new row
	fp := strp("fp-1")
	require.NoError(t, store.SetCanonicalization(ctx, id1, nil, fp))

	// Re-upserting overwrites scalars but never the canonicalization fields
	offer.Title = "Senior Backend Engineer"
	id2, created, err := store.UpsertOffer(ctx, offer, companyID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	candidates, err := store.FindCanonicalOffersByFingerprint(ctx, "fp-1", companyID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Senior Backend Engineer", candidates[0].Title)
}

func TestCanonicalizationFlow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	companyID, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("acme.com")})
	require.NoError(t, err)

	canonical := models.IncomingOffer{
		Provider: models.ProviderLever, ProviderOfferID: "canon",
		Title: "Engineer", Description: "Original posting",
	}
	canonID, _, err := store.UpsertOffer(ctx, canonical, companyID)
	require.NoError(t, err)
	require.NoError(t, store.SetCanonicalization(ctx, canonID, nil, strp("fp")))

	duplicate := models.IncomingOffer{
		Provider: models.ProviderLever, ProviderOfferID: "dup",
		Title: "Engineer", Description: "Original posting",
	}
	dupID, _, err := store.UpsertOffer(ctx, duplicate, companyID)
	require.NoError(t, err)
	require.NoError(t, store.SetCanonicalization(ctx, dupID, &canonID, strp("fp")))

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.BumpCanonical(ctx, canonID, now))

	// Duplicate rows never show up as fingerprint candidates
	candidates, err := store.FindCanonicalOffersByFingerprint(ctx, "fp", companyID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, canonID, candidates[0].ID)
	require.NotNil(t, candidates[0].LastSeenAt)
	assert.Equal(t, now, *candidates[0].LastSeenAt)

	views, err := store.ListCompanyOffersForAggregation(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[0].RepostCount)
	assert.Nil(t, views[0].CanonicalOfferID)
	require.NotNil(t, views[1].CanonicalOfferID)
	assert.Equal(t, canonID, *views[1].CanonicalOfferID)

	t.Run("bump missing canonical", func(t *testing.T) {
		err := store.BumpCanonical(ctx, 99999, now)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete company offers", func(t *testing.T) {
		require.NoError(t, store.DeleteCompanyOffers(ctx, companyID))
		views, err := store.ListCompanyOffersForAggregation(ctx, companyID)
		require.NoError(t, err)
		assert.Empty(t, views)
	})
}

func TestCompanyAggregatesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	companyID, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("acme.com")})
	require.NoError(t, err)

	avg := 8.5
	topOffer := int64(42)
	lastStrong := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	agg := models.CompanyAggregates{
		UniqueOfferCount:  3,
		OfferCount:        8,
		MaxScore:          9,
		TopOfferID:        &topOffer,
		TopCategoryID:     strp("cat_fx_payments"),
		StrongOfferCount:  2,
		AvgStrongScore:    &avg,
		CategoryMaxScores: map[string]int{"cat_fx_payments": 9, "cat_proxy_backend": 4},
		LastStrongAt:      &lastStrong,
	}
	require.NoError(t, store.UpdateCompanyAggregates(ctx, companyID, agg))

	company, err := store.GetCompany(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, agg.UniqueOfferCount, company.Aggregates.UniqueOfferCount)
	assert.Equal(t, agg.OfferCount, company.Aggregates.OfferCount)
	assert.Equal(t, agg.MaxScore, company.Aggregates.MaxScore)
	assert.Equal(t, agg.CategoryMaxScores, company.Aggregates.CategoryMaxScores)
	require.NotNil(t, company.Aggregates.LastStrongAt)
	assert.Equal(t, lastStrong, *company.Aggregates.LastStrongAt)

	t.Run("unknown company", func(t *testing.T) {
		err := store.UpdateCompanyAggregates(ctx, 99999, agg)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestCompaniesNeedingDiscovery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withSite, err := store.UpsertCompany(ctx, models.CompanyEvidence{
		WebsiteDomain: strp("a.com"), WebsiteURL: strp("https://a.com"),
	})
	require.NoError(t, err)
	_, err = store.UpsertCompany(ctx, models.CompanyEvidence{NormalizedName: strp("no website")})
	require.NoError(t, err)
	linked, err := store.UpsertCompany(ctx, models.CompanyEvidence{
		WebsiteDomain: strp("b.com"), WebsiteURL: strp("https://b.com"),
	})
	require.NoError(t, err)
	_, err = store.UpsertCompanySource(ctx, models.CompanySource{
		CompanyID: linked, Provider: models.ProviderGreenhouse, ProviderCompanyID: strp("bco"),
	})
	require.NoError(t, err)

	companies, err := store.CompaniesNeedingDiscovery(ctx, models.ATSProviders, 10)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, withSite, companies[0].ID)
}

func TestRunLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	ttl := 30 * time.Minute

	acquired, err := store.AcquireRunLock(ctx, "pipeline", "owner-1", ttl, now)
	require.NoError(t, err)
	assert.True(t, acquired)

	// A live lock blocks other owners
	acquired, err = store.AcquireRunLock(ctx, "pipeline", "owner-2", ttl, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, acquired)

	// The holder can refresh and re-acquire
	refreshed, err := store.RefreshRunLock(ctx, "pipeline", "owner-1", ttl, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, refreshed)

	// An expired lock is taken over
	acquired, err = store.AcquireRunLock(ctx, "pipeline", "owner-2", ttl, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, acquired)

	// Stale owner's release is a no-op; the new lock survives
	require.NoError(t, store.ReleaseRunLock(ctx, "pipeline", "owner-1"))
	refreshed, err = store.RefreshRunLock(ctx, "pipeline", "owner-2", ttl, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, refreshed)

	require.NoError(t, store.ReleaseRunLock(ctx, "pipeline", "owner-2"))
	acquired, err = store.AcquireRunLock(ctx, "pipeline", "owner-3", ttl, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestIngestionRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.IngestionRun{
		ID:        "run_test_1",
		Provider:  models.ProviderLever,
		StartedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	run.Status = models.RunStatusSuccess
	run.EndedAt = timep(run.StartedAt.Add(5 * time.Minute))
	run.Counters = models.RunCounters{
		PagesFetched: 2, OffersFetched: 40, RequestsCount: 42, HTTP429Count: 1,
	}
	require.NoError(t, store.CloseRun(ctx, run))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, 40, runs[0].Counters.OffersFetched)
	assert.Equal(t, 1, runs[0].Counters.HTTP429Count)
	require.NotNil(t, runs[0].EndedAt)
}

func TestFeedbackEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	companyID, err := store.UpsertCompany(ctx, models.CompanyEvidence{WebsiteDomain: strp("acme.com")})
	require.NoError(t, err)

	require.NoError(t, store.AppendFeedbackEvent(ctx, models.FeedbackEvent{
		ID: "evt_1", CompanyID: companyID, Value: "RESOLVED",
		Source: models.FeedbackSourceSheet, CreatedAt: time.Now().UTC(),
	}))

	events, err := store.ListFeedbackEvents(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "RESOLVED", events[0].Value)
}
