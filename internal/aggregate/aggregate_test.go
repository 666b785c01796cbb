package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/models"
)

const strongThreshold = 7

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func TestComputeEmptyShape(t *testing.T) {
	canonical := int64(99)
	offers := []models.OfferAggregationView{
		{OfferID: 1, Score: 9, CanonicalOfferID: &canonical},
		{OfferID: 2, Score: 8, CanonicalOfferID: &canonical},
	}

	agg := Compute(offers, strongThreshold)

	assert.Zero(t, agg.MaxScore)
	assert.Zero(t, agg.OfferCount)
	assert.Zero(t, agg.UniqueOfferCount)
	assert.Zero(t, agg.StrongOfferCount)
	assert.Nil(t, agg.AvgStrongScore)
	assert.Nil(t, agg.TopCategoryID)
	assert.Nil(t, agg.TopOfferID)
	assert.Empty(t, agg.CategoryMaxScores)
	assert.NotNil(t, agg.CategoryMaxScores)
	assert.Nil(t, agg.LastStrongAt)
}

func TestComputeActivityWeightedCounts(t *testing.T) {
	offers := []models.OfferAggregationView{
		{OfferID: 1, RepostCount: 3},
		{OfferID: 2, RepostCount: 0},
		{OfferID: 3, RepostCount: 2},
	}

	agg := Compute(offers, strongThreshold)

	assert.Equal(t, 3, agg.UniqueOfferCount)
	assert.Equal(t, 8, agg.OfferCount)
}

func TestComputeTopOfferAndCategories(t *testing.T) {
	offers := []models.OfferAggregationView{
		{OfferID: 1, Score: 5, TopCategoryID: strPtr("cat_intl_us"), PublishedAt: ts("2026-02-01T00:00:00Z")},
		{OfferID: 2, Score: 9, TopCategoryID: strPtr("cat_fx_salary"), PublishedAt: ts("2026-03-01T00:00:00Z")},
		{OfferID: 3, Score: 7, TopCategoryID: strPtr("cat_fx_salary"), PublishedAt: ts("2026-04-01T00:00:00Z")},
		{OfferID: 4, Score: 2, TopCategoryID: nil},
	}

	agg := Compute(offers, strongThreshold)

	assert.Equal(t, 9, agg.MaxScore)
	require.NotNil(t, agg.TopOfferID)
	assert.Equal(t, int64(2), *agg.TopOfferID)
	require.NotNil(t, agg.TopCategoryID)
	assert.Equal(t, "cat_fx_salary", *agg.TopCategoryID)

	assert.Equal(t, map[string]int{
		"cat_fx_salary": 9,
		"cat_intl_us":   5,
	}, agg.CategoryMaxScores)

	// offers 2 and 3 are strong
	assert.Equal(t, 2, agg.StrongOfferCount)
	require.NotNil(t, agg.AvgStrongScore)
	assert.Equal(t, 8.0, *agg.AvgStrongScore)
	require.NotNil(t, agg.LastStrongAt)
	assert.Equal(t, *ts("2026-04-01T00:00:00Z"), *agg.LastStrongAt)
}

func TestComputeTopOfferTieBreaks(t *testing.T) {
	t.Run("recency wins", func(t *testing.T) {
		offers := []models.OfferAggregationView{
			{OfferID: 1, Score: 8, PublishedAt: ts("2026-01-01T00:00:00Z")},
			{OfferID: 2, Score: 8, PublishedAt: ts("2026-05-01T00:00:00Z")},
		}
		agg := Compute(offers, strongThreshold)
		assert.Equal(t, int64(2), *agg.TopOfferID)
	})

	t.Run("nulls last", func(t *testing.T) {
		offers := []models.OfferAggregationView{
			{OfferID: 1, Score: 8},
			{OfferID: 2, Score: 8, PublishedAt: ts("2020-01-01T00:00:00Z")},
		}
		agg := Compute(offers, strongThreshold)
		assert.Equal(t, int64(2), *agg.TopOfferID)
	})

	t.Run("updated at breaks published tie", func(t *testing.T) {
		when := ts("2026-01-01T00:00:00Z")
		offers := []models.OfferAggregationView{
			{OfferID: 1, Score: 8, PublishedAt: when, UpdatedAt: ts("2026-02-01T00:00:00Z")},
			{OfferID: 2, Score: 8, PublishedAt: when, UpdatedAt: ts("2026-03-01T00:00:00Z")},
		}
		agg := Compute(offers, strongThreshold)
		assert.Equal(t, int64(2), *agg.TopOfferID)
	})
}

func TestComputeLastStrongFallsBackToUpdatedAt(t *testing.T) {
	offers := []models.OfferAggregationView{
		{OfferID: 1, Score: 9, UpdatedAt: ts("2026-02-01T00:00:00Z")},
		{OfferID: 2, Score: 8, PublishedAt: ts("2026-01-01T00:00:00Z")},
	}

	agg := Compute(offers, strongThreshold)

	require.NotNil(t, agg.LastStrongAt)
	assert.Equal(t, *ts("2026-02-01T00:00:00Z"), *agg.LastStrongAt)
}

func TestComputeIsPermutationInvariant(t *testing.T) {
	offers := []models.OfferAggregationView{
		{OfferID: 1, Score: 5, TopCategoryID: strPtr("cat_intl_us"), PublishedAt: ts("2026-02-01T00:00:00Z"), RepostCount: 2},
		{OfferID: 2, Score: 9, TopCategoryID: strPtr("cat_fx_salary"), PublishedAt: ts("2026-03-01T00:00:00Z")},
		{OfferID: 3, Score: 9, TopCategoryID: strPtr("cat_fx_salary"), PublishedAt: ts("2026-03-01T00:00:00Z")},
		{OfferID: 4, Score: 2, CanonicalOfferID: int64Ptr(2), RepostCount: 1},
		{OfferID: 5, Score: 7, UpdatedAt: ts("2026-01-15T00:00:00Z")},
	}

	expected := Compute(offers, strongThreshold)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.OfferAggregationView, len(offers))
		copy(shuffled, offers)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, expected, Compute(shuffled, strongThreshold))
	}

	// the score/stamp tie between offers 2 and 3 resolves to the smaller id
	require.NotNil(t, expected.TopOfferID)
	assert.Equal(t, int64(2), *expected.TopOfferID)
}
