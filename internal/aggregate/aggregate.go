// Package aggregate derives per-company signals from the company's offers.
// Only canonical offers contribute; duplicates count through the repost
// weight on their canonical row.
package aggregate

import (
	"time"

	"github.com/fxlatam/indago/internal/models"
)

// Compute folds the offer projection into the company aggregate signals.
// It is pure: callers persist the result separately. Permuting the input
// yields the same output.
func Compute(offers []models.OfferAggregationView, strongThreshold int) models.CompanyAggregates {
	agg := models.CompanyAggregates{
		CategoryMaxScores: map[string]int{},
	}

	var top *models.OfferAggregationView
	var strongScoreSum int
	var lastStrongAt *time.Time

	for i := range offers {
		offer := &offers[i]
		if !offer.IsCanonical() {
			continue
		}

		agg.UniqueOfferCount++
		agg.OfferCount += 1 + offer.RepostCount

		if top == nil || beatsTop(offer, top) {
			top = offer
		}

		if offer.TopCategoryID != nil {
			if offer.Score > agg.CategoryMaxScores[*offer.TopCategoryID] {
				agg.CategoryMaxScores[*offer.TopCategoryID] = offer.Score
			}
		}

		if offer.Score >= strongThreshold {
			agg.StrongOfferCount++
			strongScoreSum += offer.Score
			if at := activityStamp(offer); at != nil {
				if lastStrongAt == nil || at.After(*lastStrongAt) {
					lastStrongAt = at
				}
			}
		}
	}

	if top != nil {
		agg.MaxScore = top.Score
		id := top.OfferID
		agg.TopOfferID = &id
		agg.TopCategoryID = top.TopCategoryID
	}
	if agg.StrongOfferCount > 0 {
		avg := float64(strongScoreSum) / float64(agg.StrongOfferCount)
		agg.AvgStrongScore = &avg
	}
	agg.LastStrongAt = lastStrongAt

	return agg
}

// beatsTop orders candidates for the top offer: score, then most recent
// publishedAt (nulls last), then most recent updatedAt (nulls last), then
// smallest offer id so the result is stable under input permutation.
func beatsTop(offer, top *models.OfferAggregationView) bool {
	if offer.Score != top.Score {
		return offer.Score > top.Score
	}
	if c := compareStamps(offer.PublishedAt, top.PublishedAt); c != 0 {
		return c > 0
	}
	if c := compareStamps(offer.UpdatedAt, top.UpdatedAt); c != 0 {
		return c > 0
	}
	return offer.OfferID < top.OfferID
}

// compareStamps returns 1 when a is more recent, -1 when b is, 0 on ties.
// A nil stamp always loses to a set one.
func compareStamps(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.After(*b):
		return 1
	case b.After(*a):
		return -1
	default:
		return 0
	}
}

// activityStamp is publishedAt falling back to updatedAt
func activityStamp(offer *models.OfferAggregationView) *time.Time {
	if offer.PublishedAt != nil {
		return offer.PublishedAt
	}
	return offer.UpdatedAt
}
