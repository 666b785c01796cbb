// Package score turns match results into a 0-10 offer score with a full
// audit trail of category, bucket and phrase contributions.
package score

import (
	"math"
	"sort"
	"strings"

	"github.com/fxlatam/indago/internal/catalog"
	"github.com/fxlatam/indago/internal/match"
)

// Bucket groups categories by their id prefix
type Bucket string

const (
	BucketDirectFX      Bucket = "direct_fx"
	BucketIntlFootprint Bucket = "intl_footprint"
	BucketBusinessModel Bucket = "business_model"
	BucketTechProxy     Bucket = "tech_proxy"
)

// BucketFor maps a category id to its bucket. Unknown prefixes fall into
// tech_proxy.
func BucketFor(categoryID string) Bucket {
	switch {
	case strings.HasPrefix(categoryID, "cat_fx_"):
		return BucketDirectFX
	case strings.HasPrefix(categoryID, "cat_intl_"):
		return BucketIntlFootprint
	case strings.HasPrefix(categoryID, "cat_biz_"):
		return BucketBusinessModel
	default:
		return BucketTechProxy
	}
}

// Params are the scoring weights and thresholds
type Params struct {
	TierWeights       map[int]float64
	PhraseTierWeights map[int]float64
	FieldWeights      map[match.Field]float64
	BucketCaps        map[Bucket]float64
	FXCoreThreshold   float64
	NoFXMaxScore      float64
}

// DefaultParams returns the production scoring configuration
func DefaultParams() Params {
	return Params{
		TierWeights:       map[int]float64{1: 1.0, 2: 2.0, 3: 3.0},
		PhraseTierWeights: map[int]float64{1: 0.5, 2: 1.0, 3: 1.5},
		FieldWeights: map[match.Field]float64{
			match.FieldTitle:       1.5,
			match.FieldDescription: 1.0,
		},
		BucketCaps: map[Bucket]float64{
			BucketDirectFX:      6.0,
			BucketIntlFootprint: 3.0,
			BucketBusinessModel: 2.0,
			BucketTechProxy:     1.5,
		},
		FXCoreThreshold: 3.0,
		NoFXMaxScore:    4.0,
	}
}

// CategoryContribution is one category's line in the score breakdown.
// HitCount includes negated hits; Points only reflects surviving ones.
type CategoryContribution struct {
	CategoryID string  `json:"category_id"`
	HitCount   int     `json:"hit_count"`
	Points     float64 `json:"points"`
}

// PhraseContribution is one phrase's line in the score breakdown
type PhraseContribution struct {
	PhraseID string  `json:"phrase_id"`
	HitCount int     `json:"hit_count"`
	Points   float64 `json:"points"`
}

// Reasons is the serialized audit trail stored next to every score
type Reasons struct {
	RawScore           float64                `json:"raw_score"`
	FinalScore         int                    `json:"final_score"`
	Categories         []CategoryContribution `json:"categories"`
	Phrases            []PhraseContribution   `json:"phrases,omitempty"`
	UniqueCategories   int                    `json:"unique_categories"`
	UniqueKeywords     int                    `json:"unique_keywords"`
	NegatedKeywordHits int                    `json:"negated_keyword_hits"`
	NegatedPhraseHits  int                    `json:"negated_phrase_hits"`
	BucketScores       map[string]float64     `json:"bucket_scores"` // after caps
	FXCore             bool                   `json:"fx_core"`
	NoFXGuardApplied   bool                   `json:"no_fx_guard_applied"`
}

// Score is the scorer output for one offer
type Score struct {
	Score         int
	TopCategoryID string // empty when nothing contributed
	Reasons       Reasons
}

// Scorer applies the tier/field/bucket model over match results
type Scorer struct {
	catalog     *catalog.Catalog
	params      Params
	phraseTiers map[string]int
}

// NewScorer creates a scorer for a compiled catalog
func NewScorer(cat *catalog.Catalog, params Params) *Scorer {
	tiers := make(map[string]int, len(cat.Phrases))
	for _, ph := range cat.Phrases {
		tiers[ph.ID] = ph.Tier
	}
	return &Scorer{catalog: cat, params: params, phraseTiers: tiers}
}

// Score computes the final 0-10 score for one offer's match result
func (s *Scorer) Score(result *match.Result) Score {
	reasons := Reasons{
		UniqueCategories: result.UniqueCategories,
		UniqueKeywords:   result.UniqueKeywords,
		BucketScores:     make(map[string]float64, 4),
	}

	// Negation gating: negated hits are excluded from points but stay in
	// the hit counts.
	categoryHits := make(map[string]int)
	categoryPoints := make(map[string]float64)
	for _, h := range result.KeywordHits {
		categoryHits[h.CategoryID]++
		if h.IsNegated {
			reasons.NegatedKeywordHits++
			continue
		}
		cat, ok := s.catalog.Categories[h.CategoryID]
		if !ok {
			continue
		}
		points := s.params.TierWeights[cat.Tier] * s.params.FieldWeights[h.Field]
		if points > categoryPoints[h.CategoryID] {
			categoryPoints[h.CategoryID] = points
		}
	}

	// Deterministic contribution order: catalog insertion order, then a
	// stable sort by points descending. The first entry is the top category.
	contributions := make([]CategoryContribution, 0, len(categoryHits))
	for id := range categoryHits {
		contributions = append(contributions, CategoryContribution{
			CategoryID: id,
			HitCount:   categoryHits[id],
			Points:     categoryPoints[id],
		})
	}
	sort.Slice(contributions, func(i, j int) bool {
		return s.catalog.CategoryOrder(contributions[i].CategoryID) < s.catalog.CategoryOrder(contributions[j].CategoryID)
	})
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].Points > contributions[j].Points
	})
	reasons.Categories = contributions

	topCategoryID := ""
	if len(contributions) > 0 && contributions[0].Points > 0 {
		topCategoryID = contributions[0].CategoryID
	}

	// Bucket sums before caps decide the FX core state
	bucketSums := make(map[Bucket]float64, 4)
	for _, c := range contributions {
		bucketSums[BucketFor(c.CategoryID)] += c.Points
	}
	reasons.FXCore = bucketSums[BucketDirectFX] >= s.params.FXCoreThreshold

	var bucketTotal float64
	for bucket, sum := range bucketSums {
		if limit, ok := s.params.BucketCaps[bucket]; ok && sum > limit {
			sum = limit
		}
		reasons.BucketScores[string(bucket)] = sum
		bucketTotal += sum
	}

	// Phrase contributions: per-phrase max, summed
	phraseHits := make(map[string]int)
	phrasePoints := make(map[string]float64)
	for _, h := range result.PhraseHits {
		phraseHits[h.PhraseID]++
		if h.IsNegated {
			reasons.NegatedPhraseHits++
			continue
		}
		tier, ok := s.phraseTiers[h.PhraseID]
		if !ok {
			continue
		}
		points := s.params.PhraseTierWeights[tier] * s.params.FieldWeights[h.Field]
		if points > phrasePoints[h.PhraseID] {
			phrasePoints[h.PhraseID] = points
		}
	}

	var phraseTotal float64
	phraseContribs := make([]PhraseContribution, 0, len(phraseHits))
	for id := range phraseHits {
		phraseContribs = append(phraseContribs, PhraseContribution{
			PhraseID: id,
			HitCount: phraseHits[id],
			Points:   phrasePoints[id],
		})
		phraseTotal += phrasePoints[id]
	}
	sort.Slice(phraseContribs, func(i, j int) bool {
		if phraseContribs[i].Points != phraseContribs[j].Points {
			return phraseContribs[i].Points > phraseContribs[j].Points
		}
		return phraseContribs[i].PhraseID < phraseContribs[j].PhraseID
	})
	reasons.Phrases = phraseContribs

	raw := bucketTotal + phraseTotal
	reasons.RawScore = raw
	if !reasons.FXCore && raw > s.params.NoFXMaxScore {
		raw = s.params.NoFXMaxScore
		reasons.NoFXGuardApplied = true
	}

	final := int(math.Round(clamp(raw, 0, 10)))
	reasons.FinalScore = final

	return Score{
		Score:         final,
		TopCategoryID: topCategoryID,
		Reasons:       reasons,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
