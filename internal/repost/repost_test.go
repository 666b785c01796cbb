package repost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestDetectNoCandidates(t *testing.T) {
	decision := Detect(Incoming{Title: "Backend Developer"}, nil, DefaultSimilarityThreshold)

	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, ReasonNoCandidates, decision.Reason)
}

func TestDetectExactTitle(t *testing.T) {
	incoming := Incoming{
		Title:       "FULL-STACK Developer (React/Node)",
		Description: "completely different text",
	}
	candidates := []Candidate{
		{ID: 7, Title: "full stack developer react node", Description: "whatever"},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, int64(7), decision.CanonicalOfferID)
	assert.Equal(t, ReasonExactTitle, decision.Reason)
}

func TestDetectExactTitlePicksFirstInInputOrder(t *testing.T) {
	incoming := Incoming{Title: "Data Engineer", Description: "x"}
	candidates := []Candidate{
		{ID: 9, Title: "data engineer"},
		{ID: 2, Title: "Data Engineer"},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, int64(9), decision.CanonicalOfferID)
}

func TestDetectMissingDescription(t *testing.T) {
	incoming := Incoming{Title: "Backend Developer", Description: "  -- "}
	candidates := []Candidate{
		{ID: 1, Title: "Senior Backend Developer", Description: "text"},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, ReasonMissingDescription, decision.Reason)
}

func TestDetectDescriptionSimilarity(t *testing.T) {
	incoming := Incoming{
		Title:       "Backend Developer",
		Description: "python python python node node javascript",
	}
	candidates := []Candidate{
		{ID: 4, Title: "Sr Backend Developer", Description: "python python python node node javascript"},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, int64(4), decision.CanonicalOfferID)
	assert.Equal(t, ReasonDescSimilarity, decision.Reason)
	assert.Equal(t, 1.0, decision.Similarity)
}

func TestDetectBelowThreshold(t *testing.T) {
	incoming := Incoming{
		Title:       "Backend Developer",
		Description: "python golang kubernetes",
	}
	candidates := []Candidate{
		{ID: 4, Title: "Other", Description: "php laravel mysql apache nginx"},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, ReasonDescBelowThreshold, decision.Reason)
	assert.Less(t, decision.Similarity, DefaultSimilarityThreshold)
}

func TestDetectTitleMismatchWhenNoComparableDescriptions(t *testing.T) {
	incoming := Incoming{Title: "Backend Developer", Description: "python"}
	candidates := []Candidate{
		{ID: 4, Title: "Other Role", Description: "   "},
	}

	decision := Detect(incoming, candidates, DefaultSimilarityThreshold)

	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, ReasonTitleMismatch, decision.Reason)
}

func TestDetectTieBreaksAreStable(t *testing.T) {
	incoming := Incoming{Title: "X", Description: "go rust zig"}
	// identical descriptions: similarity ties at 1.0
	older := Candidate{ID: 5, Title: "A", Description: "go rust zig", PublishedAt: ts("2026-01-01T00:00:00Z")}
	newer := Candidate{ID: 8, Title: "B", Description: "go rust zig", LastSeenAt: ts("2026-06-01T00:00:00Z")}

	forward := Detect(incoming, []Candidate{older, newer}, DefaultSimilarityThreshold)
	reversed := Detect(incoming, []Candidate{newer, older}, DefaultSimilarityThreshold)

	assert.Equal(t, forward, reversed)
	assert.True(t, forward.IsDuplicate)
	assert.Equal(t, int64(8), forward.CanonicalOfferID, "most recent candidate wins the tie")
}

func TestDetectTieBreakFallsBackToSmallestID(t *testing.T) {
	incoming := Incoming{Title: "X", Description: "go rust zig"}
	when := ts("2026-03-01T00:00:00Z")
	a := Candidate{ID: 12, Title: "A", Description: "go rust zig", PublishedAt: when}
	b := Candidate{ID: 3, Title: "B", Description: "go rust zig", UpdatedAt: when}

	forward := Detect(incoming, []Candidate{a, b}, DefaultSimilarityThreshold)
	reversed := Detect(incoming, []Candidate{b, a}, DefaultSimilarityThreshold)

	assert.Equal(t, forward, reversed)
	assert.Equal(t, int64(3), forward.CanonicalOfferID)
}

func TestSimilarityIsMultisetOverlap(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		cand     string
		expected float64
	}{
		{"identical multiset", "a a b", "a a b", 1.0},
		{"repeat counts matter", "a a a", "a", 1.0 / 3.0},
		{"disjoint", "a b c", "x y z", 0.0},
		{"longer side divides", "a b", "a b c d", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incoming := Incoming{Title: "t", Description: tt.in}
			candidates := []Candidate{{ID: 1, Title: "other", Description: tt.cand}}
			decision := Detect(incoming, candidates, 2.0) // force the below-threshold branch
			assert.InDelta(t, tt.expected, decision.Similarity, 1e-9)
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("Backend Developer", "python services")
	require.NotNil(t, fp)
	assert.Len(t, *fp, 64)

	// normalization-equivalent inputs share a fingerprint
	fp2 := Fingerprint("BACKEND-DEVELOPER", "Python / Services")
	require.NotNil(t, fp2)
	assert.Equal(t, *fp, *fp2)

	// different content diverges
	fp3 := Fingerprint("Backend Developer", "java services")
	require.NotNil(t, fp3)
	assert.NotEqual(t, *fp, *fp3)
}

func TestFingerprintAbsentWhenComponentEmpty(t *testing.T) {
	assert.Nil(t, Fingerprint("", "description"))
	assert.Nil(t, Fingerprint("title", ""))
	assert.Nil(t, Fingerprint("title", "()[]--"))
}
