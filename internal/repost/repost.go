// Package repost decides whether an incoming offer duplicates a canonical
// offer of the same company, using an exact-title fast path and a multiset
// description-overlap fallback with stable tie-breaks.
package repost

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/textnorm"
)

// Decision reasons
const (
	ReasonNoCandidates       = "no_candidates"
	ReasonExactTitle         = "exact_title"
	ReasonMissingDescription = "missing_description"
	ReasonDescSimilarity     = "desc_similarity"
	ReasonDescBelowThreshold = "desc_below_threshold"
	ReasonTitleMismatch      = "title_mismatch"
)

// DefaultSimilarityThreshold is the production description-overlap cutoff
const DefaultSimilarityThreshold = 0.90

// fingerprintSeparator joins the normalized title and description before
// hashing. Changing it invalidates every stored fingerprint.
const fingerprintSeparator = "\n--\n"

// Incoming is the offer being tested
type Incoming struct {
	Title       string
	Description string
}

// Candidate is one canonical offer of the same company, preselected by
// fingerprint
type Candidate struct {
	ID          int64
	Title       string
	Description string
	LastSeenAt  *time.Time
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

// Decision is the detector outcome
type Decision struct {
	IsDuplicate      bool    `json:"is_duplicate"`
	CanonicalOfferID int64   `json:"canonical_offer_id,omitempty"`
	Reason           string  `json:"reason"`
	Similarity       float64 `json:"similarity,omitempty"`
}

// Fingerprint hashes the normalized title and description. It returns nil
// when either component normalizes to zero tokens; such offers never take
// part in fingerprint-based candidate lookup.
func Fingerprint(title, description string) *string {
	titleTokens := textnorm.Tokens(title)
	descTokens := textnorm.Tokens(description)
	if len(titleTokens) == 0 || len(descTokens) == 0 {
		return nil
	}
	content := strings.Join(titleTokens, " ") + fingerprintSeparator + strings.Join(descTokens, " ")
	sum := sha256.Sum256([]byte(content))
	fp := hex.EncodeToString(sum[:])
	return &fp
}

// Detect runs the duplicate decision ladder over the candidate set.
// The decision is deterministic: the fallback tie-breaks on similarity,
// then recency, then smallest id, so candidate order never matters there.
func Detect(incoming Incoming, candidates []Candidate, threshold float64) Decision {
	if len(candidates) == 0 {
		return Decision{Reason: ReasonNoCandidates}
	}

	incomingTitle := textnorm.Tokens(incoming.Title)
	for _, c := range candidates {
		if tokensEqual(incomingTitle, textnorm.Tokens(c.Title)) {
			return Decision{
				IsDuplicate:      true,
				CanonicalOfferID: c.ID,
				Reason:           ReasonExactTitle,
			}
		}
	}

	incomingDesc := textnorm.Tokens(incoming.Description)
	if len(incomingDesc) == 0 {
		return Decision{Reason: ReasonMissingDescription}
	}

	var (
		best     *Candidate
		bestSim  float64
		compared bool
	)
	for i := range candidates {
		c := &candidates[i]
		candDesc := textnorm.Tokens(c.Description)
		if len(candDesc) == 0 {
			continue
		}
		sim := similarity(incomingDesc, candDesc)
		compared = true
		if best == nil || betterThan(c, sim, best, bestSim) {
			best = c
			bestSim = sim
		}
	}

	if !compared {
		// nothing had a description to compare against
		return Decision{Reason: ReasonTitleMismatch}
	}
	if bestSim >= threshold {
		return Decision{
			IsDuplicate:      true,
			CanonicalOfferID: best.ID,
			Reason:           ReasonDescSimilarity,
			Similarity:       bestSim,
		}
	}
	return Decision{Reason: ReasonDescBelowThreshold, Similarity: bestSim}
}

// similarity is the multiset overlap of two token sequences over the
// length of the longer one
func similarity(in, cand []string) float64 {
	counts := make(map[string]int, len(in))
	for _, tok := range in {
		counts[tok]++
	}
	overlap := 0
	for _, tok := range cand {
		if counts[tok] > 0 {
			counts[tok]--
			overlap++
		}
	}
	denom := len(in)
	if len(cand) > denom {
		denom = len(cand)
	}
	if denom == 0 {
		return 0
	}
	return float64(overlap) / float64(denom)
}

// betterThan orders candidates by similarity, then recency, then smallest id
func betterThan(c *Candidate, sim float64, best *Candidate, bestSim float64) bool {
	if sim != bestSim {
		return sim > bestSim
	}
	cRecency, bestRecency := recency(c), recency(best)
	if !cRecency.Equal(bestRecency) {
		return cRecency.After(bestRecency)
	}
	return c.ID < best.ID
}

// recency is the most recent of the candidate's timestamps; candidates
// with no timestamps sort oldest
func recency(c *Candidate) time.Time {
	var latest time.Time
	for _, ts := range []*time.Time{c.LastSeenAt, c.PublishedAt, c.UpdatedAt} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest
}

func tokensEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
