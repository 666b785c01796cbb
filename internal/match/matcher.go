// Package match finds catalog keywords and phrases in offer text using
// anchored consecutive-token comparison over the normalized token stream.
package match

import (
	"github.com/fxlatam/indago/internal/catalog"
	"github.com/fxlatam/indago/internal/textnorm"
)

// Field names a matched offer field
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
)

// Hit records one alias or phrase occurrence. Negated hits are annotated,
// not removed; the scorer decides what negation means.
type Hit struct {
	KeywordID     string   `json:"keyword_id,omitempty"`
	PhraseID      string   `json:"phrase_id,omitempty"`
	CategoryID    string   `json:"category_id,omitempty"`
	Field         Field    `json:"field"`
	TokenIndex    int      `json:"token_index"`
	MatchedTokens []string `json:"matched_tokens"`
	IsNegated     bool     `json:"is_negated"`
}

// Result is the full match output for one offer
type Result struct {
	KeywordHits      []Hit `json:"keyword_hits"`
	PhraseHits       []Hit `json:"phrase_hits"`
	UniqueCategories int   `json:"unique_categories"` // counted before negation filtering
	UniqueKeywords   int   `json:"unique_keywords"`   // counted before negation filtering
}

// defaultNegationCues covers English and Spanish negations. The list is
// checked against normalized tokens, so diacritic forms are already folded.
var defaultNegationCues = []string{
	"no", "not", "without", "non",
	"sin", "ningun", "ninguna", "nunca",
}

const defaultNegationWindow = 3

// Matcher scans offer fields against a compiled catalog
type Matcher struct {
	catalog      *catalog.Catalog
	cues         map[string]bool
	windowBefore int
	windowAfter  int
}

// Option configures a Matcher
type Option func(*Matcher)

// WithNegationWindow overrides the token window checked around each hit
func WithNegationWindow(before, after int) Option {
	return func(m *Matcher) {
		if before > 0 {
			m.windowBefore = before
		}
		if after > 0 {
			m.windowAfter = after
		}
	}
}

// WithNegationCues replaces the negation cue list
func WithNegationCues(cues []string) Option {
	return func(m *Matcher) {
		m.cues = make(map[string]bool, len(cues))
		for _, cue := range cues {
			m.cues[cue] = true
		}
	}
}

// NewMatcher creates a matcher over a compiled catalog
func NewMatcher(cat *catalog.Catalog, opts ...Option) *Matcher {
	m := &Matcher{
		catalog:      cat,
		cues:         make(map[string]bool, len(defaultNegationCues)),
		windowBefore: defaultNegationWindow,
		windowAfter:  defaultNegationWindow,
	}
	for _, cue := range defaultNegationCues {
		m.cues[cue] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match scans the title and description of an offer. Company names are
// intentionally not matched. All hits are preserved; category-level
// deduplication is the scorer's job.
func (m *Matcher) Match(title, description string) *Result {
	result := &Result{}

	m.scanField(FieldTitle, textnorm.Tokens(title), result)
	m.scanField(FieldDescription, textnorm.Tokens(description), result)

	categories := make(map[string]bool)
	keywords := make(map[string]bool)
	for _, h := range result.KeywordHits {
		categories[h.CategoryID] = true
		keywords[h.KeywordID] = true
	}
	result.UniqueCategories = len(categories)
	result.UniqueKeywords = len(keywords)

	return result
}

func (m *Matcher) scanField(field Field, tokens []string, result *Result) {
	if len(tokens) == 0 {
		return
	}

	for i := range tokens {
		for _, kw := range m.catalog.Keywords {
			for _, alias := range kw.AliasTokens {
				if !matchAt(tokens, i, alias) {
					continue
				}
				result.KeywordHits = append(result.KeywordHits, Hit{
					KeywordID:     kw.ID,
					CategoryID:    kw.CategoryID,
					Field:         field,
					TokenIndex:    i,
					MatchedTokens: tokens[i : i+len(alias)],
					IsNegated:     m.negatedAt(tokens, i, len(alias)),
				})
			}
		}
		for _, ph := range m.catalog.Phrases {
			if !matchAt(tokens, i, ph.Tokens) {
				continue
			}
			result.PhraseHits = append(result.PhraseHits, Hit{
				PhraseID:      ph.ID,
				Field:         field,
				TokenIndex:    i,
				MatchedTokens: tokens[i : i+len(ph.Tokens)],
				IsNegated:     m.negatedAt(tokens, i, len(ph.Tokens)),
			})
		}
	}
}

// matchAt reports whether the pattern occurs at position i. The anchor
// comparison against pattern[0] keeps the scan O(N·K) in practice.
func matchAt(tokens []string, i int, pattern []string) bool {
	if i+len(pattern) > len(tokens) {
		return false
	}
	if tokens[i] != pattern[0] {
		return false
	}
	for j := 1; j < len(pattern); j++ {
		if tokens[i+j] != pattern[j] {
			return false
		}
	}
	return true
}

// negatedAt checks the token windows before and after a hit for a cue
func (m *Matcher) negatedAt(tokens []string, i, length int) bool {
	start := i - m.windowBefore
	if start < 0 {
		start = 0
	}
	for j := start; j < i; j++ {
		if m.cues[tokens[j]] {
			return true
		}
	}
	end := i + length + m.windowAfter
	if end > len(tokens) {
		end = len(tokens)
	}
	for j := i + length; j < end; j++ {
		if m.cues[tokens[j]] {
			return true
		}
	}
	return false
}
