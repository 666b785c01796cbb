// Package identity resolves company identity evidence: the website domain
// is the strong key, the normalized company name the fallback.
package identity

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fxlatam/indago/internal/models"
)

// legal suffixes dropped from the end of normalized names. Conservative on
// purpose: a too-aggressive list merges unrelated companies.
var legalSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true,
	"sa": true, "srl": true, "sas": true, "sac": true,
}

// NormalizeCompanyName produces the fallback identity key for a company:
// lowercase, diacritics stripped, punctuation collapsed to spaces, legal
// suffixes removed from the tail. Returns "" when nothing survives.
func NormalizeCompanyName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return ""
	}

	decomposed := norm.NFD.String(lowered)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 {
		last := words[len(words)-1]
		if legalSuffixes[last] {
			words = words[:len(words)-1]
			continue
		}
		// dotted forms arrive as single letters: "S.A." becomes "s a"
		if len(last) == 1 {
			i := len(words)
			for i > 1 && len(words[i-1]) == 1 {
				i--
			}
			if run := words[i:]; len(run) > 1 && legalSuffixes[strings.Join(run, "")] {
				words = words[:i]
				continue
			}
		}
		break
	}
	return strings.Join(words, " ")
}

// ExtractDomain derives the strong identity key from a website URL:
// lowercase host, leading "www." stripped. A host without a dot yields ""
// (not a usable public domain).
func ExtractDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// PickWebsiteURL selects the first http(s) candidate with a usable domain
// outside the excluded set
func PickWebsiteURL(candidates []string, excludedDomains []string) string {
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		domain := ExtractDomain(trimmed)
		if domain == "" || DomainExcluded(domain, excludedDomains) {
			continue
		}
		return trimmed
	}
	return ""
}

// DomainExcluded reports whether a domain equals or is a subdomain of any
// excluded entry
func DomainExcluded(domain string, excluded []string) bool {
	for _, e := range excluded {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if domain == e || strings.HasSuffix(domain, "."+e) {
			return true
		}
	}
	return false
}

// Evidence assembles company identity evidence from a raw name and website
// URL. Either input may be empty; callers check HasIdentity before upsert.
func Evidence(rawName, websiteURL string) models.CompanyEvidence {
	evidence := models.CompanyEvidence{}

	if trimmed := strings.TrimSpace(rawName); trimmed != "" {
		evidence.RawName = &rawName
		display := strings.Join(strings.Fields(trimmed), " ")
		evidence.DisplayName = &display
		if normalized := NormalizeCompanyName(trimmed); normalized != "" {
			evidence.NormalizedName = &normalized
		}
	}

	if trimmed := strings.TrimSpace(websiteURL); trimmed != "" {
		if domain := ExtractDomain(trimmed); domain != "" {
			evidence.WebsiteURL = &trimmed
			evidence.WebsiteDomain = &domain
		}
	}

	return evidence
}
