// Package directory harvests company candidates from public company
// directories. Two scraper shapes cover the sources in use: a single
// page of external links, and a listing whose detail pages carry the
// company website.
package directory

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/fetch"
	"github.com/fxlatam/indago/internal/identity"
	"github.com/fxlatam/indago/internal/models"
)

// Source kinds
const (
	KindSinglePage    = "single_page"
	KindListingDetail = "listing_detail"
)

// maxCandidateURLLength bounds harvested anchor URLs
const maxCandidateURLLength = 300

// excludedDomains are never company websites. The source's own host is
// excluded per source at runtime.
var excludedDomains = []string{
	"linkedin.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"github.com",
}

// ignoredExtensions are anchor targets that cannot be a company homepage
var ignoredExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".gz": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".css": true,
	".js": true,
}

// Source scrapes one configured directory
type Source struct {
	config  common.DirectorySourceConfig
	fetcher *fetch.PageFetcher
	logger  arbor.ILogger
}

// NewSource creates a scraper for one directory configuration
func NewSource(logger arbor.ILogger, fetcher *fetch.PageFetcher, config common.DirectorySourceConfig) *Source {
	return &Source{
		config:  config,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Name returns the configured source name
func (s *Source) Name() string {
	return s.config.Name
}

// FetchCompanies scrapes the directory and returns company candidates
// with identity evidence. Per-page errors are logged and skipped.
func (s *Source) FetchCompanies(ctx context.Context) ([]models.CompanyEvidence, error) {
	switch s.config.Kind {
	case KindSinglePage:
		return s.fetchSinglePage(ctx)
	case KindListingDetail:
		return s.fetchListingDetail(ctx)
	}
	return nil, fmt.Errorf("unknown directory kind: %s", s.config.Kind)
}

// fetchSinglePage harvests external anchors from one directory page.
// The anchor text is the raw company name, the target the website.
func (s *Source) fetchSinglePage(ctx context.Context) ([]models.CompanyEvidence, error) {
	doc, baseURL, err := s.fetchDocument(ctx, s.config.URL)
	if err != nil {
		return nil, err
	}

	excluded := s.excluded(baseURL)
	seen := map[string]bool{}
	var candidates []models.CompanyEvidence

	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		website := s.resolveWebsite(baseURL, href, excluded)
		if website == "" {
			return true
		}
		domain := identity.ExtractDomain(website)
		if seen[domain] {
			return true
		}
		seen[domain] = true

		name := strings.TrimSpace(anchor.Text())
		candidates = append(candidates, identity.Evidence(name, website))
		return s.config.MaxCompanies <= 0 || len(candidates) < s.config.MaxCompanies
	})

	s.logger.Info().
		Str("source", s.config.Name).
		Int("candidates", len(candidates)).
		Msg("Directory scrape complete")

	return candidates, nil
}

// fetchListingDetail harvests detail-page links from the listing, then
// pulls each detail page for the company name and website.
func (s *Source) fetchListingDetail(ctx context.Context) ([]models.CompanyEvidence, error) {
	doc, baseURL, err := s.fetchDocument(ctx, s.config.URL)
	if err != nil {
		return nil, err
	}

	detailURLs := s.detailLinks(doc, baseURL)
	excluded := s.excluded(baseURL)
	seen := map[string]bool{}
	var candidates []models.CompanyEvidence

	for _, detailURL := range detailURLs {
		if s.config.MaxCompanies > 0 && len(candidates) >= s.config.MaxCompanies {
			break
		}
		candidate, err := s.scrapeDetail(ctx, detailURL, excluded)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", detailURL).Msg("Failed to scrape detail page")
			continue
		}
		if candidate == nil || !candidate.HasIdentity() {
			continue
		}
		key := candidateKey(candidate)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, *candidate)
	}

	s.logger.Info().
		Str("source", s.config.Name).
		Int("detail_pages", len(detailURLs)).
		Int("candidates", len(candidates)).
		Msg("Directory scrape complete")

	return candidates, nil
}

// detailLinks collects same-host anchors matching the detail path
// pattern, deduplicated and capped
func (s *Source) detailLinks(doc *goquery.Document, baseURL *url.URL) []string {
	seen := map[string]bool{}
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		resolved := resolveURL(baseURL, href)
		if resolved == nil || resolved.Hostname() != baseURL.Hostname() {
			return true
		}
		if s.config.DetailPathPattern == "" || !strings.Contains(resolved.Path, s.config.DetailPathPattern) {
			return true
		}
		link := resolved.String()
		if len(link) > maxCandidateURLLength || seen[link] {
			return true
		}
		seen[link] = true
		links = append(links, link)
		return s.config.MaxDetailPages <= 0 || len(links) < s.config.MaxDetailPages
	})

	return links
}

// scrapeDetail extracts the company name and website from a detail page
func (s *Source) scrapeDetail(ctx context.Context, detailURL string, excluded []string) (*models.CompanyEvidence, error) {
	doc, baseURL, err := s.fetchDocument(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var websites []string
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		if website := s.resolveWebsite(baseURL, href, excluded); website != "" {
			websites = append(websites, website)
		}
		return s.config.MaxLinksPerDetail <= 0 || len(websites) < s.config.MaxLinksPerDetail
	})

	website := identity.PickWebsiteURL(websites, excluded)
	if name == "" && website == "" {
		return nil, nil
	}
	evidence := identity.Evidence(name, website)
	return &evidence, nil
}

// resolveWebsite turns an anchor href into a candidate company website,
// or "" when the target fails the URL-shape or domain filters
func (s *Source) resolveWebsite(baseURL *url.URL, href string, excluded []string) string {
	resolved := resolveURL(baseURL, href)
	if resolved == nil {
		return ""
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	raw := resolved.String()
	if len(raw) > maxCandidateURLLength {
		return ""
	}
	if ignoredExtensions[strings.ToLower(path.Ext(resolved.Path))] {
		return ""
	}
	domain := identity.ExtractDomain(raw)
	if domain == "" || identity.DomainExcluded(domain, excluded) {
		return ""
	}
	return raw
}

// excluded is the fixed exclusion set plus the source's own host
func (s *Source) excluded(baseURL *url.URL) []string {
	host := strings.TrimPrefix(strings.ToLower(baseURL.Hostname()), "www.")
	return append([]string{host}, excludedDomains...)
}

func (s *Source) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid directory url %s: %w", pageURL, err)
	}
	html, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, parsed, nil
}

func resolveURL(baseURL *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	return baseURL.ResolveReference(ref)
}

func candidateKey(evidence *models.CompanyEvidence) string {
	if evidence.WebsiteDomain != nil && *evidence.WebsiteDomain != "" {
		return "d:" + *evidence.WebsiteDomain
	}
	if evidence.NormalizedName != nil {
		return "n:" + *evidence.NormalizedName
	}
	return ""
}
