// Package discovery resolves which ATS a company uses by crawling its
// website: a sweep over likely career-page paths, then a bounded 1-hop
// follow of career-looking links, with provider detectors run over
// every fetched page.
package discovery

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
)

// Detector recognizes one provider's tenant references in page HTML
type Detector interface {
	Provider() string
	Detect(html string) (tenantKey, evidenceURL string, ok bool)
}

// Outcome discriminates discovery results
type Outcome string

// Outcome values
const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Result is the decision for one company website
type Result struct {
	Outcome     Outcome
	Provider    string
	TenantKey   string
	EvidenceURL string
	Message     string // set on OutcomeError
}

// ignoredExtensions are anchor targets that can never host a careers page
var ignoredExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".gz": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".css": true,
	".js": true, ".xml": true,
}

// Crawler runs the two-phase ATS probe for a single website
type Crawler struct {
	config    *common.DiscoveryConfig
	fetcher   *fetch.PageFetcher
	detectors []Detector
	logger    arbor.ILogger
}

// NewCrawler creates a discovery crawler
func NewCrawler(logger arbor.ILogger, config *common.DiscoveryConfig, fetcher *fetch.PageFetcher, detectors []Detector) *Crawler {
	return &Crawler{
		config:    config,
		fetcher:   fetcher,
		detectors: detectors,
		logger:    logger,
	}
}

// Discover probes one company website. Per-URL fetch errors are logged
// and skipped; only an unusable input URL yields OutcomeError.
func (c *Crawler) Discover(ctx context.Context, websiteURL string) Result {
	base, err := normalizeBaseURL(websiteURL)
	if err != nil {
		return Result{Outcome: OutcomeError, Message: err.Error()}
	}

	type page struct {
		url  string
		html string
	}
	var fetched []page

	for _, candidate := range c.candidateURLs(base) {
		html, err := c.fetcher.FetchHTML(ctx, candidate)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", candidate).Msg("Candidate fetch failed")
			continue
		}
		fetched = append(fetched, page{url: candidate, html: html})
		if result, ok := c.detect(html, candidate); ok {
			return result
		}
	}

	checked := make(map[string]bool, len(fetched))
	for _, p := range fetched {
		checked[p.url] = true
	}

	var links []string
	seen := map[string]bool{}
	for _, p := range fetched {
		for _, link := range c.followCandidates(base, p.html) {
			if checked[link] || seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
			if len(links) >= c.config.MaxLinksToFollow {
				break
			}
		}
		if len(links) >= c.config.MaxLinksToFollow {
			break
		}
	}

	for _, link := range links {
		html, err := c.fetcher.FetchHTML(ctx, link)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", link).Msg("Follow fetch failed")
			continue
		}
		if result, ok := c.detect(html, link); ok {
			return result
		}
	}

	return Result{Outcome: OutcomeNotFound}
}

// detect runs every provider detector over the page's scan window
func (c *Crawler) detect(html, pageURL string) (Result, bool) {
	window := html
	if len(window) > c.config.MaxHTMLChars {
		window = window[:c.config.MaxHTMLChars]
	}
	for _, detector := range c.detectors {
		tenant, evidence, ok := detector.Detect(window)
		if !ok {
			continue
		}
		c.logger.Info().
			Str("provider", detector.Provider()).
			Str("tenant", tenant).
			Str("url", pageURL).
			Msg("ATS tenant detected")
		return Result{
			Outcome:     OutcomeFound,
			Provider:    detector.Provider(),
			TenantKey:   tenant,
			EvidenceURL: evidence,
		}, true
	}
	return Result{}, false
}

// candidateURLs is the base URL plus the configured career paths
func (c *Crawler) candidateURLs(base *url.URL) []string {
	urls := []string{base.String()}
	for _, p := range c.config.CandidatePaths {
		urls = append(urls, base.String()+p)
	}
	return urls
}

// followCandidates extracts the 1-hop follow set from page HTML. An
// anchor survives iff its shape, host and keywords all pass; known ATS
// hosts are allowed even off-site.
func (c *Crawler) followCandidates(base *url.URL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		link := resolved.String()
		if len(link) > c.config.MaxURLLength {
			return
		}
		if ignoredExtensions[strings.ToLower(path.Ext(resolved.Path))] {
			return
		}
		host := strings.ToLower(resolved.Hostname())
		if host != strings.ToLower(base.Hostname()) && !c.allowedATSHost(host) {
			return
		}
		if !c.hasLinkKeyword(strings.ToLower(link)) {
			return
		}
		links = append(links, link)
	})
	return links
}

func (c *Crawler) allowedATSHost(host string) bool {
	for _, allowed := range c.config.AllowedATSHosts {
		if host == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (c *Crawler) hasLinkKeyword(lowerURL string) bool {
	for _, keyword := range c.config.LinkKeywords {
		if strings.Contains(lowerURL, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// normalizeBaseURL reduces a website URL to scheme + host. A host
// without a dot is not a crawlable public site.
func normalizeBaseURL(websiteURL string) (*url.URL, error) {
	raw := strings.TrimSpace(websiteURL)
	if raw == "" {
		return nil, fmt.Errorf("empty website url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable website url %q: %w", websiteURL, err)
	}
	if !strings.Contains(parsed.Hostname(), ".") {
		return nil, fmt.Errorf("website url %q has no usable host", websiteURL)
	}
	scheme := parsed.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: parsed.Host}, nil
}
