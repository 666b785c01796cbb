package lever

import "regexp"

// Tenant references recognized inside company website HTML. Both the
// hosted job site and the postings API embed the tenant key as the first
// path segment.
var tenantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://jobs\.(?:eu\.)?lever\.co/([A-Za-z0-9][A-Za-z0-9_-]*)`),
	regexp.MustCompile(`https?://api\.lever\.co/v0/postings/([A-Za-z0-9][A-Za-z0-9_-]*)`),
}

// Detector recognizes Lever tenants from raw page HTML
type Detector struct{}

// NewDetector creates a Lever tenant detector
func NewDetector() *Detector {
	return &Detector{}
}

// Provider returns the provider name this detector resolves
func (d *Detector) Provider() string {
	return "lever"
}

// Detect scans HTML for a Lever tenant reference. It returns the tenant
// key and the exact matched URL as evidence.
func (d *Detector) Detect(html string) (tenant, evidenceURL string, ok bool) {
	for _, pattern := range tenantPatterns {
		match := pattern.FindStringSubmatch(html)
		if match == nil {
			continue
		}
		return match[1], match[0], true
	}
	return "", "", false
}
