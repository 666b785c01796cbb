package greenhouse

import "regexp"

// Board token references recognized inside company website HTML. The
// embed widget carries the token in a query parameter; the hosted board
// and the boards API carry it as a path segment.
var (
	embedPattern = regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)?greenhouse\.io/embed/job_board\?(?:[^"'\s>]*&(?:amp;)?)?for=([A-Za-z0-9][A-Za-z0-9_-]*)`)

	boardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://boards-api\.greenhouse\.io/v1/boards/([A-Za-z0-9][A-Za-z0-9_-]*)`),
		regexp.MustCompile(`https?://(?:boards|job-boards)\.(?:eu\.)?greenhouse\.io/([A-Za-z0-9][A-Za-z0-9_-]*)`),
	}
)

// Detector recognizes Greenhouse board tokens from raw page HTML
type Detector struct{}

// NewDetector creates a Greenhouse board detector
func NewDetector() *Detector {
	return &Detector{}
}

// Provider returns the provider name this detector resolves
func (d *Detector) Provider() string {
	return "greenhouse"
}

// Detect scans HTML for a Greenhouse board reference. The embed pattern
// is tried first so that embed URLs never yield "embed" as a token.
func (d *Detector) Detect(html string) (board, evidenceURL string, ok bool) {
	if match := embedPattern.FindStringSubmatch(html); match != nil {
		return match[1], match[0], true
	}
	for _, pattern := range boardPatterns {
		match := pattern.FindStringSubmatch(html)
		if match == nil {
			continue
		}
		if match[1] == "embed" {
			continue
		}
		return match[1], match[0], true
	}
	return "", "", false
}
