// Package lever integrates the Lever public postings API: tenant
// detection on company websites and full postings fetches per tenant.
package lever

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/httpclient"
)

// Posting is one job posting as returned by the postings API
type Posting struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	HostedURL        string        `json:"hostedUrl"`
	CreatedAt        int64         `json:"createdAt"` // epoch milliseconds
	Categories       Categories    `json:"categories"`
	Description      string        `json:"description"`
	DescriptionPlain string        `json:"descriptionPlain"`
	Lists            []PostingList `json:"lists"`
	Additional       string        `json:"additional"`
	AdditionalPlain  string        `json:"additionalPlain"`
}

// Categories is the posting classification block
type Categories struct {
	Location   string `json:"location"`
	Department string `json:"department"`
	Team       string `json:"team"`
	Commitment string `json:"commitment"`
}

// PostingList is a titled HTML list inside a posting (requirements,
// responsibilities and similar sections)
type PostingList struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// Client fetches postings for a tenant
type Client struct {
	http    *httpclient.Client
	logger  arbor.ILogger
	baseURL string
}

// NewClient creates a Lever API client
func NewClient(logger arbor.ILogger, http *httpclient.Client, baseURL string) *Client {
	return &Client{
		http:    http,
		logger:  logger,
		baseURL: baseURL,
	}
}

// Postings fetches every published posting for the tenant
func (c *Client) Postings(ctx context.Context, tenant string) ([]Posting, error) {
	endpoint := fmt.Sprintf("%s/postings/%s", c.baseURL, url.PathEscape(tenant))

	var postings []Posting
	if err := c.http.GetJSON(ctx, endpoint, url.Values{"mode": {"json"}}, nil, &postings); err != nil {
		return nil, fmt.Errorf("failed to fetch lever postings for %s: %w", tenant, err)
	}

	c.logger.Debug().
		Str("tenant", tenant).
		Int("postings", len(postings)).
		Msg("Fetched Lever postings")

	return postings, nil
}
