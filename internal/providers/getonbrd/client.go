// Package getonbrd integrates the GetOnBrd aggregator API: paginated
// job searches plus per-job hydration. Unlike the ATS providers, the
// company behind each posting is only known from the payload, so the
// mapper emits identity evidence instead of a known company id.
package getonbrd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/httpclient"
)

// SearchResponse is one page of search results. Company records for the
// page's jobs arrive side-loaded in Included.
type SearchResponse struct {
	Data     []JobResource     `json:"data"`
	Included []CompanyResource `json:"included"`
	Meta     SearchMeta        `json:"meta"`
}

// SearchMeta carries pagination totals
type SearchMeta struct {
	TotalPages int `json:"total_pages"`
}

// JobResource is one job record
type JobResource struct {
	ID            string           `json:"id"`
	Attributes    JobAttributes    `json:"attributes"`
	Relationships JobRelationships `json:"relationships"`
}

// JobAttributes is the job payload proper
type JobAttributes struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Functions         string `json:"functions"`
	Requirements      string `json:"requirements"`
	Desirable         string `json:"desirable"`
	PublishedAt       int64  `json:"published_at"` // epoch seconds
	ApplicationsCount *int   `json:"applications_count"`
	CategoryName      string `json:"category_name"`
	SeniorityName     string `json:"seniority_name"`
	ModalityName      string `json:"modality_name"`
	Remote            bool   `json:"remote"`
	RemoteModality    string `json:"remote_modality"`
	CountryName       string `json:"country_name"`
	MinSalary         *int   `json:"min_salary"`
	MaxSalary         *int   `json:"max_salary"`
}

// JobRelationships links a job to its company record
type JobRelationships struct {
	Company RelationshipRef `json:"company"`
}

// RelationshipRef is a typed resource pointer
type RelationshipRef struct {
	Data ResourceID `json:"data"`
}

// ResourceID identifies a side-loaded resource
type ResourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CompanyResource is a side-loaded company record
type CompanyResource struct {
	ID         string            `json:"id"`
	Attributes CompanyAttributes `json:"attributes"`
}

// CompanyAttributes is the company payload
type CompanyAttributes struct {
	Name       string `json:"name"`
	WebsiteURL string `json:"web"`
}

type jobResponse struct {
	Data     JobResource       `json:"data"`
	Included []CompanyResource `json:"included"`
}

// Client searches and hydrates aggregator jobs
type Client struct {
	http     *httpclient.Client
	logger   arbor.ILogger
	baseURL  string
	apiToken string
}

// NewClient creates a GetOnBrd API client. The token is optional; the
// API rejects unauthenticated searches with 401.
func NewClient(logger arbor.ILogger, http *httpclient.Client, baseURL, apiToken string) *Client {
	return &Client{
		http:     http,
		logger:   logger,
		baseURL:  baseURL,
		apiToken: apiToken,
	}
}

// Search fetches one page of search results for a query
func (c *Client) Search(ctx context.Context, query string, perPage, page int) (*SearchResponse, error) {
	params := url.Values{
		"query":    {query},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
	c.authorize(params)

	var payload SearchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/search/jobs", params, nil, &payload); err != nil {
		return nil, fmt.Errorf("getonbrd search %q page %d failed: %w", query, page, err)
	}

	c.logger.Debug().
		Str("query", query).
		Int("page", page).
		Int("jobs", len(payload.Data)).
		Msg("Fetched GetOnBrd search page")

	return &payload, nil
}

// Job hydrates one job with its full attributes and company record
func (c *Client) Job(ctx context.Context, id string) (*JobResource, []CompanyResource, error) {
	params := url.Values{}
	c.authorize(params)

	var payload jobResponse
	endpoint := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(id))
	if err := c.http.GetJSON(ctx, endpoint, params, nil, &payload); err != nil {
		return nil, nil, fmt.Errorf("getonbrd job %s failed: %w", id, err)
	}
	return &payload.Data, payload.Included, nil
}

func (c *Client) authorize(params url.Values) {
	if c.apiToken != "" {
		params.Set("token", c.apiToken)
	}
}

// IsAuthFailure reports whether an error is a 401/403 from the API,
// which aborts the whole aggregator run
func IsAuthFailure(err error) bool {
	return httpclient.IsStatus(err, http.StatusUnauthorized) ||
		httpclient.IsStatus(err, http.StatusForbidden)
}

// QueryFingerprint is the audit key recorded on an ingestion run for
// one search configuration
func QueryFingerprint(query string, perPage int) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("getonbrd|%s|%d", query, perPage)))
}
