// Package greenhouse integrates the Greenhouse job board API: board
// detection on company websites and job fetches per board token.
package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/httpclient"
)

// Job is one posting as returned by the boards API with content=true
type Job struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	AbsoluteURL string     `json:"absolute_url"`
	UpdatedAt   string     `json:"updated_at"` // ISO-8601
	Location    Location   `json:"location"`
	Content     string     `json:"content"` // entity-escaped HTML
	Metadata    []Metadata `json:"metadata"`
}

// Location is the posting location block
type Location struct {
	Name string `json:"name"`
}

// Metadata is one custom field attached to a job. Values are strings or
// string lists depending on the field type.
type Metadata struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// Client fetches jobs for a board token
type Client struct {
	http    *httpclient.Client
	logger  arbor.ILogger
	baseURL string
	maxJobs int
}

// NewClient creates a Greenhouse API client. maxJobs bounds how many
// jobs a single board may yield; 0 disables the cap.
func NewClient(logger arbor.ILogger, http *httpclient.Client, baseURL string, maxJobs int) *Client {
	return &Client{
		http:    http,
		logger:  logger,
		baseURL: baseURL,
		maxJobs: maxJobs,
	}
}

// Jobs fetches the board's published jobs with their full content. The
// result is sorted by ascending id so the cap keeps a stable prefix
// across runs rather than whatever order the API returned.
func (c *Client) Jobs(ctx context.Context, board string) ([]Job, error) {
	endpoint := fmt.Sprintf("%s/boards/%s/jobs", c.baseURL, url.PathEscape(board))

	var payload jobsResponse
	if err := c.http.GetJSON(ctx, endpoint, url.Values{"content": {"true"}}, nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch greenhouse jobs for %s: %w", board, err)
	}

	jobs := payload.Jobs
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

	if c.maxJobs > 0 && len(jobs) > c.maxJobs {
		c.logger.Warn().
			Str("board", board).
			Int("jobs", len(jobs)).
			Int("cap", c.maxJobs).
			Msg("Greenhouse board exceeds the per-tenant cap, truncating")
		jobs = jobs[:c.maxJobs]
	}

	c.logger.Debug().
		Str("board", board).
		Int("jobs", len(jobs)).
		Msg("Fetched Greenhouse jobs")

	return jobs, nil
}
