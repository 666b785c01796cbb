// Package httpclient is the JSON-or-text HTTP client shared by every
// outbound integration: provider APIs, discovery fetches and directory
// scrapes. It applies the process-wide retry, rate-limit and body-size
// policy so callers only describe the request.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/fxlatam/indago/internal/common"
)

// Request describes one outbound call. Query values with multiple entries
// are appended as repeated parameters.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	Body    interface{}   // JSON-encoded when non-nil
	Timeout time.Duration // overrides the client default when positive
}

// Response is the decoded outcome of a successful (2xx) call
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	IsJSON bool
}

// Decode unmarshals a JSON response body into v
func (r *Response) Decode(v interface{}) error {
	if !r.IsJSON {
		return fmt.Errorf("response is not JSON (content-type %q)", r.Header.Get("Content-Type"))
	}
	if len(r.Body) == 0 {
		return nil // 204 and friends
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Text returns the raw body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Recorder observes every HTTP attempt with its status code (0 for
// transport errors). The ingestion pipeline hangs its per-run counters
// off this.
type Recorder func(status int)

// Client applies the shared transport policy
type Client struct {
	httpClient    *http.Client
	logger        arbor.ILogger
	limiter       *rate.Limiter
	userAgent     string
	maxAttempts   int
	baseDelay     time.Duration
	maxDelay      time.Duration
	maxRetryAfter time.Duration
	maxBodyBytes  int64
	recorder      Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient substitutes the underlying transport
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client from the shared HTTP configuration
func New(logger arbor.ILogger, config *common.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: config.RequestTimeout},
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		userAgent:     config.UserAgent,
		maxAttempts:   config.MaxAttempts,
		baseDelay:     config.RetryBaseDelay,
		maxDelay:      config.RetryMaxDelay,
		maxRetryAfter: config.MaxRetryAfter,
		maxBodyBytes:  config.MaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithRecorder returns a copy of the client that reports every attempt to
// the recorder. The underlying transport and limiter are shared.
func (c *Client) WithRecorder(recorder Recorder) *Client {
	clone := *c
	clone.recorder = recorder
	return &clone
}

// Do executes the request under the retry policy. Only idempotent methods
// (GET, HEAD) are retried; retries cover network errors, timeouts, 408,
// 429 and 5xx. Non-2xx after retries surfaces as *HTTPError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	fullURL := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + req.Query.Encode()
	}

	var body []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = data
	}

	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, req, fullURL, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		httpErr, isHTTP := AsHTTPError(err)
		retryable := idempotent && (!isHTTP || retryableStatus(httpErr.Status))
		if !retryable || attempt == c.maxAttempts {
			return nil, err
		}

		delay := c.backoff(attempt)
		if isHTTP && (httpErr.Status == http.StatusTooManyRequests || httpErr.Status == http.StatusServiceUnavailable) {
			if ra, ok := retryAfter(httpErr.Header, time.Now()); ok {
				if ra > c.maxRetryAfter {
					ra = c.maxRetryAfter
				}
				delay = ra
			}
		}

		c.logger.Debug().
			Str("url", fullURL).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// attempt issues one HTTP round trip and classifies the outcome
func (c *Client) attempt(ctx context.Context, req Request, fullURL string, body []byte) (*Response, error) {
	timeout := req.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(0)
		return nil, fmt.Errorf("request to %s failed: %w", fullURL, err)
	}
	defer resp.Body.Close()

	c.record(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", fullURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, resp.Status, fullURL, data, resp.Header)
	}

	if resp.StatusCode == http.StatusNoContent {
		return &Response{Status: resp.StatusCode, Header: resp.Header, IsJSON: isJSONContentType(resp.Header)}, nil
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
		IsJSON: isJSONContentType(resp.Header),
	}, nil
}

// GetJSON fetches and decodes a JSON document in one step
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out interface{}) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query, Headers: headers})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// GetText fetches a page as raw text
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *Client) record(status int) {
	if c.recorder != nil {
		c.recorder(status)
	}
}

// backoff is min(maxDelay, base×2^(attempt-1)) scaled by U[0.5, 1.0]
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.baseDelay)
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= float64(c.maxDelay) {
			delay = float64(c.maxDelay)
			break
		}
	}
	return time.Duration(delay * (0.5 + 0.5*rand.Float64()))
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

// retryAfter parses a Retry-After header, either delay seconds or an
// HTTP-date
func retryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func isJSONContentType(header http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
