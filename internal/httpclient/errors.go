package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// bodySnippetLimit bounds the response excerpt carried in errors
const bodySnippetLimit = 512

// HTTPError is a non-2xx outcome after retries
type HTTPError struct {
	Status      int
	StatusText  string
	URL         string
	BodySnippet string
	Header      http.Header
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s from %s", e.Status, strings.TrimSpace(strings.TrimPrefix(e.StatusText, fmt.Sprint(e.Status))), e.URL)
	if e.BodySnippet != "" {
		msg += ": " + e.BodySnippet
	}
	return msg
}

// NewHTTPError builds an HTTPError with a bounded, UTF-8-safe body snippet
func NewHTTPError(status int, statusText, url string, body []byte, header http.Header) *HTTPError {
	snippet := string(body)
	if len(snippet) > bodySnippetLimit {
		snippet = snippet[:bodySnippetLimit]
		for !utf8.ValidString(snippet) && len(snippet) > 0 {
			snippet = snippet[:len(snippet)-1]
		}
	}
	return &HTTPError{
		Status:      status,
		StatusText:  statusText,
		URL:         url,
		BodySnippet: strings.TrimSpace(snippet),
		Header:      header,
	}
}

// AsHTTPError unwraps an HTTPError from an error chain
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsStatus reports whether the error is an HTTPError with the given status
func IsStatus(err error, status int) bool {
	httpErr, ok := AsHTTPError(err)
	return ok && httpErr.Status == status
}
