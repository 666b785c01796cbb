// Package fetch retrieves pages as HTML through the shared HTTP client,
// short-circuiting to the page cache when a fresh copy exists.
package fetch

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/httpclient"
	"github.com/fxlatam/indago/internal/storage/cache"
)

// PageFetcher fetches pages with an optional read-through cache
type PageFetcher struct {
	http   *httpclient.Client
	cache  *cache.PageCache
	logger arbor.ILogger
}

// NewPageFetcher creates a fetcher. A nil cache disables caching.
func NewPageFetcher(logger arbor.ILogger, http *httpclient.Client, pageCache *cache.PageCache) *PageFetcher {
	return &PageFetcher{
		http:   http,
		cache:  pageCache,
		logger: logger,
	}
}

// FetchHTML returns the page body for a URL, from cache when fresh.
// Cache write failures are logged and ignored; the page is still served.
func (f *PageFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	now := time.Now().UTC()

	if f.cache != nil {
		if body, ok := f.cache.Get(url, now); ok {
			f.logger.Trace().Str("url", url).Msg("Page cache hit")
			return body, nil
		}
	}

	body, err := f.http.GetText(ctx, url)
	if err != nil {
		return "", err
	}

	if f.cache != nil {
		if err := f.cache.Put(url, body, now); err != nil {
			f.logger.Warn().Err(err).Str("url", url).Msg("Failed to cache page")
		}
	}
	return body, nil
}
