// Package cache holds fetched HTML pages between discovery runs in an
// embedded Badger store. Fresh entries short-circuit refetching the same
// career pages every run.
package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fxlatam/indago/internal/common"
)

// Page is one cached fetch result keyed by URL
type Page struct {
	URL       string `badgerhold:"key"`
	Body      string
	FetchedAt time.Time
}

// PageCache is the badgerhold-backed page store
type PageCache struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	ttl    time.Duration
}

// NewPageCache opens (optionally resetting) the cache directory
func NewPageCache(logger arbor.ILogger, config *common.CacheConfig) (*PageCache, error) {
	if config.ResetOnStartup {
		if err := os.RemoveAll(config.Path); err != nil {
			return nil, fmt.Errorf("failed to reset page cache: %w", err)
		}
	}
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Options = options.Options.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open page cache: %w", err)
	}

	// Reclaim value-log space left behind by replaced entries.
	// ErrNoRewrite means there was nothing worth collecting.
	for {
		if err := store.Badger().RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logger.Warn().Err(err).Msg("Page cache garbage collection failed")
			}
			break
		}
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	logger.Debug().Str("path", config.Path).Dur("ttl", ttl).Msg("Page cache opened")
	return &PageCache{store: store, logger: logger, ttl: ttl}, nil
}

// Get returns the cached body when the entry is still fresh at the given
// instant
func (c *PageCache) Get(url string, now time.Time) (string, bool) {
	var page Page
	err := c.store.Get(url, &page)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Page cache read failed")
		return "", false
	}
	if now.Sub(page.FetchedAt) > c.ttl {
		return "", false
	}
	return page.Body, true
}

// Put stores a fetched body, replacing any prior entry
func (c *PageCache) Put(url, body string, now time.Time) error {
	page := Page{URL: url, Body: body, FetchedAt: now}
	if err := c.store.Upsert(url, &page); err != nil {
		return fmt.Errorf("failed to cache page %s: %w", url, err)
	}
	return nil
}

// Close closes the underlying badger store
func (c *PageCache) Close() error {
	return c.store.Close()
}
