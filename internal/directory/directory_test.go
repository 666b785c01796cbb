package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/fetch"
	"github.com/fxlatam/indago/internal/httpclient"
)

func newTestFetcher() *fetch.PageFetcher {
	client := httpclient.New(common.GetLogger(), &common.HTTPConfig{
		UserAgent:      "indago-test",
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
		MaxRetryAfter:  time.Millisecond,
		RateLimit:      1000,
		RateBurst:      100,
		MaxBodyBytes:   1 << 20,
	})
	return fetch.NewPageFetcher(common.GetLogger(), client, nil)
}

func TestSinglePageSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="https://www.acmepagos.com">Acme Pagos</a>
			<a href="https://www.acmepagos.com/about">Acme again</a>
			<a href="https://bitso.com">Bitso</a>
			<a href="https://www.linkedin.com/company/belvo">Belvo on LinkedIn</a>
			<a href="https://github.com/xepelin">Xepelin repo</a>
			<a href="/internal/listing">Internal</a>
			<a href="https://cdn.example.org/logo.png">Logo</a>
			<a href="mailto:hi@example.org">Mail</a>
			<a href="https://xepelin.com">Xepelin</a>
		</body></html>`))
	}))
	defer server.Close()

	source := NewSource(common.GetLogger(), newTestFetcher(), common.DirectorySourceConfig{
		Name:         "fintech-list",
		URL:          server.URL,
		Kind:         KindSinglePage,
		MaxCompanies: 2,
	})

	candidates, err := source.FetchCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	require.NotNil(t, candidates[0].WebsiteDomain)
	assert.Equal(t, "acmepagos.com", *candidates[0].WebsiteDomain)
	require.NotNil(t, candidates[0].NormalizedName)
	assert.Equal(t, "acme pagos", *candidates[0].NormalizedName)

	require.NotNil(t, candidates[1].WebsiteDomain)
	assert.Equal(t, "bitso.com", *candidates[1].WebsiteDomain)
}

func TestListingDetailSource(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/ranking", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/companies/acme">Acme</a>
			<a href="/companies/acme">Acme duplicate</a>
			<a href="/companies/bitso">Bitso</a>
			<a href="/companies/xepelin">Xepelin</a>
			<a href="/about">About us</a>
		</body></html>`))
	})
	mux.HandleFunc("/companies/acme", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Acme Pagos S.A.</h1>
			<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
			<a href="https://www.acmepagos.com">Website</a>
		</body></html>`))
	})
	mux.HandleFunc("/companies/bitso", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Bitso</h1>
			<a href="https://bitso.com">bitso.com</a>
		</body></html>`))
	})

	source := NewSource(common.GetLogger(), newTestFetcher(), common.DirectorySourceConfig{
		Name:              "latam-ranking",
		URL:               server.URL + "/ranking",
		Kind:              KindListingDetail,
		DetailPathPattern: "/companies/",
		MaxCompanies:      10,
		MaxDetailPages:    2,
		MaxLinksPerDetail: 5,
	})

	candidates, err := source.FetchCompanies(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	require.NotNil(t, candidates[0].NormalizedName)
	assert.Equal(t, "acme pagos", *candidates[0].NormalizedName)
	require.NotNil(t, candidates[0].WebsiteDomain)
	assert.Equal(t, "acmepagos.com", *candidates[0].WebsiteDomain)

	require.NotNil(t, candidates[1].WebsiteDomain)
	assert.Equal(t, "bitso.com", *candidates[1].WebsiteDomain)
}

func TestUnknownKind(t *testing.T) {
	source := NewSource(common.GetLogger(), newTestFetcher(), common.DirectorySourceConfig{
		Name: "broken",
		URL:  "https://example.com",
		Kind: "rss",
	})
	_, err := source.FetchCompanies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown directory kind")
}
