package getonbrd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/httpclient"
)

func TestClientSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/jobs", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "fx treasury", query.Get("query"))
		assert.Equal(t, "50", query.Get("per_page"))
		assert.Equal(t, "2", query.Get("page"))
		assert.Equal(t, "secret", query.Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data":[{"id":"treasury-analyst-acme","attributes":{"title":"Treasury Analyst"},
			         "relationships":{"company":{"data":{"id":"acme","type":"companies"}}}}],
			"included":[{"id":"acme","attributes":{"name":"Acme Pagos","web":"https://www.acmepagos.com"}}],
			"meta":{"total_pages":3}
		}`))
	}))
	defer server.Close()

	client := NewClient(common.GetLogger(), newTestHTTPClient(), server.URL, "secret")
	page, err := client.Search(context.Background(), "fx treasury", 50, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "treasury-analyst-acme", page.Data[0].ID)
	assert.Equal(t, 3, page.Meta.TotalPages)
	require.Len(t, page.Included, 1)
	assert.Equal(t, "Acme Pagos", page.Included[0].Attributes.Name)
}

func TestIsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(common.GetLogger(), newTestHTTPClient(), server.URL, "")
	_, err := client.Search(context.Background(), "fx", 50, 1)
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err))
}

func TestQueryFingerprint(t *testing.T) {
	a := QueryFingerprint("fx treasury", 50)
	assert.Len(t, a, 16)
	assert.Equal(t, a, QueryFingerprint("fx treasury", 50))
	assert.NotEqual(t, a, QueryFingerprint("fx treasury", 25))
	assert.NotEqual(t, a, QueryFingerprint("payments", 50))
}

func TestMapJob(t *testing.T) {
	applications := 42
	minSalary := 3000
	maxSalary := 4500

	job := JobResource{
		ID: "treasury-analyst-acme",
		Attributes: JobAttributes{
			Title:             "Treasury Analyst",
			Description:       "<p>Manage <b>USD</b> exposure.</p>",
			Functions:         "<ul><li>Hedge FX risk</li></ul>",
			Requirements:      "<p>3 years in treasury</p>",
			Desirable:         "<p>Bloomberg terminal</p>",
			PublishedAt:       1754820000,
			ApplicationsCount: &applications,
			CategoryName:      "Finance",
			SeniorityName:     "Senior",
			ModalityName:      "Full time",
			Remote:            true,
			RemoteModality:    "fully remote",
			CountryName:       "Chile",
			MinSalary:         &minSalary,
			MaxSalary:         &maxSalary,
		},
		Relationships: JobRelationships{Company: RelationshipRef{Data: ResourceID{ID: "acme"}}},
	}
	companies := []CompanyResource{
		{ID: "other", Attributes: CompanyAttributes{Name: "Other"}},
		{ID: "acme", Attributes: CompanyAttributes{Name: "Acme Pagos", WebsiteURL: "https://www.acmepagos.com/"}},
	}

	offer := MapJob(job, companies, 20000)

	assert.Equal(t, "getonbrd", offer.Provider)
	assert.Equal(t, "treasury-analyst-acme", offer.ProviderOfferID)
	assert.Equal(t, "Treasury Analyst", offer.Title)
	assert.Zero(t, offer.KnownCompanyID)

	assert.Contains(t, offer.Description, "USD")
	assert.Contains(t, offer.Description, "Hedge FX risk")
	assert.NotContains(t, offer.Description, "<p>")

	require.NotNil(t, offer.MinRequirements)
	assert.Contains(t, *offer.MinRequirements, "3 years in treasury")
	require.NotNil(t, offer.DesiredRequirements)
	assert.Contains(t, *offer.DesiredRequirements, "Bloomberg")

	require.NotNil(t, offer.PublishedAt)
	assert.Equal(t, time.Unix(1754820000, 0).UTC(), *offer.PublishedAt)
	require.NotNil(t, offer.ApplicationsCount)
	assert.Equal(t, 42, *offer.ApplicationsCount)

	require.NotNil(t, offer.Location)
	assert.Equal(t, "Chile · fully remote", *offer.Location)
	require.NotNil(t, offer.Metadata.Salary)
	assert.Equal(t, "3000-4500 USD/month", *offer.Metadata.Salary)
	require.NotNil(t, offer.Metadata.Experience)
	assert.Equal(t, "Senior", *offer.Metadata.Experience)

	require.True(t, offer.Company.HasIdentity())
	require.NotNil(t, offer.Company.WebsiteDomain)
	assert.Equal(t, "acmepagos.com", *offer.Company.WebsiteDomain)
	require.NotNil(t, offer.Company.NormalizedName)
	assert.Equal(t, "acme pagos", *offer.Company.NormalizedName)

	require.NoError(t, offer.Validate())
}

func TestMapJobWithoutCompany(t *testing.T) {
	job := JobResource{ID: "x", Attributes: JobAttributes{Title: "Dev"}}
	offer := MapJob(job, nil, 20000)
	assert.False(t, offer.Company.HasIdentity())
}

func newTestHTTPClient() *httpclient.Client {
	return httpclient.New(common.GetLogger(), &common.HTTPConfig{
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
}
