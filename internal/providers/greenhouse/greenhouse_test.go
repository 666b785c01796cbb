package greenhouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/httpclient"
)

func TestDetector(t *testing.T) {
	detector := NewDetector()

	tests := []struct {
		name      string
		html      string
		wantBoard string
		wantOK    bool
	}{
		{
			name:      "hosted board",
			html:      `<a href="https://boards.greenhouse.io/dlocal">Jobs</a>`,
			wantBoard: "dlocal",
			wantOK:    true,
		},
		{
			name:      "job-boards host",
			html:      `href="https://job-boards.greenhouse.io/nubank/jobs/450012"`,
			wantBoard: "nubank",
			wantOK:    true,
		},
		{
			name:      "boards api reference",
			html:      `fetch("https://boards-api.greenhouse.io/v1/boards/bitso/jobs")`,
			wantBoard: "bitso",
			wantOK:    true,
		},
		{
			name:      "embed widget",
			html:      `<iframe src="https://boards.greenhouse.io/embed/job_board?for=belvo&amp;b=https://belvo.com"></iframe>`,
			wantBoard: "belvo",
			wantOK:    true,
		},
		{
			name:      "embed token preferred over embed path segment",
			html:      `<script src="https://boards.greenhouse.io/embed/job_board/js?for=xepelin"></script><a href="https://boards.greenhouse.io/embed/job_board?for=xepelin">jobs</a>`,
			wantBoard: "xepelin",
			wantOK:    true,
		},
		{
			name:   "unrelated page",
			html:   `<a href="https://example.com/careers">Careers</a>`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board, evidence, ok := detector.Detect(tt.html)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantBoard, board)
				assert.NotEmpty(t, evidence)
			}
		})
	}
}

func TestClientJobsSortsAndCaps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boards/acme/jobs", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("content"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[
			{"id":30,"title":"C"},
			{"id":10,"title":"A"},
			{"id":20,"title":"B"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(common.GetLogger(), newTestHTTPClient(), server.URL, 2)
	jobs, err := client.Jobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(10), jobs[0].ID)
	assert.Equal(t, int64(20), jobs[1].ID)
}

func TestMapJob(t *testing.T) {
	job := Job{
		ID:          450012,
		Title:       "Payments Engineer",
		AbsoluteURL: "https://boards.greenhouse.io/acme/jobs/450012",
		UpdatedAt:   "2026-08-10T12:00:00-03:00",
		Location:    Location{Name: "Mexico City"},
		Content:     "&lt;p&gt;Work on &lt;b&gt;USD&lt;/b&gt; settlement.&lt;/p&gt;",
		Metadata: []Metadata{
			{Name: "Salary Range", Value: json.RawMessage(`"3000-4000 USD"`)},
			{Name: "Seniority", Value: json.RawMessage(`["Senior","Staff"]`)},
			{Name: "Irrelevant", Value: json.RawMessage(`"x"`)},
			{Name: "Employment Type", Value: json.RawMessage(`null`)},
		},
	}

	offer := MapJob(job, 11, 20000)

	assert.Equal(t, "greenhouse", offer.Provider)
	assert.Equal(t, "450012", offer.ProviderOfferID)
	assert.Equal(t, "Payments Engineer", offer.Title)
	assert.Equal(t, int64(11), offer.KnownCompanyID)

	assert.Contains(t, offer.Description, "USD")
	assert.Contains(t, offer.Description, "settlement")
	assert.NotContains(t, offer.Description, "&lt;")
	assert.NotContains(t, offer.Description, "<p>")

	require.NotNil(t, offer.Location)
	assert.Equal(t, "Mexico City", *offer.Location)
	require.NotNil(t, offer.UpdatedAt)
	assert.Equal(t, time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC), *offer.UpdatedAt)

	require.NotNil(t, offer.Metadata.Salary)
	assert.Equal(t, "3000-4000 USD", *offer.Metadata.Salary)
	require.NotNil(t, offer.Metadata.Experience)
	assert.Equal(t, "Senior, Staff", *offer.Metadata.Experience)
	assert.Nil(t, offer.Metadata.ContractType)

	require.NoError(t, offer.Validate())
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
