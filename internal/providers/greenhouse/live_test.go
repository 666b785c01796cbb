package greenhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/httpclient"
)

// TestLiveJobs hits the real Greenhouse public board API. Gated behind
// INDAGO_LIVE_TEST=1 so the suite stays offline by default.
func TestLiveJobs(t *testing.T) {
	if os.Getenv("INDAGO_LIVE_TEST") != "1" {
		t.Skip("set INDAGO_LIVE_TEST=1 to run live provider tests")
	}

	config := common.NewDefaultConfig()
	client := NewClient(common.GetLogger(),
		httpclient.New(common.GetLogger(), &config.HTTP),
		config.Providers.Greenhouse.BaseURL,
		config.Ingestion.MaxJobsPerTenant)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Greenhouse's own board is a stable public tenant
	jobs, err := client.Jobs(ctx, "greenhouse")
	require.NoError(t, err)
	require.NotEmpty(t, jobs)

	for _, job := range jobs {
		offer := MapJob(job, 1, config.Ingestion.MaxDescriptionChars)
		require.NoError(t, offer.Validate())
	}
}
