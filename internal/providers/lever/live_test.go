package lever

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/httpclient"
)

// TestLivePostings hits the real Lever public board API. Gated behind
// INDAGO_LIVE_TEST=1 so the suite stays offline by default.
func TestLivePostings(t *testing.T) {
	if os.Getenv("INDAGO_LIVE_TEST") != "1" {
		t.Skip("set INDAGO_LIVE_TEST=1 to run live provider tests")
	}

	config := common.NewDefaultConfig()
	client := NewClient(common.GetLogger(),
		httpclient.New(common.GetLogger(), &config.HTTP),
		config.Providers.Lever.BaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Lever's own board is a stable public tenant
	postings, err := client.Postings(ctx, "lever")
	require.NoError(t, err)

	for _, posting := range postings {
		require.NotEmpty(t, posting.ID)
		offer := MapPosting(posting, 1, config.Ingestion.MaxDescriptionChars)
		require.NoError(t, offer.Validate())
	}
}
