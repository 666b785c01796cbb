package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlatam/indago/internal/catalog"
	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/discovery"
	"github.com/fxlatam/indago/internal/export"
	"github.com/fxlatam/indago/internal/fetch"
	"github.com/fxlatam/indago/internal/httpclient"
	"github.com/fxlatam/indago/internal/ingest"
	"github.com/fxlatam/indago/internal/match"
	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/providers/greenhouse"
	"github.com/fxlatam/indago/internal/providers/lever"
	"github.com/fxlatam/indago/internal/score"
	"github.com/fxlatam/indago/internal/storage/sqlite"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *sqlite.Store) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	config := common.NewDefaultConfig()
	config.HTTP.MaxAttempts = 1
	config.HTTP.RateLimit = 1000
	config.HTTP.RateBurst = 100
	config.Providers.Lever.BaseURL = server.URL
	config.Providers.Greenhouse.BaseURL = server.URL
	config.Providers.GetOnBrd.Queries = nil
	config.Export.CSVDir = t.TempDir()
	config.Lock.TTL = time.Minute

	store, err := sqlite.NewStore(common.GetLogger(), &common.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Load("")
	require.NoError(t, err)

	client := httpclient.New(common.GetLogger(), &config.HTTP)
	fetcher := fetch.NewPageFetcher(common.GetLogger(), client, nil)
	crawler := discovery.NewCrawler(common.GetLogger(), &config.Discovery, fetcher,
		[]discovery.Detector{lever.NewDetector(), greenhouse.NewDetector()})
	discoveryService := discovery.NewService(common.GetLogger(), &config.Discovery, crawler, store)

	pipeline := ingest.NewPipeline(common.GetLogger(), config, client, store,
		match.NewMatcher(cat), score.NewScorer(cat, score.DefaultParams()), cat.Version)

	exporter, err := export.NewExporter(context.Background(), common.GetLogger(),
		&config.Export, config.Scoring.StrongThreshold, store)
	require.NoError(t, err)

	return New(common.GetLogger(), config, store, nil, discoveryService, pipeline, exporter), store
}

func TestRunExecutesAllStages(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, orch.Run(ctx))

	// one run per ATS provider was recorded
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	providers := map[string]bool{}
	for _, run := range runs {
		providers[run.Provider] = true
		assert.Equal(t, models.RunStatusSuccess, run.Status)
	}
	assert.True(t, providers[models.ProviderLever])
	assert.True(t, providers[models.ProviderGreenhouse])

	// the export stage wrote a snapshot
	entries, err := os.ReadDir(orch.config.Export.CSVDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunSkipsWhenLocked(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	acquired, err := store.AcquireRunLock(ctx, LockName, "someone-else", time.Minute, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, acquired)

	assert.ErrorIs(t, orch.Run(ctx), ErrLocked)

	// once the foreign lock expires, a run takes over
	expired, err := store.AcquireRunLock(ctx, LockName, "someone-else", -time.Minute, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, expired)

	require.NoError(t, orch.Run(ctx))
}

func TestRunReleasesLock(t *testing.T) {
	orch, store := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, orch.Run(ctx))

	// the lock is free again immediately after the run
	acquired, err := store.AcquireRunLock(ctx, LockName, "checker", time.Minute, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, acquired)
}
