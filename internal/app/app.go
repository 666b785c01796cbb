// Package app is the composition root: it builds every component from
// the configuration and owns their lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/catalog"
	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/directory"
	"github.com/fxlatam/indago/internal/discovery"
	"github.com/fxlatam/indago/internal/export"
	"github.com/fxlatam/indago/internal/fetch"
	"github.com/fxlatam/indago/internal/httpclient"
	"github.com/fxlatam/indago/internal/ingest"
	"github.com/fxlatam/indago/internal/interfaces"
	"github.com/fxlatam/indago/internal/match"
	"github.com/fxlatam/indago/internal/orchestrator"
	"github.com/fxlatam/indago/internal/providers/greenhouse"
	"github.com/fxlatam/indago/internal/providers/lever"
	"github.com/fxlatam/indago/internal/score"
	"github.com/fxlatam/indago/internal/storage/cache"
	"github.com/fxlatam/indago/internal/storage/sqlite"
)

// App holds the assembled application components
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	PageCache      *cache.PageCache
	Catalog        *catalog.Catalog

	HTTPClient   *httpclient.Client
	Crawler      *discovery.Crawler
	Discovery    *discovery.Service
	Pipeline     *ingest.Pipeline
	Exporter     *export.Exporter
	Orchestrator *orchestrator.Orchestrator
}

// New assembles the application
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	store, err := sqlite.NewStore(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	pageCache, err := cache.NewPageCache(logger, &config.Storage.Cache)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open page cache: %w", err)
	}

	cat, err := catalog.Load(config.Catalog.Path)
	if err != nil {
		pageCache.Close()
		store.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info().
		Str("version", cat.Version).
		Int("keywords", len(cat.Keywords)).
		Int("phrases", len(cat.Phrases)).
		Msg("Catalog loaded")

	httpClient := httpclient.New(logger, &config.HTTP)
	fetcher := fetch.NewPageFetcher(logger, httpClient, pageCache)

	detectors := []discovery.Detector{lever.NewDetector(), greenhouse.NewDetector()}
	crawler := discovery.NewCrawler(logger, &config.Discovery, fetcher, detectors)
	discoveryService := discovery.NewService(logger, &config.Discovery, crawler, store)

	matcher := match.NewMatcher(cat)
	scorer := score.NewScorer(cat, scoringParams(&config.Scoring))
	pipeline := ingest.NewPipeline(logger, config, httpClient, store, matcher, scorer, cat.Version)

	exporter, err := export.NewExporter(ctx, logger, &config.Export, config.Scoring.StrongThreshold, store)
	if err != nil {
		pageCache.Close()
		store.Close()
		return nil, fmt.Errorf("failed to build exporter: %w", err)
	}

	var sources []*directory.Source
	for _, sourceConfig := range config.Directories {
		sources = append(sources, directory.NewSource(logger, fetcher, sourceConfig))
	}

	orch := orchestrator.New(logger, config, store, sources, discoveryService, pipeline, exporter)

	return &App{
		Config:         config,
		Logger:         logger,
		StorageManager: store,
		PageCache:      pageCache,
		Catalog:        cat,
		HTTPClient:     httpClient,
		Crawler:        crawler,
		Discovery:      discoveryService,
		Pipeline:       pipeline,
		Exporter:       exporter,
		Orchestrator:   orch,
	}, nil
}

// scoringParams applies the user-tunable thresholds over the scorer
// defaults; tier weights and bucket caps are not configuration
func scoringParams(config *common.ScoringConfig) score.Params {
	params := score.DefaultParams()
	params.FXCoreThreshold = config.FXCoreThreshold
	params.NoFXMaxScore = config.NoFXMaxScore
	params.FieldWeights[match.FieldTitle] = config.TitleWeight
	params.FieldWeights[match.FieldDescription] = config.DescriptionWeight
	return params
}

// Close releases the storage handles
func (a *App) Close() {
	if a.PageCache != nil {
		if err := a.PageCache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close page cache")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}
