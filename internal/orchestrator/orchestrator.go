// Package orchestrator sequences one whole pipeline invocation under
// the advisory run lock: directory scrape, ATS discovery, provider
// ingestion and the spreadsheet export.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/directory"
	"github.com/fxlatam/indago/internal/discovery"
	"github.com/fxlatam/indago/internal/export"
	"github.com/fxlatam/indago/internal/ingest"
	"github.com/fxlatam/indago/internal/interfaces"
	"github.com/fxlatam/indago/internal/storage"
)

// LockName is the single advisory lock mutually excluding pipeline runs
const LockName = "pipeline"

// ErrLocked means another process holds the pipeline lock
var ErrLocked = errors.New("another pipeline run holds the lock")

// Orchestrator wires the pipeline stages together
type Orchestrator struct {
	config    *common.Config
	store     interfaces.StorageManager
	sources   []*directory.Source
	discovery *discovery.Service
	pipeline  *ingest.Pipeline
	exporter  *export.Exporter
	logger    arbor.ILogger
	ownerID   string
}

// New creates an orchestrator with a fresh lock owner identity
func New(logger arbor.ILogger, config *common.Config, store interfaces.StorageManager,
	sources []*directory.Source, discoveryService *discovery.Service,
	pipeline *ingest.Pipeline, exporter *export.Exporter) *Orchestrator {
	return &Orchestrator{
		config:    config,
		store:     store,
		sources:   sources,
		discovery: discoveryService,
		pipeline:  pipeline,
		exporter:  exporter,
		logger:    logger,
		ownerID:   common.NewLockOwnerID(),
	}
}

// Run executes one full pipeline invocation. Stage failures are logged
// and do not stop later stages; the joined error is returned at the end.
// ErrLocked is returned without running anything when another process
// holds the lock.
func (o *Orchestrator) Run(ctx context.Context) error {
	acquired, err := o.store.AcquireRunLock(ctx, LockName, o.ownerID, o.config.Lock.TTL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		o.logger.Warn().Msg("Pipeline lock held elsewhere, skipping run")
		return ErrLocked
	}
	defer func() {
		if err := o.store.ReleaseRunLock(context.WithoutCancel(ctx), LockName, o.ownerID); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to release run lock")
		}
	}()

	o.logger.Info().Str("owner", o.ownerID).Msg("Pipeline run started")
	started := time.Now()

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"directories", o.runDirectories},
		{"discovery", o.runDiscovery},
		{"lever", o.runLever},
		{"greenhouse", o.runGreenhouse},
		{"getonbrd", o.runGetOnBrd},
		{"export", o.runExport},
	}

	var stageErrs []error
	for _, stage := range stages {
		if ctx.Err() != nil {
			stageErrs = append(stageErrs, ctx.Err())
			break
		}
		if err := stage.run(ctx); err != nil {
			o.logger.Error().Err(err).Str("stage", stage.name).Msg("Pipeline stage failed")
			stageErrs = append(stageErrs, fmt.Errorf("stage %s: %w", stage.name, err))
		}
		if ok, err := o.store.RefreshRunLock(ctx, LockName, o.ownerID, o.config.Lock.TTL, time.Now().UTC()); err != nil || !ok {
			o.logger.Warn().Err(err).Msg("Lost the run lock, aborting remaining stages")
			stageErrs = append(stageErrs, errors.New("run lock lost mid-pipeline"))
			break
		}
	}

	o.logger.Info().
		Dur("elapsed", time.Since(started)).
		Int("failed_stages", len(stageErrs)).
		Msg("Pipeline run finished")

	return errors.Join(stageErrs...)
}

// runDirectories scrapes every configured directory and upserts the
// harvested companies. Per-source errors skip to the next source.
func (o *Orchestrator) runDirectories(ctx context.Context) error {
	var errs []error
	for _, source := range o.sources {
		candidates, err := source.FetchCompanies(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Str("source", source.Name()).Msg("Directory source failed")
			errs = append(errs, fmt.Errorf("source %s: %w", source.Name(), err))
			continue
		}

		created := 0
		for _, candidate := range candidates {
			if _, err := o.store.UpsertCompany(ctx, candidate); err != nil {
				if errors.Is(err, storage.ErrMissingIdentity) {
					continue
				}
				errs = append(errs, err)
				continue
			}
			created++
		}
		o.logger.Info().
			Str("source", source.Name()).
			Int("companies", created).
			Msg("Directory companies upserted")
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) runDiscovery(ctx context.Context) error {
	_, err := o.discovery.Run(ctx)
	return err
}

func (o *Orchestrator) runLever(ctx context.Context) error {
	_, err := o.pipeline.RunLever(ctx)
	return err
}

func (o *Orchestrator) runGreenhouse(ctx context.Context) error {
	_, err := o.pipeline.RunGreenhouse(ctx)
	return err
}

func (o *Orchestrator) runGetOnBrd(ctx context.Context) error {
	_, err := o.pipeline.RunGetOnBrd(ctx)
	return err
}

func (o *Orchestrator) runExport(ctx context.Context) error {
	return o.exporter.Run(ctx)
}
