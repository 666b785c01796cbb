// Package ingest runs the provider ingestion pipeline: fetch, map,
// resolve identity, persist, de-duplicate, score and aggregate, under
// one audited IngestionRun per provider invocation.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/aggregate"
	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/httpclient"
	"github.com/fxlatam/indago/internal/interfaces"
	"github.com/fxlatam/indago/internal/match"
	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/providers/getonbrd"
	"github.com/fxlatam/indago/internal/providers/greenhouse"
	"github.com/fxlatam/indago/internal/providers/lever"
	"github.com/fxlatam/indago/internal/repost"
	"github.com/fxlatam/indago/internal/score"
	"github.com/fxlatam/indago/internal/storage"
)

// Pipeline orchestrates ingestion for every provider
type Pipeline struct {
	config  *common.Config
	http    *httpclient.Client
	store   interfaces.StorageManager
	matcher *match.Matcher
	scorer  *score.Scorer
	version string // catalog version stamped on matches
	logger  arbor.ILogger
}

// NewPipeline assembles the ingestion pipeline
func NewPipeline(logger arbor.ILogger, config *common.Config, http *httpclient.Client, store interfaces.StorageManager, matcher *match.Matcher, scorer *score.Scorer, catalogVersion string) *Pipeline {
	return &Pipeline{
		config:  config,
		http:    http,
		store:   store,
		matcher: matcher,
		scorer:  scorer,
		version: catalogVersion,
		logger:  logger,
	}
}

// runState carries one open IngestionRun and its bookkeeping
type runState struct {
	run      *models.IngestionRun
	now      time.Time
	affected map[int64]bool
	failed   bool
}

// openRun creates the audit row and a client that feeds its counters
func (p *Pipeline) openRun(ctx context.Context, provider string, fingerprint *string) (*runState, *httpclient.Client, error) {
	state := &runState{
		run: &models.IngestionRun{
			ID:               common.NewRunID(),
			Provider:         provider,
			QueryFingerprint: fingerprint,
			StartedAt:        time.Now().UTC(),
			Status:           models.RunStatusRunning,
		},
		now:      time.Now().UTC(),
		affected: make(map[int64]bool),
	}
	if err := p.store.CreateRun(ctx, state.run); err != nil {
		return nil, nil, fmt.Errorf("failed to open ingestion run: %w", err)
	}

	recorded := p.http.WithRecorder(func(status int) {
		state.run.Counters.RequestsCount++
		if status == http.StatusTooManyRequests {
			state.run.Counters.HTTP429Count++
		}
	})

	p.logger.Info().
		Str("run_id", state.run.ID).
		Str("provider", provider).
		Msg("Ingestion run started")

	return state, recorded, nil
}

// closeRun aggregates affected companies and writes the terminal status
func (p *Pipeline) closeRun(ctx context.Context, state *runState, runErr error) error {
	if runErr == nil && !state.failed {
		if err := p.aggregateAffected(ctx, state); err != nil {
			runErr = err
		}
	}

	endedAt := time.Now().UTC()
	state.run.EndedAt = &endedAt
	if runErr != nil || state.failed {
		state.run.Status = models.RunStatusFailure
		if runErr != nil {
			message := runErr.Error()
			state.run.Error = &message
		}
	} else {
		state.run.Status = models.RunStatusSuccess
	}

	if err := p.store.CloseRun(ctx, state.run); err != nil {
		p.logger.Error().Err(err).Str("run_id", state.run.ID).Msg("Failed to close ingestion run")
		if runErr == nil {
			runErr = err
		}
	}

	p.logger.Info().
		Str("run_id", state.run.ID).
		Str("provider", state.run.Provider).
		Str("status", state.run.Status).
		Int("offers", state.run.Counters.OffersFetched).
		Int("duplicates", state.run.Counters.Duplicates).
		Int("skipped", state.run.Counters.Skipped).
		Int("errors", state.run.Counters.ErrorsCount).
		Msg("Ingestion run finished")

	return runErr
}

// aggregateAffected recomputes and persists aggregates for every company
// touched by the run, each at most once
func (p *Pipeline) aggregateAffected(ctx context.Context, state *runState) error {
	ids := make([]int64, 0, len(state.affected))
	for id := range state.affected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, companyID := range ids {
		views, err := p.store.ListCompanyOffersForAggregation(ctx, companyID)
		if err != nil {
			state.run.Counters.ErrorsCount++
			return fmt.Errorf("aggregation failed for company %d: %w", companyID, err)
		}
		agg := aggregate.Compute(views, p.config.Scoring.StrongThreshold)
		if err := p.store.UpdateCompanyAggregates(ctx, companyID, agg); err != nil {
			state.run.Counters.ErrorsCount++
			return fmt.Errorf("failed to persist aggregates for company %d: %w", companyID, err)
		}
	}
	return nil
}

// RunLever ingests every known Lever tenant
func (p *Pipeline) RunLever(ctx context.Context) (*models.IngestionRun, error) {
	state, recorded, err := p.openRun(ctx, models.ProviderLever, nil)
	if err != nil {
		return nil, err
	}
	client := lever.NewClient(p.logger, recorded, p.config.Providers.Lever.BaseURL)

	runErr := p.forEachSource(ctx, state, models.ProviderLever, func(source models.CompanySource, tenant string) error {
		postings, err := client.Postings(ctx, tenant)
		if err != nil {
			return err
		}
		state.run.Counters.PagesFetched++

		// stable prefix under the tenant cap
		sort.Slice(postings, func(i, j int) bool { return postings[i].ID < postings[j].ID })
		if limit := p.config.Ingestion.MaxJobsPerTenant; limit > 0 && len(postings) > limit {
			postings = postings[:limit]
		}

		for _, posting := range postings {
			offer := lever.MapPosting(posting, source.CompanyID, p.config.Ingestion.MaxDescriptionChars)
			if err := p.processOffer(ctx, state, offer); err != nil {
				return err
			}
		}
		return nil
	})

	return state.run, p.closeRun(ctx, state, runErr)
}

// RunGreenhouse ingests every known Greenhouse board
func (p *Pipeline) RunGreenhouse(ctx context.Context) (*models.IngestionRun, error) {
	state, recorded, err := p.openRun(ctx, models.ProviderGreenhouse, nil)
	if err != nil {
		return nil, err
	}
	client := greenhouse.NewClient(p.logger, recorded, p.config.Providers.Greenhouse.BaseURL, p.config.Ingestion.MaxJobsPerTenant)

	runErr := p.forEachSource(ctx, state, models.ProviderGreenhouse, func(source models.CompanySource, board string) error {
		jobs, err := client.Jobs(ctx, board)
		if err != nil {
			return err
		}
		state.run.Counters.PagesFetched++

		for _, job := range jobs {
			offer := greenhouse.MapJob(job, source.CompanyID, p.config.Ingestion.MaxDescriptionChars)
			if err := p.processOffer(ctx, state, offer); err != nil {
				return err
			}
		}
		return nil
	})

	return state.run, p.closeRun(ctx, state, runErr)
}

// forEachSource iterates an ATS provider's tenants. Per-unit errors are
// counted and logged; only cancellation halts the loop.
func (p *Pipeline) forEachSource(ctx context.Context, state *runState, provider string, unit func(models.CompanySource, string) error) error {
	sources, err := p.store.ListCompanySources(ctx, provider)
	if err != nil {
		return err
	}

	for _, source := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if source.ProviderCompanyID == nil || *source.ProviderCompanyID == "" {
			continue
		}
		if err := unit(source, *source.ProviderCompanyID); err != nil {
			state.run.Counters.ErrorsCount++
			p.logger.Warn().Err(err).
				Str("provider", provider).
				Str("tenant", *source.ProviderCompanyID).
				Msg("Ingestion unit failed")
		}
	}
	return nil
}

// RunGetOnBrd runs one paginated search per configured query, each under
// its own IngestionRun. A 401/403 aborts the current search and stops
// the remaining queries, which share the same credentials.
func (p *Pipeline) RunGetOnBrd(ctx context.Context) ([]*models.IngestionRun, error) {
	var runs []*models.IngestionRun
	var firstErr error

	for _, query := range p.config.Providers.GetOnBrd.Queries {
		run, err := p.runGetOnBrdQuery(ctx, query)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if getonbrd.IsAuthFailure(err) {
			p.logger.Warn().Str("query", query).Msg("Credentials rejected, skipping remaining searches")
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return runs, firstErr
}

func (p *Pipeline) runGetOnBrdQuery(ctx context.Context, query string) (*models.IngestionRun, error) {
	perPage := p.config.Providers.GetOnBrd.PerPage
	fingerprint := getonbrd.QueryFingerprint(query, perPage)

	state, recorded, err := p.openRun(ctx, models.ProviderGetOnBrd, &fingerprint)
	if err != nil {
		return nil, err
	}
	client := getonbrd.NewClient(p.logger, recorded, p.config.Providers.GetOnBrd.BaseURL, p.config.Providers.GetOnBrd.APIToken)

	runErr := p.searchGetOnBrd(ctx, state, client, query, perPage)
	return state.run, p.closeRun(ctx, state, runErr)
}

func (p *Pipeline) searchGetOnBrd(ctx context.Context, state *runState, client *getonbrd.Client, query string, perPage int) error {
	offers := 0
	totalPages := 1

	for page := 1; page <= totalPages && page <= p.config.Ingestion.MaxPagesPerSearch; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := client.Search(ctx, query, perPage, page)
		if err != nil {
			if getonbrd.IsAuthFailure(err) {
				return fmt.Errorf("getonbrd rejected the configured credentials: %w", err)
			}
			state.run.Counters.ErrorsCount++
			p.logger.Warn().Err(err).Str("query", query).Int("page", page).Msg("Search page failed")
			return nil
		}
		state.run.Counters.PagesFetched++
		if result.Meta.TotalPages > 0 {
			totalPages = result.Meta.TotalPages
		}

		for _, summary := range result.Data {
			if offers >= p.config.Ingestion.MaxOffersPerSearch {
				return nil
			}
			offers++

			job, companies, err := client.Job(ctx, summary.ID)
			if err != nil {
				if getonbrd.IsAuthFailure(err) {
					return fmt.Errorf("getonbrd rejected the configured credentials: %w", err)
				}
				state.run.Counters.ErrorsCount++
				p.logger.Warn().Err(err).Str("job_id", summary.ID).Msg("Job hydration failed")
				continue
			}

			offer := getonbrd.MapJob(*job, companies, p.config.Ingestion.MaxDescriptionChars)
			if err := p.processOffer(ctx, state, offer); err != nil {
				state.run.Counters.ErrorsCount++
				p.logger.Warn().Err(err).Str("job_id", summary.ID).Msg("Failed to persist offer")
			}
		}
	}
	return nil
}

// processOffer is the provider-independent path for one mapped offer:
// identity, upsert, repost decision, match, score, affected bookkeeping.
// Store errors propagate to the unit boundary after being counted there.
func (p *Pipeline) processOffer(ctx context.Context, state *runState, incoming models.IncomingOffer) error {
	if err := incoming.Validate(); err != nil {
		state.run.Counters.Skipped++
		p.logger.Debug().Err(err).Msg("Skipping malformed offer")
		return nil
	}

	companyID := incoming.KnownCompanyID
	if companyID == 0 {
		id, err := p.store.UpsertCompany(ctx, incoming.Company)
		if errors.Is(err, storage.ErrMissingIdentity) {
			state.run.Counters.Skipped++
			p.logger.Debug().
				Str("provider", incoming.Provider).
				Str("offer", incoming.ProviderOfferID).
				Msg("Skipping offer without company identity")
			return nil
		}
		if err != nil {
			return err
		}
		companyID = id

		// best effort: the aggregator source row is informational
		if _, err := p.store.UpsertCompanySource(ctx, models.CompanySource{
			CompanyID: companyID,
			Provider:  incoming.Provider,
			URL:       incoming.Company.WebsiteURL,
		}); err != nil {
			p.logger.Warn().Err(err).Int64("company_id", companyID).Msg("Failed to record company source")
		}
	}

	offerID, created, err := p.store.UpsertOffer(ctx, incoming, companyID)
	if err != nil {
		return err
	}
	state.run.Counters.OffersFetched++

	if created {
		if err := p.canonicalize(ctx, state, offerID, companyID, &incoming); err != nil {
			return err
		}
	}

	if err := p.scoreOffer(ctx, offerID, &incoming); err != nil {
		return err
	}

	state.affected[companyID] = true
	return nil
}

// canonicalize runs the repost decision for a newly created offer
func (p *Pipeline) canonicalize(ctx context.Context, state *runState, offerID, companyID int64, incoming *models.IncomingOffer) error {
	fingerprint := repost.Fingerprint(incoming.Title, incoming.Description)
	if fingerprint == nil {
		return nil
	}

	candidates, err := p.store.FindCanonicalOffersByFingerprint(ctx, *fingerprint, companyID)
	if err != nil {
		return err
	}

	decision := repost.Detect(repost.Incoming{
		Title:       incoming.Title,
		Description: incoming.Description,
	}, candidates, p.config.Ingestion.SimilarityThreshold)

	if !decision.IsDuplicate {
		return p.store.SetCanonicalization(ctx, offerID, nil, fingerprint)
	}

	canonicalID := decision.CanonicalOfferID
	if err := p.store.SetCanonicalization(ctx, offerID, &canonicalID, fingerprint); err != nil {
		return err
	}
	if err := p.store.BumpCanonical(ctx, canonicalID, state.now); err != nil {
		return err
	}
	state.run.Counters.Duplicates++

	p.logger.Debug().
		Int64("offer_id", offerID).
		Int64("canonical_id", canonicalID).
		Str("reason", decision.Reason).
		Msg("Offer marked as repost")
	return nil
}

// scoreOffer matches and scores one offer and upserts its Match row.
// Requirements are matched alongside the description; the stored offer
// fields stay as mapped.
func (p *Pipeline) scoreOffer(ctx context.Context, offerID int64, incoming *models.IncomingOffer) error {
	text := incoming.Description
	if incoming.MinRequirements != nil {
		text += "\n" + *incoming.MinRequirements
	}
	if incoming.DesiredRequirements != nil {
		text += "\n" + *incoming.DesiredRequirements
	}

	result := p.matcher.Match(incoming.Title, text)
	scored := p.scorer.Score(result)

	reasons, err := json.Marshal(scored.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode score reasons: %w", err)
	}

	m := models.Match{
		OfferID:        offerID,
		Score:          scored.Score,
		Reasons:        string(reasons),
		CatalogVersion: p.version,
		UpdatedAt:      time.Now().UTC(),
	}
	if scored.TopCategoryID != "" {
		top := scored.TopCategoryID
		m.TopCategoryID = &top
	}
	return p.store.UpsertMatch(ctx, m)
}
