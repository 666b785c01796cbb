package discovery

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/interfaces"
	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/storage"
)

// BatchStats summarizes one discovery batch
type BatchStats struct {
	Probed           int
	Found            int
	NotFound         int
	Errors           int
	PersistConflicts int
}

// Store is the storage surface the batch runner needs
type Store interface {
	interfaces.CompanyStorage
	interfaces.CompanySourceStorage
}

// Service probes companies that still lack an ATS source and persists
// what the crawler finds
type Service struct {
	config  *common.DiscoveryConfig
	crawler *Crawler
	store   Store
	logger  arbor.ILogger
}

// NewService creates the discovery batch runner
func NewService(logger arbor.ILogger, config *common.DiscoveryConfig, crawler *Crawler, store Store) *Service {
	return &Service{
		config:  config,
		crawler: crawler,
		store:   store,
		logger:  logger,
	}
}

// Run probes one batch of companies, one at a time: each company is
// crawled and its result persisted before the next is touched. A tenant
// already claimed by another company is counted as a conflict and
// warned, never failed.
func (s *Service) Run(ctx context.Context) (BatchStats, error) {
	var stats BatchStats

	companies, err := s.store.CompaniesNeedingDiscovery(ctx, models.ATSProviders, s.config.BatchLimit)
	if err != nil {
		return stats, err
	}
	if len(companies) == 0 {
		s.logger.Debug().Msg("No companies need discovery")
		return stats, nil
	}

	s.logger.Info().Int("companies", len(companies)).Msg("Starting discovery batch")

	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var result Result
		if company.WebsiteURL == nil {
			result = Result{Outcome: OutcomeError, Message: "company has no website url"}
		} else {
			result = s.crawler.Discover(ctx, *company.WebsiteURL)
		}
		stats.Probed++

		switch result.Outcome {
		case OutcomeNotFound:
			stats.NotFound++
		case OutcomeError:
			stats.Errors++
			s.logger.Warn().
				Int64("company_id", company.ID).
				Str("message", result.Message).
				Msg("Discovery failed for company")
		case OutcomeFound:
			tenant := result.TenantKey
			evidence := result.EvidenceURL
			_, err := s.store.UpsertCompanySource(ctx, models.CompanySource{
				CompanyID:         company.ID,
				Provider:          result.Provider,
				ProviderCompanyID: &tenant,
				URL:               &evidence,
			})
			switch {
			case errors.Is(err, storage.ErrUniqueConstraint):
				stats.PersistConflicts++
				s.logger.Warn().
					Int64("company_id", company.ID).
					Str("provider", result.Provider).
					Str("tenant", tenant).
					Msg("Tenant already claimed by another company")
			case err != nil:
				stats.Errors++
				s.logger.Warn().Err(err).
					Int64("company_id", company.ID).
					Msg("Failed to persist discovered source")
			default:
				stats.Found++
			}
		}
	}

	s.logger.Info().
		Int("probed", stats.Probed).
		Int("found", stats.Found).
		Int("not_found", stats.NotFound).
		Int("conflicts", stats.PersistConflicts).
		Int("errors", stats.Errors).
		Msg("Discovery batch complete")

	return stats, nil
}
