package getonbrd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/identity"
	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/providers/htmltext"
)

// MapJob converts a hydrated job plus its side-loaded companies into the
// canonical ingestion shape. Company identity comes from the payload:
// the website URL yields the strong domain key, the name the fallback.
func MapJob(job JobResource, companies []CompanyResource, maxDescriptionChars int) models.IncomingOffer {
	attrs := job.Attributes

	var parts []string
	if text := htmltext.Convert(attrs.Description); text != "" {
		parts = append(parts, text)
	}
	if text := htmltext.Convert(attrs.Functions); text != "" {
		parts = append(parts, "Functions\n"+text)
	}
	description := htmltext.Truncate(strings.Join(parts, "\n\n"), maxDescriptionChars)

	offer := models.IncomingOffer{
		Provider:        models.ProviderGetOnBrd,
		ProviderOfferID: job.ID,
		Title:           strings.TrimSpace(attrs.Title),
		Description:     description,
	}

	if text := htmltext.Convert(attrs.Requirements); text != "" {
		offer.MinRequirements = &text
	}
	if text := htmltext.Convert(attrs.Desirable); text != "" {
		offer.DesiredRequirements = &text
	}
	if attrs.PublishedAt > 0 {
		publishedAt := time.Unix(attrs.PublishedAt, 0).UTC()
		offer.PublishedAt = &publishedAt
	}
	if attrs.ApplicationsCount != nil {
		count := *attrs.ApplicationsCount
		offer.ApplicationsCount = &count
	}
	if location := mapLocation(attrs); location != "" {
		offer.Location = &location
	}
	if category := strings.TrimSpace(attrs.CategoryName); category != "" {
		offer.Metadata.Category = &category
	}
	if seniority := strings.TrimSpace(attrs.SeniorityName); seniority != "" {
		offer.Metadata.Experience = &seniority
	}
	if modality := strings.TrimSpace(attrs.ModalityName); modality != "" {
		offer.Metadata.ContractType = &modality
	}
	if salary := mapSalary(attrs); salary != "" {
		offer.Metadata.Salary = &salary
	}

	if company := resolveCompany(job, companies); company != nil {
		offer.Company = identity.Evidence(company.Attributes.Name, company.Attributes.WebsiteURL)
	}

	return offer
}

// mapLocation combines country and remote modality into one label
func mapLocation(attrs JobAttributes) string {
	var parts []string
	if country := strings.TrimSpace(attrs.CountryName); country != "" {
		parts = append(parts, country)
	}
	if attrs.Remote {
		modality := strings.TrimSpace(attrs.RemoteModality)
		if modality == "" {
			modality = "remote"
		}
		parts = append(parts, modality)
	}
	return strings.Join(parts, " · ")
}

// mapSalary renders the salary block when either bound is present.
// GetOnBrd salaries are monthly USD.
func mapSalary(attrs JobAttributes) string {
	switch {
	case attrs.MinSalary != nil && attrs.MaxSalary != nil:
		return fmt.Sprintf("%d-%d USD/month", *attrs.MinSalary, *attrs.MaxSalary)
	case attrs.MinSalary != nil:
		return fmt.Sprintf("from %d USD/month", *attrs.MinSalary)
	case attrs.MaxSalary != nil:
		return fmt.Sprintf("up to %d USD/month", *attrs.MaxSalary)
	}
	return ""
}

// resolveCompany finds the job's company among the side-loaded records
func resolveCompany(job JobResource, companies []CompanyResource) *CompanyResource {
	ref := job.Relationships.Company.Data
	for i := range companies {
		if companies[i].ID == ref.ID {
			return &companies[i]
		}
	}
	if ref.ID == "" && len(companies) == 1 {
		return &companies[0]
	}
	return nil
}
