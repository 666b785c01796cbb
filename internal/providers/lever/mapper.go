package lever

import (
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/providers/htmltext"
)

// MapPosting converts an API posting into the canonical ingestion shape.
// The plain-text variants are preferred; HTML fields are converted only
// when no plain text is present. Lever tenants are resolved to a company
// before ingestion, so the company id is always known here.
func MapPosting(posting Posting, companyID int64, maxDescriptionChars int) models.IncomingOffer {
	var parts []string
	if text := pickText(posting.DescriptionPlain, posting.Description); text != "" {
		parts = append(parts, text)
	}
	for _, list := range posting.Lists {
		var section strings.Builder
		if title := strings.TrimSpace(list.Text); title != "" {
			section.WriteString(title)
		}
		if content := htmltext.Convert(list.Content); content != "" {
			if section.Len() > 0 {
				section.WriteString("\n")
			}
			section.WriteString(content)
		}
		if section.Len() > 0 {
			parts = append(parts, section.String())
		}
	}
	if text := pickText(posting.AdditionalPlain, posting.Additional); text != "" {
		parts = append(parts, text)
	}

	description := htmltext.Truncate(strings.Join(parts, "\n\n"), maxDescriptionChars)

	offer := models.IncomingOffer{
		Provider:        models.ProviderLever,
		ProviderOfferID: posting.ID,
		Title:           strings.TrimSpace(posting.Text),
		Description:     description,
		KnownCompanyID:  companyID,
	}

	if posting.HostedURL != "" {
		offer.URL = &posting.HostedURL
	}
	if location := strings.TrimSpace(posting.Categories.Location); location != "" {
		offer.Location = &location
	}
	if posting.CreatedAt > 0 {
		publishedAt := time.UnixMilli(posting.CreatedAt).UTC()
		offer.PublishedAt = &publishedAt
	}
	if department := strings.TrimSpace(posting.Categories.Department); department != "" {
		offer.Metadata.Category = &department
	}
	if team := strings.TrimSpace(posting.Categories.Team); team != "" {
		offer.Metadata.Subcategory = &team
	}
	if commitment := strings.TrimSpace(posting.Categories.Commitment); commitment != "" {
		offer.Metadata.ContractType = &commitment
	}

	return offer
}

// pickText prefers the plain variant and falls back to converted HTML
func pickText(plain, html string) string {
	if trimmed := strings.TrimSpace(plain); trimmed != "" {
		return trimmed
	}
	return htmltext.Convert(html)
}
