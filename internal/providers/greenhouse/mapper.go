package greenhouse

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fxlatam/indago/internal/models"
	"github.com/fxlatam/indago/internal/providers/htmltext"
)

// MapJob converts a boards API job into the canonical ingestion shape.
// The content field arrives as entity-escaped HTML; htmltext decodes and
// converts it. Boards are resolved to a company before ingestion, so the
// company id is always known here.
func MapJob(job Job, companyID int64, maxDescriptionChars int) models.IncomingOffer {
	offer := models.IncomingOffer{
		Provider:        models.ProviderGreenhouse,
		ProviderOfferID: strconv.FormatInt(job.ID, 10),
		Title:           strings.TrimSpace(job.Title),
		Description:     htmltext.Truncate(htmltext.Convert(job.Content), maxDescriptionChars),
		KnownCompanyID:  companyID,
	}

	if job.AbsoluteURL != "" {
		offer.URL = &job.AbsoluteURL
	}
	if location := strings.TrimSpace(job.Location.Name); location != "" {
		offer.Location = &location
	}
	if job.UpdatedAt != "" {
		if updatedAt, err := time.Parse(time.RFC3339, job.UpdatedAt); err == nil {
			utc := updatedAt.UTC()
			offer.UpdatedAt = &utc
		}
	}

	foldMetadata(job.Metadata, &offer.Metadata)

	return offer
}

// foldMetadata maps known custom-field names onto the classification
// fields. Unknown names are dropped; list values are joined.
func foldMetadata(fields []Metadata, meta *models.OfferMetadata) {
	for _, field := range fields {
		value := metadataValue(field.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(field.Name)) {
		case "salary", "salary range", "compensation":
			if meta.Salary == nil {
				meta.Salary = strp(value)
			}
		case "experience", "seniority", "experience level":
			if meta.Experience == nil {
				meta.Experience = strp(value)
			}
		case "employment type", "contract type", "contract":
			if meta.ContractType == nil {
				meta.ContractType = strp(value)
			}
		case "schedule", "workday", "work schedule":
			if meta.Workday == nil {
				meta.Workday = strp(value)
			}
		case "department", "area":
			if meta.Category == nil {
				meta.Category = strp(value)
			}
		case "team":
			if meta.Subcategory == nil {
				meta.Subcategory = strp(value)
			}
		}
	}
}

// metadataValue decodes a custom-field value, which may be a string,
// a string list, or null
func metadataValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, ", "))
	}
	return ""
}

func strp(s string) *string {
	return &s
}
