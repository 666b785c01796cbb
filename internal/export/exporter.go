// Package export synchronizes company signals to a Google Sheet and
// reads the human feedback column back. Without credentials it degrades
// to a CSV snapshot and the pull phase is skipped.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/google"

	"github.com/fxlatam/indago/internal/aggregate"
	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/interfaces"
	"github.com/fxlatam/indago/internal/models"
)

const (
	sheetsBaseURL = "https://sheets.googleapis.com/v4"
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
)

// header defines the sheet layout. The feedback column is the last one
// and is never written by push, only read by pull.
var header = []string{
	"Company ID", "Company", "Domain", "Website",
	"Max Score", "Strong Offers", "Unique Offers", "Activity",
	"Avg Strong Score", "Top Category", "Top Offer ID",
	"Category Scores", "Last Strong At", "Exported At", "Feedback",
}

// feedbackColumn is the zero-based index of the feedback column
const feedbackColumn = 14

// Store is the storage surface the exporter needs
type Store interface {
	interfaces.CompanyStorage
	interfaces.OfferStorage
	interfaces.FeedbackStorage
}

// Exporter pushes the company table and pulls feedback
type Exporter struct {
	config          *common.ExportConfig
	strongThreshold int
	store           Store
	logger          arbor.ILogger
	baseURL         string
	client          *http.Client // authenticated; nil = CSV fallback
}

// Option configures an Exporter
type Option func(*Exporter)

// WithHTTPClient substitutes the authenticated Sheets client (tests)
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exporter) {
		e.client = client
	}
}

// WithBaseURL overrides the Sheets API endpoint (tests)
func WithBaseURL(baseURL string) Option {
	return func(e *Exporter) {
		e.baseURL = baseURL
	}
}

// NewExporter creates the exporter. When a credentials file is
// configured, a service-account JWT client is built from it; otherwise
// the exporter runs in CSV fallback mode.
func NewExporter(ctx context.Context, logger arbor.ILogger, config *common.ExportConfig, strongThreshold int, store Store, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		config:          config,
		strongThreshold: strongThreshold,
		store:           store,
		logger:          logger,
		baseURL:         sheetsBaseURL,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil && config.CredentialsFile != "" {
		data, err := os.ReadFile(config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheets credentials: %w", err)
		}
		jwt, err := google.JWTConfigFromJSON(data, sheetsScope)
		if err != nil {
			return nil, fmt.Errorf("invalid sheets credentials: %w", err)
		}
		e.client = jwt.Client(ctx)
	}

	return e, nil
}

// SheetsEnabled reports whether push/pull talks to the Sheets API
func (e *Exporter) SheetsEnabled() bool {
	return e.client != nil && e.config.SpreadsheetID != ""
}

// Run pushes the current company table, then pulls feedback. In CSV
// fallback mode only a snapshot is written.
func (e *Exporter) Run(ctx context.Context) error {
	companies, err := e.store.ListCompaniesForExport(ctx)
	if err != nil {
		return err
	}
	rows := buildRows(companies, time.Now().UTC())

	if !e.SheetsEnabled() {
		return e.writeCSV(rows)
	}

	if err := e.push(ctx, rows); err != nil {
		return err
	}
	return e.pull(ctx)
}

// buildRows renders the sheet rows, header first
func buildRows(companies []models.Company, now time.Time) [][]string {
	rows := [][]string{header}
	stamp := now.Format(time.RFC3339)

	for _, company := range companies {
		agg := company.Aggregates
		row := []string{
			strconv.FormatInt(company.ID, 10),
			deref(company.DisplayName, deref(company.RawName, "")),
			deref(company.WebsiteDomain, ""),
			deref(company.WebsiteURL, ""),
			strconv.Itoa(agg.MaxScore),
			strconv.Itoa(agg.StrongOfferCount),
			strconv.Itoa(agg.UniqueOfferCount),
			strconv.Itoa(agg.OfferCount),
			formatAvg(agg.AvgStrongScore),
			deref(agg.TopCategoryID, ""),
			formatID(agg.TopOfferID),
			formatCategoryScores(agg.CategoryMaxScores),
			formatTime(agg.LastStrongAt),
			stamp,
			"", // feedback: human-owned
		}
		rows = append(rows, row)
	}
	return rows
}

// valueRange is the Sheets API values payload
type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

// push overwrites the data columns of the sheet. The feedback column is
// excluded from the written range so human input survives the push.
func (e *Exporter) push(ctx context.Context, rows [][]string) error {
	trimmed := make([][]string, len(rows))
	for i, row := range rows {
		trimmed[i] = row[:feedbackColumn]
	}

	writeRange := fmt.Sprintf("%s!A1:N%d", e.config.SheetName, len(trimmed))
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW",
		e.baseURL, e.config.SpreadsheetID, url.PathEscape(writeRange))

	body, err := json.Marshal(valueRange{
		Range:          writeRange,
		MajorDimension: "ROWS",
		Values:         trimmed,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets push failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sheets push failed: HTTP %d", resp.StatusCode)
	}

	e.logger.Info().
		Int("rows", len(trimmed)-1).
		Str("spreadsheet", e.config.SpreadsheetID).
		Msg("Pushed companies to sheet")
	return nil
}

// pull reads the feedback column and appends one event per new value.
// A RESOLVED value hands the company off: its offers are deleted and
// its aggregates reset.
func (e *Exporter) pull(ctx context.Context) error {
	readRange := fmt.Sprintf("%s!A2:O", e.config.SheetName)
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		e.baseURL, e.config.SpreadsheetID, url.PathEscape(readRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets pull failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sheets pull failed: HTTP %d", resp.StatusCode)
	}

	var payload valueRange
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode sheets response: %w", err)
	}

	for _, row := range payload.Values {
		if len(row) <= feedbackColumn {
			continue
		}
		value := strings.TrimSpace(row[feedbackColumn])
		if value == "" {
			continue
		}
		companyID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			continue
		}
		if err := e.applyFeedback(ctx, companyID, value); err != nil {
			e.logger.Warn().Err(err).Int64("company_id", companyID).Msg("Failed to apply feedback")
		}
	}
	return nil
}

// applyFeedback records a feedback value once and executes RESOLVED
func (e *Exporter) applyFeedback(ctx context.Context, companyID int64, value string) error {
	events, err := e.store.ListFeedbackEvents(ctx, companyID)
	if err != nil {
		return err
	}
	if len(events) > 0 && events[len(events)-1].Value == value {
		return nil // unchanged since the last pull
	}

	if err := e.store.AppendFeedbackEvent(ctx, models.FeedbackEvent{
		ID:        common.NewEventID(),
		CompanyID: companyID,
		Value:     value,
		Source:    models.FeedbackSourceSheet,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	e.logger.Info().
		Int64("company_id", companyID).
		Str("value", value).
		Msg("Recorded sheet feedback")

	if !strings.EqualFold(value, models.FeedbackResolved) {
		return nil
	}

	if err := e.store.DeleteCompanyOffers(ctx, companyID); err != nil {
		return err
	}
	empty := aggregate.Compute(nil, e.strongThreshold)
	if err := e.store.UpdateCompanyAggregates(ctx, companyID, empty); err != nil {
		return err
	}
	e.logger.Info().Int64("company_id", companyID).Msg("Company resolved, offers cleared")
	return nil
}

// writeCSV writes the fallback snapshot
func (e *Exporter) writeCSV(rows [][]string) error {
	if err := os.MkdirAll(e.config.CSVDir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.config.CSVDir, fmt.Sprintf("companies_%s.csv", time.Now().UTC().Format("20060102_150405")))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv snapshot: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv snapshot: %w", err)
	}

	e.logger.Info().Str("path", path).Int("rows", len(rows)-1).Msg("Wrote CSV snapshot")
	return nil
}

func deref(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}

func formatAvg(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCategoryScores(scores map[string]int) string {
	if len(scores) == 0 {
		return ""
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return ""
	}
	return string(data)
}
