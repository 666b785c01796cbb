package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string                  `toml:"environment" validate:"required,oneof=development production"`
	Storage     StorageConfig           `toml:"storage"`
	Logging     LoggingConfig           `toml:"logging"`
	HTTP        HTTPConfig              `toml:"http"`
	Discovery   DiscoveryConfig         `toml:"discovery"`
	Ingestion   IngestionConfig         `toml:"ingestion"`
	Catalog     CatalogConfig           `toml:"catalog"`
	Scoring     ScoringConfig           `toml:"scoring"`
	Directories []DirectorySourceConfig `toml:"directories" validate:"dive"`
	Providers   ProvidersConfig         `toml:"providers"`
	Export      ExportConfig            `toml:"export"`
	Scheduler   SchedulerConfig         `toml:"scheduler"`
	Lock        LockConfig              `toml:"lock"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Cache  CacheConfig  `toml:"cache"`
}

// SQLiteConfig represents the embedded relational store configuration
type SQLiteConfig struct {
	Path string `toml:"path" validate:"required"` // Database file path, or ":memory:" for tests
}

// CacheConfig represents the BadgerDB page-cache configuration
type CacheConfig struct {
	Path           string        `toml:"path" validate:"required"` // Cache directory path
	TTL            time.Duration `toml:"ttl"`                      // Freshness window for cached pages
	ResetOnStartup bool          `toml:"reset_on_startup"`         // Delete cache on startup for clean runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Format     string   `toml:"format" validate:"oneof=text json"`            // "json" or "text"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                  // Time format for logs (default: "15:04:05")
}

// HTTPConfig contains transport-level settings shared by all outbound clients
type HTTPConfig struct {
	UserAgent      string        `toml:"user_agent"`                        // User agent for all outbound requests
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gt=0"`   // Per-request timeout
	MaxAttempts    int           `toml:"max_attempts" validate:"min=1"`     // Total attempts per request (1 = no retries)
	RetryBaseDelay time.Duration `toml:"retry_base_delay" validate:"gt=0"`  // First backoff step
	RetryMaxDelay  time.Duration `toml:"retry_max_delay" validate:"gt=0"`   // Backoff ceiling
	MaxRetryAfter  time.Duration `toml:"max_retry_after"`                   // Clamp for server-provided Retry-After
	RateLimit      float64       `toml:"rate_limit" validate:"gt=0"`        // Requests per second per client
	RateBurst      int           `toml:"rate_burst" validate:"min=1"`       // Rate limiter burst
	MaxBodyBytes   int64         `toml:"max_body_bytes" validate:"gt=0"`    // Maximum response body size in bytes
}

// DiscoveryConfig contains ATS discovery crawl settings
type DiscoveryConfig struct {
	CandidatePaths   []string      `toml:"candidate_paths"`    // Ordered career-page paths appended to the base URL
	LinkKeywords     []string      `toml:"link_keywords"`      // Substrings an anchor URL must contain to be followed
	AllowedATSHosts  []string      `toml:"allowed_ats_hosts"`  // External hosts an anchor may point at
	MaxHTMLChars     int           `toml:"max_html_chars" validate:"gt=0"`     // Detector scan window per page
	MaxURLLength     int           `toml:"max_url_length" validate:"gt=0"`     // Anchor URLs longer than this are skipped
	MaxLinksToFollow int           `toml:"max_links_to_follow" validate:"gt=0"` // 1-hop follow cap per company
	BatchLimit       int           `toml:"batch_limit" validate:"min=1"`       // Companies pulled per discovery batch
}

// IngestionConfig contains per-provider work caps
type IngestionConfig struct {
	MaxJobsPerTenant    int     `toml:"max_jobs_per_tenant" validate:"gt=0"`    // Offers kept per ATS tenant after sort
	MaxDescriptionChars int     `toml:"max_description_chars" validate:"gt=0"`  // Description truncation during mapping
	MaxOffersPerSearch  int     `toml:"max_offers_per_search" validate:"gt=0"`  // Aggregator offer cap per search
	MaxPagesPerSearch   int     `toml:"max_pages_per_search" validate:"gt=0"`   // Aggregator page cap per search
	SimilarityThreshold float64 `toml:"similarity_threshold" validate:"gt=0,lte=1"` // Repost description-overlap threshold
}

// CatalogConfig points at an optional catalog file that overrides the embedded one
type CatalogConfig struct {
	Path string `toml:"path"` // Catalog document path (YAML); empty = embedded default
}

// ScoringConfig contains the user-tunable scoring thresholds.
// Tier weights and bucket caps live with the scorer defaults.
type ScoringConfig struct {
	StrongThreshold   int     `toml:"strong_threshold" validate:"min=0,max=10"` // Score at or above which an offer is strong
	NoFXMaxScore      float64 `toml:"no_fx_max_score" validate:"gte=0,lt=10"`   // Clamp when no FX core signal is present
	FXCoreThreshold   float64 `toml:"fx_core_threshold" validate:"gt=0"`        // direct_fx pre-cap sum needed for FX core
	TitleWeight       float64 `toml:"title_weight" validate:"gt=0"`             // Field weight for title hits
	DescriptionWeight float64 `toml:"description_weight" validate:"gt=0"`       // Field weight for description hits
}

// DirectorySourceConfig declares one company directory to scrape
type DirectorySourceConfig struct {
	Name              string `toml:"name" validate:"required"`
	URL               string `toml:"url" validate:"required,url"`
	Kind              string `toml:"kind" validate:"oneof=single_page listing_detail"`
	DetailPathPattern string `toml:"detail_path_pattern"` // Substring identifying detail-page links (listing_detail only)
	MaxCompanies      int    `toml:"max_companies"`       // Per-source company cap
	MaxDetailPages    int    `toml:"max_detail_pages"`    // Detail pages fetched per listing (listing_detail only)
	MaxLinksPerDetail int    `toml:"max_links_per_detail"` // External website links taken per detail page
}

type ProvidersConfig struct {
	Lever      LeverConfig      `toml:"lever"`
	Greenhouse GreenhouseConfig `toml:"greenhouse"`
	GetOnBrd   GetOnBrdConfig   `toml:"getonbrd"`
}

type LeverConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
}

type GreenhouseConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
}

// GetOnBrdConfig configures the aggregator provider
type GetOnBrdConfig struct {
	BaseURL  string   `toml:"base_url" validate:"required,url"`
	Queries  []string `toml:"queries"`  // Search terms, one paginated search each
	PerPage  int      `toml:"per_page"` // Page size for search pagination
	APIToken string   `toml:"api_token"`
}

// ExportConfig configures the spreadsheet synchronizer
type ExportConfig struct {
	SpreadsheetID   string `toml:"spreadsheet_id"`
	CredentialsFile string `toml:"credentials_file"` // Service account JSON key
	SheetName       string `toml:"sheet_name"`
	CSVDir          string `toml:"csv_dir"` // Fallback snapshot directory when no credentials
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression for serve mode
}

// LockConfig configures the advisory run lock
type LockConfig struct {
	TTL time.Duration `toml:"ttl" validate:"gt=0"` // Lock expiry; a live run refreshes before this elapses
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in indago.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path: "./data/indago.db",
			},
			Cache: CacheConfig{
				Path: "./data/cache",
				TTL:  24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		HTTP: HTTPConfig{
			UserAgent:      "indago/1.0 (+https://github.com/fxlatam/indago)",
			RequestTimeout: 30 * time.Second,
			MaxAttempts:    4,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  8 * time.Second,
			MaxRetryAfter:  30 * time.Second,
			RateLimit:      2.0, // 2 requests per second per client
			RateBurst:      1,
			MaxBodyBytes:   10 * 1024 * 1024, // 10MB
		},
		Discovery: DiscoveryConfig{
			CandidatePaths: []string{
				"/careers", "/careers/", "/jobs", "/jobs/",
				"/join", "/join-us", "/company/careers", "/about/careers",
				"/company/jobs", "/es/carreras", "/trabaja-con-nosotros",
			},
			LinkKeywords: []string{
				"career", "careers", "jobs", "job", "join",
				"empleo", "empleos", "trabaja", "trabajo", "vacantes",
				"talento", "talent", "hiring", "positions", "opportunities",
				"lever", "greenhouse",
			},
			AllowedATSHosts: []string{
				"jobs.lever.co", "jobs.eu.lever.co",
				"boards.greenhouse.io", "job-boards.greenhouse.io",
				"boards.eu.greenhouse.io",
			},
			MaxHTMLChars:     200_000,
			MaxURLLength:     300,
			MaxLinksToFollow: 10,
			BatchLimit:       100,
		},
		Ingestion: IngestionConfig{
			MaxJobsPerTenant:    500,
			MaxDescriptionChars: 20_000,
			MaxOffersPerSearch:  300,
			MaxPagesPerSearch:   15,
			SimilarityThreshold: 0.90,
		},
		Catalog: CatalogConfig{
			Path: "", // embedded default catalog
		},
		Scoring: ScoringConfig{
			StrongThreshold:   7,
			NoFXMaxScore:      4,
			FXCoreThreshold:   3.0,
			TitleWeight:       1.5,
			DescriptionWeight: 1.0,
		},
		Directories: []DirectorySourceConfig{},
		Providers: ProvidersConfig{
			Lever: LeverConfig{
				BaseURL: "https://api.lever.co/v0",
			},
			Greenhouse: GreenhouseConfig{
				BaseURL: "https://boards-api.greenhouse.io/v1",
			},
			GetOnBrd: GetOnBrdConfig{
				BaseURL: "https://www.getonbrd.com/api/v0",
				Queries: []string{},
				PerPage: 25,
			},
		},
		Export: ExportConfig{
			SheetName: "Companies",
			CSVDir:    "./data/export",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 0 */6 * * *", // Every 6 hours (cron format with seconds)
		},
		Lock: LockConfig{
			TTL: 30 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings
// take precedence over base.toml.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: INDAGO_ENV, fallback: GO_ENV)
	if env := os.Getenv("INDAGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if dbPath := os.Getenv("INDAGO_DB_PATH"); dbPath != "" {
		config.Storage.SQLite.Path = dbPath
	}
	if cachePath := os.Getenv("INDAGO_CACHE_PATH"); cachePath != "" {
		config.Storage.Cache.Path = cachePath
	}

	// Logging configuration
	if level := os.Getenv("INDAGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("INDAGO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("INDAGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// HTTP configuration
	if userAgent := os.Getenv("INDAGO_HTTP_USER_AGENT"); userAgent != "" {
		config.HTTP.UserAgent = userAgent
	}
	if timeout := os.Getenv("INDAGO_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.HTTP.RequestTimeout = d
		}
	}
	if attempts := os.Getenv("INDAGO_HTTP_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			config.HTTP.MaxAttempts = n
		}
	}
	if rateLimit := os.Getenv("INDAGO_HTTP_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.HTTP.RateLimit = rl
		}
	}

	// Discovery configuration
	if batchLimit := os.Getenv("INDAGO_DISCOVERY_BATCH_LIMIT"); batchLimit != "" {
		if n, err := strconv.Atoi(batchLimit); err == nil {
			config.Discovery.BatchLimit = n
		}
	}

	// Catalog configuration
	if catalogPath := os.Getenv("INDAGO_CATALOG_PATH"); catalogPath != "" {
		config.Catalog.Path = catalogPath
	}

	// Provider configuration
	if leverBase := os.Getenv("INDAGO_LEVER_BASE_URL"); leverBase != "" {
		config.Providers.Lever.BaseURL = leverBase
	}
	if greenhouseBase := os.Getenv("INDAGO_GREENHOUSE_BASE_URL"); greenhouseBase != "" {
		config.Providers.Greenhouse.BaseURL = greenhouseBase
	}
	if getonbrdBase := os.Getenv("INDAGO_GETONBRD_BASE_URL"); getonbrdBase != "" {
		config.Providers.GetOnBrd.BaseURL = getonbrdBase
	}
	if token := os.Getenv("INDAGO_GETONBRD_TOKEN"); token != "" {
		config.Providers.GetOnBrd.APIToken = token
	}

	// Export configuration
	if spreadsheetID := os.Getenv("INDAGO_SHEETS_SPREADSHEET_ID"); spreadsheetID != "" {
		config.Export.SpreadsheetID = spreadsheetID
	}
	if credentialsFile := os.Getenv("INDAGO_SHEETS_CREDENTIALS_FILE"); credentialsFile != "" {
		config.Export.CredentialsFile = credentialsFile
	}
	if csvDir := os.Getenv("INDAGO_EXPORT_CSV_DIR"); csvDir != "" {
		config.Export.CSVDir = csvDir
	}

	// Scheduler configuration
	if schedule := os.Getenv("INDAGO_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}

	// Lock configuration
	if ttl := os.Getenv("INDAGO_LOCK_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Lock.TTL = d
		}
	}
}

// IsProduction returns true when the environment is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
