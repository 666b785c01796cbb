package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/fxlatam/indago/internal/app"
	"github.com/fxlatam/indago/internal/common"
	"github.com/fxlatam/indago/internal/discovery"
	"github.com/fxlatam/indago/internal/orchestrator"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	serveMode    = flag.Bool("serve", false, "Run on the configured schedule instead of once")
	showRuns     = flag.Int("runs", 0, "Print the last N ingestion runs and exit")
	discoverURL  = flag.String("discover-url", "", "Probe a single website for an ATS board and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	// Handle version flag
	if *showVersion || *showVersionV {
		fmt.Printf("Indago version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Load a local .env before config so INDAGO_* overrides pick it up.
	// Missing files are fine.
	_ = godotenv.Load()

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("indago.toml"); err == nil {
			configFiles = append(configFiles, "indago.toml")
		} else if _, err := os.Stat("deployments/local/indago.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/indago.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("db_path", config.Storage.SQLite.Path).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case *showRuns > 0:
		err = printRuns(ctx, application, *showRuns)
	case *discoverURL != "":
		err = probeURL(ctx, application, *discoverURL)
	case *serveMode || config.Scheduler.Enabled:
		err = serve(ctx, cancel, application)
	default:
		err = runOnce(ctx, application)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Indago exited with errors")
		application.Close()
		os.Exit(1)
	}
}

// runOnce executes a single pipeline invocation
func runOnce(ctx context.Context, application *app.App) error {
	err := application.Orchestrator.Run(ctx)
	if errors.Is(err, orchestrator.ErrLocked) {
		logger.Warn().Msg("Another pipeline run is in progress, nothing to do")
		return nil
	}
	return err
}

// serve runs the pipeline on the configured cron schedule until an
// interrupt arrives. Overlapping triggers are skipped via the run lock.
func serve(ctx context.Context, cancel context.CancelFunc, application *app.App) error {
	scheduler := cron.New(cron.WithSeconds())
	_, err := scheduler.AddFunc(config.Scheduler.Schedule, func() {
		common.Recovered(logger, "scheduled-run", func() {
			started := time.Now()
			if err := application.Orchestrator.Run(ctx); err != nil {
				if errors.Is(err, orchestrator.ErrLocked) {
					logger.Warn().Msg("Previous pipeline run still active, skipping this trigger")
					return
				}
				logger.Error().Err(err).Msg("Scheduled pipeline run failed")
				return
			}
			logger.Info().Dur("elapsed", time.Since(started)).Msg("Scheduled pipeline run completed")
		})
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", config.Scheduler.Schedule, err)
	}

	scheduler.Start()
	logger.Info().
		Str("schedule", config.Scheduler.Schedule).
		Msg("Scheduler started - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
	cancel()

	// Wait for an in-flight job to notice the cancelled context
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("Timed out waiting for the running job to stop")
	}

	logger.Info().Msg("Scheduler stopped")
	return nil
}

// printRuns lists the most recent ingestion runs
func printRuns(ctx context.Context, application *app.App, limit int) error {
	runs, err := application.StorageManager.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No ingestion runs recorded yet")
		return nil
	}

	for _, run := range runs {
		ended := "-"
		if run.EndedAt != nil {
			ended = run.EndedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-11s %-8s started=%s ended=%s offers=%d pages=%d requests=%d errors=%d skipped=%d duplicates=%d\n",
			run.ID, run.Provider, run.Status,
			run.StartedAt.Format(time.RFC3339), ended,
			run.Counters.OffersFetched, run.Counters.PagesFetched,
			run.Counters.RequestsCount, run.Counters.ErrorsCount,
			run.Counters.Skipped, run.Counters.Duplicates)
		if run.Error != nil {
			fmt.Printf("    error: %s\n", *run.Error)
		}
	}
	return nil
}

// probeURL runs the discovery crawler against one website and prints the
// decision without persisting anything
func probeURL(ctx context.Context, application *app.App, websiteURL string) error {
	result := application.Crawler.Discover(ctx, websiteURL)
	switch result.Outcome {
	case discovery.OutcomeFound:
		fmt.Printf("found: provider=%s tenant=%s evidence=%s\n",
			result.Provider, result.TenantKey, result.EvidenceURL)
	case discovery.OutcomeNotFound:
		fmt.Println("not found: no ATS board detected")
	default:
		fmt.Printf("error: %s\n", result.Message)
	}
	return nil
}
