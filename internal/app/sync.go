package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pierrevano/whatson-api-sub001/internal/builder"
	"github.com/pierrevano/whatson-api-sub001/internal/catalog"
	"github.com/pierrevano/whatson-api-sub001/internal/cli"
	"github.com/pierrevano/whatson-api-sub001/internal/config"
	"github.com/pierrevano/whatson-api-sub001/internal/deriver"
	"github.com/pierrevano/whatson-api-sub001/internal/detect"
	"github.com/pierrevano/whatson-api-sub001/internal/episodes"
	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
	"github.com/pierrevano/whatson-api-sub001/internal/logging"
	"github.com/pierrevano/whatson-api-sub001/internal/store"
	"github.com/pierrevano/whatson-api-sub001/internal/syncer"
	"github.com/pierrevano/whatson-api-sub001/internal/tmdb"
)

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dataset := fs.String("dataset", "catalog.json", "Path to the catalog dataset JSON")
	fromIndex := fs.Int("from-index", 0, "First row index to process (resume point)")
	maxIndex := fs.Int("max-index", -1, "Inclusive last row index; -1 disables the bound")
	force := fs.Bool("force", false, "Rebuild every row, skipping change detection")
	providers := fs.String("providers", "", "Comma-separated optional provider columns (default: all)")
	timeout := fs.Duration("timeout", 6*time.Hour, "Whole-run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *fromIndex < 0 {
		fmt.Fprintln(os.Stderr, "--from-index must not be negative")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	enabled, err := catalog.ParseOptionalFields(*providers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --providers: %v\n", err)
		return 2
	}

	rows, err := catalog.Load(*dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		return 1
	}
	if *fromIndex >= len(rows) {
		fmt.Fprintf(os.Stderr, "--from-index %d is beyond the dataset (%d rows)\n", *fromIndex, len(rows))
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	for _, result := range checkProviders(ctx, cfg, logger) {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "Warning: provider %s unreachable: %v\n", result.name, result.err)
		}
	}

	httpClient, err := httpx.New(httpx.Options{
		Timeout:           cfg.HTTPTimeout,
		RetryCount:        cfg.HTTPRetryCount,
		RetryDelay:        cfg.HTTPRetryDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize HTTP client: %v\n", err)
		return 1
	}

	tmdbClient := tmdb.New(httpClient, cfg.TMDBBaseURL, cfg.TMDBAPIKey, logger)
	episodeFetcher := episodes.NewFetcher(httpClient, cfg.IMDbGraphQLURL, cfg.IMDbBaseURL, cfg.EpisodePageSize, logger)
	contentBuilder := builder.New(httpClient, tmdbClient, episodeFetcher, nil, logger)
	detector := detect.New(httpClient, cfg.APIBaseURL, logger)

	opts := syncer.Options{
		StartIndex:       *fromIndex,
		MaxIndex:         *maxIndex,
		ForceRefresh:     *force,
		MaxHeapBytes:     uint64(cfg.MaxHeapMB) * 1024 * 1024,
		RatingsErrorLog:  cfg.RatingsErrorLog,
		Templates:        templatesFromConfig(cfg),
		EnabledProviders: enabled,
	}

	runID, runUUID, err := pool.InsertRun(ctx, globaltime.UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open sync run: %v\n", err)
		return 1
	}
	logger.Info().
		Int64("run_id", runID).
		Str("run_uuid", runUUID).
		Int("rows", len(rows)).
		Int("from_index", *fromIndex).
		Msg("sync run starting")

	svc := syncer.New(pool, detector, contentBuilder, syncer.RuntimeProbe{}, opts, logger)
	report, runErr := svc.Run(ctx, rows)

	totals := store.RunTotals{
		RowsProcessed: report.RowsProcessed,
		RowsWritten:   report.RowsWritten,
		RowsSkipped:   report.RowsSkipped,
		LastIndex:     report.LastIndex,
		StopReason:    string(report.StopReason),
	}
	finishedAt := globaltime.UTC()

	if runErr != nil {
		if err := pool.FailRun(ctx, runID, totals, runErr, finishedAt); err != nil {
			logger.Error().Err(err).Msg("cannot mark sync run failed")
		}
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", runErr)
		return 1
	}

	if err := pool.CompleteRun(ctx, runID, totals, finishedAt); err != nil {
		logger.Error().Err(err).Msg("cannot mark sync run completed")
	}

	fmt.Printf("run_uuid=%s processed=%d written=%d skipped=%d\n",
		runUUID, report.RowsProcessed, report.RowsWritten, report.RowsSkipped)
	fmt.Printf("stop_reason=%s resume_index=%d\n", report.StopReason, report.LastIndex)
	return 0
}

func templatesFromConfig(cfg *config.Config) deriver.Templates {
	return deriver.Templates{
		AlloCineBase:       cfg.AlloCineBaseURL,
		IMDbBase:           cfg.IMDbBaseURL,
		BetaseriesBase:     cfg.BetaseriesBaseURL,
		MetacriticBase:     cfg.MetacriticBaseURL,
		RottenTomatoesBase: cfg.RottenTomatoesBaseURL,
		SensCritiqueBase:   cfg.SensCritiqueBaseURL,
		TraktBase:          cfg.TraktBaseURL,
		TMDBHomeBase:       deriver.DefaultTMDBHomeBase,
	}
}
