package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pierrevano/whatson-api-sub001/internal/catalog"
	"github.com/pierrevano/whatson-api-sub001/internal/cli"
	"github.com/pierrevano/whatson-api-sub001/internal/config"
	"github.com/pierrevano/whatson-api-sub001/internal/deriver"
	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
	"github.com/pierrevano/whatson-api-sub001/internal/logging"
	"github.com/pierrevano/whatson-api-sub001/internal/store"
)

// runReconcile deactivates items whose rows disappeared from the current
// canonical id list. Documents are patched in place, never deleted.
func runReconcile(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dataset := fs.String("dataset", "catalog.json", "Path to the catalog dataset JSON")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Report what would be deactivated without writing")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	rows, err := catalog.Load(*dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dataset: %v\n", err)
		return 1
	}

	templates := templatesFromConfig(cfg)
	activeKeys := make([]string, 0, len(rows))
	for index, row := range rows {
		derived, derr := deriver.Derive(row, templates, nil)
		if derr != nil {
			fmt.Fprintf(os.Stderr, "Invalid dataset row %d: %v\n", index, derr)
			return 1
		}
		activeKeys = append(activeKeys, store.ItemKey(derived.Homepage))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	if *dryRun {
		count, cerr := pool.CountItems(ctx)
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "Failed to count items: %v\n", cerr)
			return 1
		}
		fmt.Printf("dry_run=true total_items=%d active_dataset_rows=%d\n", count, len(activeKeys))
		return 0
	}

	deactivated, err := pool.DeactivateExcept(ctx, activeKeys, globaltime.UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to deactivate items: %v\n", err)
		return 1
	}

	logger.Info().Int64("deactivated", deactivated).Msg("reconcile completed")
	fmt.Printf("deactivated=%d\n", deactivated)
	return 0
}
