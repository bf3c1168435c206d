package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/cli"
	"github.com/pierrevano/whatson-api-sub001/internal/config"
	"github.com/pierrevano/whatson-api-sub001/internal/logging"
	"github.com/pierrevano/whatson-api-sub001/internal/store"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	exitCode := 0

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: unreachable (%v)\n", err)
		exitCode = 1
	} else {
		defer pool.Close()
		count, cerr := pool.EstimatedItems(ctx)
		if cerr != nil {
			fmt.Printf("database: ok (count unavailable: %v)\n", cerr)
		} else {
			fmt.Printf("database: ok (~%d items)\n", count)
		}
	}

	for _, result := range checkProviders(ctx, cfg, logger) {
		if result.err != nil {
			fmt.Printf("%s: unreachable (%v)\n", result.name, result.err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: ok\n", result.name)
	}

	return exitCode
}

type providerCheck struct {
	name string
	err  error
}

// checkProviders runs the pre-flight reachability checks in parallel. This is
// the only concurrency in the system; the sync loop itself is sequential.
func checkProviders(ctx context.Context, cfg *config.Config, logger zerolog.Logger) []providerCheck {
	targets := map[string]string{
		"allocine":    cfg.AlloCineBaseURL,
		"imdb":        cfg.IMDbBaseURL,
		"tmdb":        cfg.TMDBBaseURL,
		"whatson_api": cfg.APIBaseURL,
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu      sync.Mutex
		results []providerCheck
		wg      sync.WaitGroup
	)

	for name, baseURL := range targets {
		wg.Add(1)
		go func(name, baseURL string) {
			defer wg.Done()
			err := headCheck(ctx, client, baseURL, cfg.UserAgent)
			if err != nil {
				logger.Warn().Str("provider", name).Err(err).Msg("pre-flight check failed")
			}
			mu.Lock()
			results = append(results, providerCheck{name: name, err: err})
			mu.Unlock()
		}(name, baseURL)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].name < results[j].name
	})
	return results
}

func headCheck(ctx context.Context, client *http.Client, rawURL, userAgent string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A 403/405 still proves the host answers; only 5xx counts as down.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
