package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

const ratingEpsilon = 1e-9

// Result reports whether the stored and freshly fetched primary ratings
// match. Data carries the previously stored document when it was retrievable,
// so an equal comparison can reuse it without a rebuild.
type Result struct {
	IsEqual bool
	Data    *item.CanonicalItem
}

// Detector implements the change-detection short-circuit against the deployed
// read API. It is an optimization gate, not a correctness mechanism: any
// failure degrades to "assume unequal", which forces a full re-scrape.
type Detector struct {
	client  *httpx.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[*item.CanonicalItem]
	logger  zerolog.Logger
}

func New(client *httpx.Client, baseURL string, logger zerolog.Logger) *Detector {
	settings := gobreaker.Settings{
		Name:        "whatson-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 404 means the item was never synchronized, not that the
		// comparison service is unhealthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, httpx.ErrNotFound)
		},
	}

	return &Detector{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: gobreaker.NewCircuitBreaker[*item.CanonicalItem](settings),
		logger:  logger,
	}
}

// Compare fetches the stored document via the cross-reference id and checks
// its AlloCine users rating against the freshly probed value.
func (d *Detector) Compare(ctx context.Context, itemType item.Type, tmdbID int64, freshRating *float64) Result {
	previous, err := d.breaker.Execute(func() (*item.CanonicalItem, error) {
		return d.fetchPrevious(ctx, itemType, tmdbID)
	})
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			d.logger.Debug().
				Int64("tmdb_id", tmdbID).
				Msg("no previously synchronized document")
			return Result{IsEqual: false}
		}
		d.logger.Warn().
			Int64("tmdb_id", tmdbID).
			Err(err).
			Msg("comparison service unavailable, forcing full re-scrape")
		return Result{IsEqual: false}
	}

	stored := previous.PrimaryRating()
	if stored == nil || freshRating == nil {
		return Result{IsEqual: false, Data: previous}
	}

	return Result{
		IsEqual: math.Abs(*stored-*freshRating) < ratingEpsilon,
		Data:    previous,
	}
}

func (d *Detector) fetchPrevious(ctx context.Context, itemType item.Type, tmdbID int64) (*item.CanonicalItem, error) {
	kind := "movie"
	if itemType == item.TypeShow {
		kind = "tv"
	}
	requestURL := fmt.Sprintf("%s/%s/%d", d.baseURL, kind, tmdbID)

	var previous item.CanonicalItem
	err := d.client.GetJSON(ctx, "whatson_api", requestURL, nil, func(body []byte) error {
		return json.Unmarshal(body, &previous)
	})
	if err != nil {
		return nil, err
	}
	return &previous, nil
}
