package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/deriver"
	"github.com/pierrevano/whatson-api-sub001/internal/episodes"
	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
	"github.com/pierrevano/whatson-api-sub001/internal/tmdb"
)

// Snapshot is the outcome of the light primary-provider homepage probe. A
// blocked probe leaves the primary fields stale for this pass instead of
// aborting the row.
type Snapshot struct {
	UsersRating *float64
	Blocked     bool
}

// RatingExtractor pulls the users rating out of a primary-provider page body.
// Markup knowledge stays outside this module; a nil extractor leaves the
// rating unknown.
type RatingExtractor func(body []byte) *float64

// Builder produces the full normalized document for a row once the change
// detector has decided a re-scrape is warranted.
type Builder struct {
	client   *httpx.Client
	tmdb     *tmdb.Client
	episodes *episodes.Fetcher
	extract  RatingExtractor
	logger   zerolog.Logger
}

func New(client *httpx.Client, tmdbClient *tmdb.Client, episodeFetcher *episodes.Fetcher, extract RatingExtractor, logger zerolog.Logger) *Builder {
	return &Builder{
		client:   client,
		tmdb:     tmdbClient,
		episodes: episodeFetcher,
		extract:  extract,
		logger:   logger,
	}
}

// ProbePrimary fetches the AlloCine homepage once. 403 signals a provider
// block; 404 yields an empty snapshot. Other failures propagate after the
// client's retry policy is exhausted.
func (b *Builder) ProbePrimary(ctx context.Context, homepage string) (Snapshot, error) {
	resp, err := b.client.Get(ctx, "allocine", homepage, nil)
	if err != nil {
		switch {
		case errors.Is(err, httpx.ErrForbidden):
			b.logger.Warn().Str("url", homepage).Msg("primary provider blocked this pass")
			return Snapshot{Blocked: true}, nil
		case errors.Is(err, httpx.ErrNotFound):
			return Snapshot{}, nil
		default:
			return Snapshot{}, fmt.Errorf("probe primary homepage: %w", err)
		}
	}

	snapshot := Snapshot{}
	if b.extract != nil {
		snapshot.UsersRating = item.SanitizeRating(item.ProviderAlloCine, b.extract(resp.Body))
	}
	return snapshot, nil
}

// Input gathers everything a build needs for one row.
type Input struct {
	Derived  *deriver.Derived
	Snapshot Snapshot
	// Previous document, used to carry stale primary fields when blocked.
	Previous *item.CanonicalItem
}

// Build assembles a CanonicalItem. Partial provider failures degrade to
// missing fields rather than failing the row; the caller stamps updated_at.
func (b *Builder) Build(ctx context.Context, input Input) (*item.CanonicalItem, error) {
	if input.Derived == nil {
		return nil, fmt.Errorf("build: derived ids are required")
	}

	doc := &item.CanonicalItem{
		ItemType:   input.Derived.ItemType,
		IsActive:   input.Derived.IsActive,
		Popularity: input.Derived.Popularity,
	}

	for provider, ref := range input.Derived.Refs {
		b.setRef(doc, provider, ref)
	}

	b.applyPrimary(doc, input)
	b.applyTheMovieDB(ctx, doc, input.Derived)

	if input.Derived.ItemType == item.TypeShow {
		b.applyEpisodes(ctx, doc, input.Derived)
	}

	return doc, nil
}

func (b *Builder) applyPrimary(doc *item.CanonicalItem, input Input) {
	if doc.AlloCine == nil {
		return
	}
	if input.Snapshot.Blocked {
		// Keep whatever the last successful pass stored.
		if input.Previous != nil && input.Previous.AlloCine != nil {
			doc.AlloCine.UsersRating = input.Previous.AlloCine.UsersRating
			doc.AlloCine.UsersRatingCount = input.Previous.AlloCine.UsersRatingCount
		}
		return
	}
	doc.AlloCine.UsersRating = input.Snapshot.UsersRating
}

func (b *Builder) applyTheMovieDB(ctx context.Context, doc *item.CanonicalItem, derived *deriver.Derived) {
	details, err := b.tmdb.Details(ctx, derived.ItemType, derived.TheMovieDBID)
	if err != nil {
		b.logger.Warn().
			Int64("tmdb_id", derived.TheMovieDBID).
			Err(err).
			Msg("tmdb metadata unavailable, continuing without it")
		return
	}

	doc.Title = details.Title
	if details.Popularity != nil {
		doc.Popularity = details.Popularity
	}
	if doc.TheMovieDB != nil {
		doc.TheMovieDB.UsersRating = details.UsersRating
		doc.TheMovieDB.UsersRatingCount = details.UsersRatingCount
	}
}

func (b *Builder) applyEpisodes(ctx context.Context, doc *item.CanonicalItem, derived *deriver.Derived) {
	ref, ok := derived.Refs[item.ProviderIMDb]
	if !ok {
		return
	}
	imdbID := strings.TrimSpace(ref.ID)
	if imdbID == "" {
		return
	}

	initial, err := b.episodes.FetchPage(ctx, imdbID, "")
	if err != nil {
		b.logger.Warn().
			Str("imdb_id", imdbID).
			Err(err).
			Msg("initial episode fetch failed, document carries no episodes")
		return
	}

	if !initial.HasNextPage || strings.TrimSpace(initial.EndCursor) == "" {
		doc.Episodes = episodes.Merge(initial.Episodes, nil)
		return
	}

	rest, err := b.episodes.FetchRemaining(ctx, imdbID, initial.EndCursor)
	if err != nil {
		// Pagination is best-effort enrichment; fall back to the
		// initial page rather than discarding it.
		b.logger.Warn().
			Str("imdb_id", imdbID).
			Err(err).
			Msg("episode pagination failed, using initial page only")
		doc.Episodes = episodes.Merge(initial.Episodes, nil)
		return
	}

	doc.Episodes = episodes.Merge(initial.Episodes, rest)
}

func (b *Builder) setRef(doc *item.CanonicalItem, provider item.Provider, ref item.ProviderRef) {
	value := ref
	switch provider {
	case item.ProviderAlloCine:
		doc.AlloCine = &value
	case item.ProviderIMDb:
		doc.IMDb = &value
	case item.ProviderBetaseries:
		doc.Betaseries = &value
	case item.ProviderMetacritic:
		doc.Metacritic = &value
	case item.ProviderRottenTomatoes:
		doc.RottenTomatoes = &value
	case item.ProviderSensCritique:
		doc.SensCritique = &value
	case item.ProviderTrakt:
		doc.Trakt = &value
	case item.ProviderTheMovieDB:
		doc.TheMovieDB = &value
	}
}
