package deriver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pierrevano/whatson-api-sub001/internal/catalog"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

// ValidationError marks malformed or missing identifiers in the input
// dataset. It is fatal for the whole run, not retryable.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Templates carries the per-provider base URLs used to build homepages.
type Templates struct {
	AlloCineBase       string
	IMDbBase           string
	BetaseriesBase     string
	MetacriticBase     string
	RottenTomatoesBase string
	SensCritiqueBase   string
	TraktBase          string
	TMDBHomeBase       string
}

// DefaultTMDBHomeBase is the public site, distinct from the TMDB API host.
const DefaultTMDBHomeBase = "https://www.themoviedb.org"

// Derived is the structured output for one catalog row: the primary numeric
// id, the canonical homepage, and one {id, homepage} pair per provider.
type Derived struct {
	ItemType     item.Type
	AlloCineID   int64
	Homepage     string
	TheMovieDBID int64
	IsActive     bool
	Popularity   *float64
	Refs         map[item.Provider]item.ProviderRef
}

// AlloCine title pages end in cfilm=<id>.html or cserie=<id>.html.
var allocineIDPattern = regexp.MustCompile(`=(\d+)\.html`)

// Derive maps one catalog row into per-provider identifiers and homepage
// URLs. Deterministic and side-effect free.
func Derive(row catalog.Row, tpl Templates, enabled map[item.Provider]bool) (*Derived, error) {
	itemType, err := item.ParseType(row.ItemType)
	if err != nil {
		return nil, &ValidationError{Field: "item_type", Value: row.ItemType, Reason: "must be movie or tvshow"}
	}

	fragment := strings.TrimSpace(row.URL)
	if fragment == "" {
		return nil, &ValidationError{Field: "url", Value: row.URL, Reason: "homepage fragment is required"}
	}

	match := allocineIDPattern.FindStringSubmatch(fragment)
	if match == nil {
		return nil, &ValidationError{Field: "url", Value: fragment, Reason: "no numeric AlloCine id in homepage fragment"}
	}
	allocineID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, &ValidationError{Field: "url", Value: fragment, Reason: "AlloCine id does not fit a 64-bit integer"}
	}

	tmdbID, verr := parseTheMovieDBID(row)
	if verr != nil {
		return nil, verr
	}

	homepage := joinURL(tpl.AlloCineBase, fragment)

	refs := map[item.Provider]item.ProviderRef{
		item.ProviderAlloCine: {
			ID:       strconv.FormatInt(allocineID, 10),
			Homepage: homepage,
		},
		item.ProviderTheMovieDB: {
			ID:       strconv.FormatInt(tmdbID, 10),
			Homepage: tmdbHomepage(tpl, itemType, tmdbID),
		},
	}

	addOptionalRef(refs, enabled, item.ProviderIMDb, row.IMDbID, func(id string) string {
		return joinURL(tpl.IMDbBase, "title/"+id+"/")
	})
	addOptionalRef(refs, enabled, item.ProviderBetaseries, row.BetaseriesID, func(id string) string {
		if itemType == item.TypeMovie {
			return joinURL(tpl.BetaseriesBase, "film/"+id)
		}
		return joinURL(tpl.BetaseriesBase, "serie/"+id)
	})
	addOptionalRef(refs, enabled, item.ProviderMetacritic, row.MetacriticID, func(id string) string {
		return joinURL(tpl.MetacriticBase, id)
	})
	addOptionalRef(refs, enabled, item.ProviderRottenTomatoes, row.RottenTomatoesID, func(id string) string {
		return joinURL(tpl.RottenTomatoesBase, id)
	})
	addOptionalRef(refs, enabled, item.ProviderSensCritique, row.SensCritiqueID, func(id string) string {
		return joinURL(tpl.SensCritiqueBase, id)
	})
	addOptionalRef(refs, enabled, item.ProviderTrakt, row.TraktID, func(id string) string {
		if itemType == item.TypeMovie {
			return joinURL(tpl.TraktBase, "movies/"+id)
		}
		return joinURL(tpl.TraktBase, "shows/"+id)
	})

	return &Derived{
		ItemType:     itemType,
		AlloCineID:   allocineID,
		Homepage:     homepage,
		TheMovieDBID: tmdbID,
		IsActive:     true,
		Popularity:   row.Popularity,
		Refs:         refs,
	}, nil
}

func parseTheMovieDBID(row catalog.Row) (int64, *ValidationError) {
	if row.TheMovieDBID == nil {
		return 0, &ValidationError{Field: "themoviedb_id", Value: "", Reason: "cross-reference id is required"}
	}
	raw := strings.TrimSpace(row.TheMovieDBID.String())
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "themoviedb_id", Value: raw, Reason: "cross-reference id must be a positive integer"}
	}
	return id, nil
}

func addOptionalRef(
	refs map[item.Provider]item.ProviderRef,
	enabled map[item.Provider]bool,
	provider item.Provider,
	id string,
	homepage func(id string) string,
) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return
	}
	if enabled != nil && !enabled[provider] {
		return
	}
	refs[provider] = item.ProviderRef{
		ID:       trimmed,
		Homepage: homepage(trimmed),
	}
}

func tmdbHomepage(tpl Templates, itemType item.Type, tmdbID int64) string {
	base := strings.TrimSpace(tpl.TMDBHomeBase)
	if base == "" {
		base = DefaultTMDBHomeBase
	}
	kind := "movie"
	if itemType == item.TypeShow {
		kind = "tv"
	}
	return joinURL(base, fmt.Sprintf("%s/%d", kind, tmdbID))
}

func joinURL(base, fragment string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(strings.TrimSpace(fragment), "/")
}
