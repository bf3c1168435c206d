package item

import (
	"fmt"
	"strings"
	"time"
)

// Type distinguishes the two catalog item kinds.
type Type string

const (
	TypeMovie Type = "movie"
	TypeShow  Type = "tvshow"
)

func ParseType(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie":
		return TypeMovie, nil
	case "tvshow", "show", "tv":
		return TypeShow, nil
	default:
		return "", fmt.Errorf("unknown item type %q", raw)
	}
}

// Provider names the rating sources a canonical item aggregates.
type Provider string

const (
	ProviderAlloCine       Provider = "allocine"
	ProviderIMDb           Provider = "imdb"
	ProviderBetaseries     Provider = "betaseries"
	ProviderMetacritic     Provider = "metacritic"
	ProviderRottenTomatoes Provider = "rotten_tomatoes"
	ProviderSensCritique   Provider = "senscritique"
	ProviderTrakt          Provider = "trakt"
	ProviderTheMovieDB     Provider = "themoviedb"
)

// ratingRanges holds each provider's valid users-rating interval, inclusive.
var ratingRanges = map[Provider][2]float64{
	ProviderAlloCine:       {0, 5},
	ProviderIMDb:           {0, 10},
	ProviderBetaseries:     {0, 10},
	ProviderMetacritic:     {0, 100},
	ProviderRottenTomatoes: {0, 100},
	ProviderSensCritique:   {0, 10},
	ProviderTrakt:          {0, 100},
	ProviderTheMovieDB:     {0, 10},
}

// ValidRating reports whether value lies within the provider's rating range.
func ValidRating(p Provider, value float64) bool {
	r, ok := ratingRanges[p]
	if !ok {
		return false
	}
	return value >= r[0] && value <= r[1]
}

// SanitizeRating returns the value untouched when in range, nil otherwise.
func SanitizeRating(p Provider, value *float64) *float64 {
	if value == nil {
		return nil
	}
	if !ValidRating(p, *value) {
		return nil
	}
	return value
}

// ProviderRef is one provider's sub-object on a canonical item.
type ProviderRef struct {
	ID               string   `json:"id"`
	Homepage         string   `json:"homepage"`
	UsersRating      *float64 `json:"users_rating"`
	UsersRatingCount *int     `json:"users_rating_count,omitempty"`
}

// Episode is one normalized per-episode entry of a show.
type Episode struct {
	ID               string     `json:"id"`
	Season           *int       `json:"season"`
	Episode          *int       `json:"episode"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	URL              string     `json:"url"`
	ReleaseDate      *time.Time `json:"release_date"`
	UsersRating      *float64   `json:"users_rating"`
	UsersRatingCount *int       `json:"users_rating_count"`
}

// CanonicalItem is the persisted document, one per title. Identity is derived
// from the AlloCine homepage URL and never recomputed from mutable fields.
type CanonicalItem struct {
	ItemType   Type       `json:"item_type"`
	Title      string     `json:"title,omitempty"`
	IsActive   bool       `json:"is_active"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Popularity *float64   `json:"popularity,omitempty"`

	AlloCine       *ProviderRef `json:"allocine,omitempty"`
	IMDb           *ProviderRef `json:"imdb,omitempty"`
	Betaseries     *ProviderRef `json:"betaseries,omitempty"`
	Metacritic     *ProviderRef `json:"metacritic,omitempty"`
	RottenTomatoes *ProviderRef `json:"rotten_tomatoes,omitempty"`
	SensCritique   *ProviderRef `json:"senscritique,omitempty"`
	Trakt          *ProviderRef `json:"trakt,omitempty"`
	TheMovieDB     *ProviderRef `json:"themoviedb,omitempty"`

	Episodes []Episode `json:"episodes,omitempty"`
}

// ProviderRefs returns the non-nil provider sub-objects keyed by provider.
func (it *CanonicalItem) ProviderRefs() map[Provider]*ProviderRef {
	if it == nil {
		return nil
	}
	refs := map[Provider]*ProviderRef{
		ProviderAlloCine:       it.AlloCine,
		ProviderIMDb:           it.IMDb,
		ProviderBetaseries:     it.Betaseries,
		ProviderMetacritic:     it.Metacritic,
		ProviderRottenTomatoes: it.RottenTomatoes,
		ProviderSensCritique:   it.SensCritique,
		ProviderTrakt:          it.Trakt,
		ProviderTheMovieDB:     it.TheMovieDB,
	}
	for p, ref := range refs {
		if ref == nil {
			delete(refs, p)
		}
	}
	return refs
}

// AllRatingsNull reports whether no provider carries a users rating. Rows in
// this state are written anyway but recorded to the side error log.
func (it *CanonicalItem) AllRatingsNull() bool {
	if it == nil {
		return true
	}
	for _, ref := range it.ProviderRefs() {
		if ref.UsersRating != nil {
			return false
		}
	}
	return true
}

// PrimaryRating returns the AlloCine users rating when present.
func (it *CanonicalItem) PrimaryRating() *float64 {
	if it == nil || it.AlloCine == nil {
		return nil
	}
	return it.AlloCine.UsersRating
}
