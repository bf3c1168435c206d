package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

// Client reads title metadata from the TMDB JSON API. This is the only
// provider fetched through a structured API rather than page markup.
type Client struct {
	httpClient *httpx.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

func New(httpClient *httpx.Client, baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Details is the subset of TMDB title metadata the builder consumes.
type Details struct {
	Title            string
	UsersRating      *float64
	UsersRatingCount *int
	Popularity       *float64
	ReleaseDate      *time.Time
}

type detailsResponse struct {
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	VoteAverage  *float64 `json:"vote_average"`
	VoteCount    *int     `json:"vote_count"`
	Popularity   *float64 `json:"popularity"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
}

// Details fetches one title. A nil rating is returned for titles released in
// the future or rated out of range.
func (c *Client) Details(ctx context.Context, itemType item.Type, tmdbID int64) (*Details, error) {
	kind := "movie"
	if itemType == item.TypeShow {
		kind = "tv"
	}

	requestURL := fmt.Sprintf("%s/%s/%d", c.baseURL, kind, tmdbID)
	if c.apiKey != "" {
		requestURL += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	var decoded detailsResponse
	err := c.httpClient.GetJSON(ctx, "tmdb", requestURL, nil, func(body []byte) error {
		return json.Unmarshal(body, &decoded)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch tmdb %s %d: %w", kind, tmdbID, err)
	}

	details := &Details{
		Title:      firstNonEmpty(decoded.Title, decoded.Name),
		Popularity: decoded.Popularity,
	}

	details.ReleaseDate = parseReleaseDate(firstNonEmpty(decoded.ReleaseDate, decoded.FirstAirDate))

	released := details.ReleaseDate != nil && !details.ReleaseDate.After(globaltime.UTC())
	if released {
		// TMDB reports 0 for unrated titles; treat it as absent.
		if decoded.VoteAverage != nil && *decoded.VoteAverage > 0 {
			details.UsersRating = item.SanitizeRating(item.ProviderTheMovieDB, decoded.VoteAverage)
		}
		if details.UsersRating != nil {
			details.UsersRatingCount = decoded.VoteCount
		}
	}

	return details, nil
}

func parseReleaseDate(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parsed, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
