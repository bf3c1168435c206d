package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

const (
	operationName         = "TitleEpisodesSubPagePagination"
	persistedQueryHash    = "e5b755e1254e3bc3a36b34aff729b1d107a63263dec628a8f59935c9e778c70e"
	persistedQueryVersion = 1
	sortByField           = "EPISODE_THEN_RELEASE"
	sortOrder             = "ASC"
)

// Page is one cursor-pagination response, never persisted directly.
type Page struct {
	Episodes    []item.Episode
	EndCursor   string
	HasNextPage bool
}

// Fetcher retrieves per-episode pages from the IMDb GraphQL persisted-query
// endpoint. Cursors are opaque; they are forwarded verbatim, never parsed.
type Fetcher struct {
	client     *httpx.Client
	graphqlURL string
	imdbBase   string
	pageSize   int
	logger     zerolog.Logger
}

func NewFetcher(client *httpx.Client, graphqlURL, imdbBase string, pageSize int, logger zerolog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = 250
	}
	return &Fetcher{
		client:     client,
		graphqlURL: graphqlURL,
		imdbBase:   imdbBase,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// FetchPage requests one page after the given cursor. An empty cursor fetches
// from the start.
func (f *Fetcher) FetchPage(ctx context.Context, imdbID, after string) (*Page, error) {
	requestURL, err := f.buildURL(imdbID, after)
	if err != nil {
		return nil, err
	}

	var decoded pageResponse
	err = f.client.GetJSON(ctx, "imdb_episodes", requestURL, jsonHeader(), func(body []byte) error {
		return json.Unmarshal(body, &decoded)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch episode page for %s: %w", imdbID, err)
	}

	connection := decoded.Data.Title.Episodes.Episodes
	now := globaltime.UTC()

	page := &Page{
		Episodes:    make([]item.Episode, 0, len(connection.Edges)),
		EndCursor:   connection.PageInfo.EndCursor,
		HasNextPage: connection.PageInfo.HasNextPage,
	}
	for _, edge := range connection.Edges {
		page.Episodes = append(page.Episodes, f.normalizeNode(edge.Node, now))
	}
	return page, nil
}

// FetchRemaining walks the cursor chain starting after the initial scrape's
// end cursor. The loop continues while the provider reports more pages and
// supplies a non-empty cursor; a page with zero entries is treated as
// end-of-data, not an error.
func (f *Fetcher) FetchRemaining(ctx context.Context, imdbID, after string) ([]item.Episode, error) {
	var all []item.Episode

	cursor := after
	for {
		page, err := f.FetchPage(ctx, imdbID, cursor)
		if err != nil {
			return nil, err
		}
		if len(page.Episodes) == 0 {
			break
		}
		all = append(all, page.Episodes...)

		if !page.HasNextPage || strings.TrimSpace(page.EndCursor) == "" {
			break
		}
		cursor = page.EndCursor

		f.logger.Debug().
			Str("imdb_id", imdbID).
			Int("fetched", len(all)).
			Msg("following episode pagination cursor")
	}

	return all, nil
}

func (f *Fetcher) buildURL(imdbID, after string) (string, error) {
	variables := map[string]any{
		"after": nil,
		"const": imdbID,
		"first": f.pageSize,
		"sort": map[string]string{
			"by":    sortByField,
			"order": sortOrder,
		},
	}
	if strings.TrimSpace(after) != "" {
		variables["after"] = after
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("marshal pagination variables: %w", err)
	}
	extensionsJSON, err := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{
			"sha256Hash": persistedQueryHash,
			"version":    persistedQueryVersion,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal persisted query extensions: %w", err)
	}

	query := url.Values{}
	query.Set("operationName", operationName)
	query.Set("variables", string(variablesJSON))
	query.Set("extensions", string(extensionsJSON))

	return strings.TrimRight(f.graphqlURL, "/") + "/?" + query.Encode(), nil
}

func (f *Fetcher) normalizeNode(node episodeNode, now time.Time) item.Episode {
	episode := item.Episode{
		ID:    node.ID,
		Title: strings.TrimSpace(node.TitleText.Text),
		URL:   strings.TrimRight(f.imdbBase, "/") + "/title/" + node.ID + "/",
	}

	if node.Plot != nil {
		episode.Description = strings.TrimSpace(node.Plot.PlotText.PlainText)
	}
	if node.Series != nil {
		episode.Season = parseOrdinal(node.Series.DisplayableEpisodeNumber.DisplayableSeason.Text)
		episode.Episode = parseOrdinal(node.Series.DisplayableEpisodeNumber.EpisodeNumber.Text)
	}
	episode.ReleaseDate = releaseDateOf(node.ReleaseDate)

	// Unreleased episodes never carry a rating, whatever the provider says.
	if episode.ReleaseDate != nil && !episode.ReleaseDate.After(now) && node.RatingsSummary != nil {
		episode.UsersRating = item.SanitizeRating(item.ProviderIMDb, node.RatingsSummary.AggregateRating)
		if episode.UsersRating != nil {
			episode.UsersRatingCount = node.RatingsSummary.VoteCount
		}
	}

	return episode
}

func parseOrdinal(text string) *int {
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

func releaseDateOf(date *releaseDateNode) *time.Time {
	if date == nil || date.Year == nil {
		return nil
	}
	month := 1
	if date.Month != nil {
		month = *date.Month
	}
	day := 1
	if date.Day != nil {
		day = *date.Day
	}
	at := time.Date(*date.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &at
}

func jsonHeader() map[string][]string {
	return map[string][]string{
		"Content-Type": {"application/json"},
	}
}

type pageResponse struct {
	Data struct {
		Title struct {
			Episodes struct {
				Episodes struct {
					Edges []struct {
						Node episodeNode `json:"node"`
					} `json:"edges"`
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
				} `json:"episodes"`
			} `json:"episodes"`
		} `json:"title"`
	} `json:"data"`
}

type releaseDateNode struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

type episodeNode struct {
	ID        string `json:"id"`
	TitleText struct {
		Text string `json:"text"`
	} `json:"titleText"`
	Plot *struct {
		PlotText struct {
			PlainText string `json:"plainText"`
		} `json:"plotText"`
	} `json:"plot"`
	ReleaseDate *releaseDateNode `json:"releaseDate"`
	Series      *struct {
		DisplayableEpisodeNumber struct {
			EpisodeNumber struct {
				Text string `json:"text"`
			} `json:"episodeNumber"`
			DisplayableSeason struct {
				Text string `json:"text"`
			} `json:"displayableSeason"`
		} `json:"displayableEpisodeNumber"`
	} `json:"series"`
	RatingsSummary *struct {
		AggregateRating *float64 `json:"aggregateRating"`
		VoteCount       *int     `json:"voteCount"`
	} `json:"ratingsSummary"`
}
