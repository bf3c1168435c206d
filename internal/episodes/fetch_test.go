package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/httpx"
)

func testFetcher(t *testing.T, serverURL string) *Fetcher {
	t.Helper()
	client, err := httpx.New(httpx.Options{
		Timeout:           5 * time.Second,
		RetryCount:        0,
		RetryDelay:        time.Millisecond,
		RequestsPerSecond: 1000,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("cannot create client: %v", err)
	}
	return NewFetcher(client, serverURL, "https://www.imdb.com", 50, zerolog.Nop())
}

func afterCursor(t *testing.T, r *http.Request) any {
	t.Helper()
	var variables map[string]any
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables); err != nil {
		t.Errorf("cannot decode variables: %v", err)
		return nil
	}
	return variables["after"]
}

func pageBody(cursor string, hasNext bool, nodes ...string) string {
	edges := ""
	for i, node := range nodes {
		if i > 0 {
			edges += ","
		}
		edges += fmt.Sprintf(`{"node":%s}`, node)
	}
	return fmt.Sprintf(`{"data":{"title":{"episodes":{"episodes":{
		"edges":[%s],
		"pageInfo":{"hasNextPage":%t,"endCursor":%q}
	}}}}}`, edges, hasNext, cursor)
}

func TestFetchPage_NormalizesNodes(t *testing.T) {
	t.Parallel()

	node := `{
		"id":"tt0001",
		"titleText":{"text":" Pilot "},
		"plot":{"plotText":{"plainText":"An opening."}},
		"releaseDate":{"year":2000,"month":3,"day":14},
		"series":{"displayableEpisodeNumber":{
			"episodeNumber":{"text":"1"},
			"displayableSeason":{"text":"1"}
		}},
		"ratingsSummary":{"aggregateRating":8.2,"voteCount":1200}
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageBody("", false, node))
	}))
	defer srv.Close()

	page, err := testFetcher(t, srv.URL).FetchPage(context.Background(), "tt9000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(page.Episodes))
	}

	got := page.Episodes[0]
	if got.Title != "Pilot" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Season == nil || *got.Season != 1 || got.Episode == nil || *got.Episode != 1 {
		t.Fatalf("unexpected ordinals: %+v", got)
	}
	if got.URL != "https://www.imdb.com/title/tt0001/" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
	if got.ReleaseDate == nil || got.ReleaseDate.Year() != 2000 {
		t.Fatalf("unexpected release date: %v", got.ReleaseDate)
	}
	if got.UsersRating == nil || *got.UsersRating != 8.2 {
		t.Fatalf("expected the released episode to keep its rating")
	}
	if got.UsersRatingCount == nil || *got.UsersRatingCount != 1200 {
		t.Fatalf("expected a vote count alongside the rating")
	}
}

func TestFetchPage_FutureReleaseDropsRating(t *testing.T) {
	t.Parallel()

	node := `{
		"id":"tt0002",
		"titleText":{"text":"Finale"},
		"releaseDate":{"year":2999,"month":1,"day":1},
		"ratingsSummary":{"aggregateRating":9.9,"voteCount":3}
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageBody("", false, node))
	}))
	defer srv.Close()

	page, err := testFetcher(t, srv.URL).FetchPage(context.Background(), "tt9000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Episodes[0].UsersRating != nil {
		t.Fatalf("an unreleased episode must not carry a rating")
	}
	if page.Episodes[0].UsersRatingCount != nil {
		t.Fatalf("an unreleased episode must not carry a vote count")
	}
}

func TestFetchRemaining_FollowsOpaqueCursor(t *testing.T) {
	t.Parallel()

	const opaque = "WyIxIiwiMiJd=="

	var cursors []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after := afterCursor(t, r)
		cursors = append(cursors, after)
		if after == nil {
			fmt.Fprint(w, pageBody(opaque, true, `{"id":"tt0001"}`))
			return
		}
		fmt.Fprint(w, pageBody("", false, `{"id":"tt0002"}`))
	}))
	defer srv.Close()

	all, err := testFetcher(t, srv.URL).FetchRemaining(context.Background(), "tt9000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(all))
	}
	if len(cursors) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(cursors))
	}
	if cursors[0] != nil {
		t.Fatalf("first request must start from the beginning, got %v", cursors[0])
	}
	if cursors[1] != opaque {
		t.Fatalf("cursor must be forwarded verbatim, got %v", cursors[1])
	}
}

func TestFetchRemaining_EmptyPageEndsPagination(t *testing.T) {
	t.Parallel()

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			fmt.Fprint(w, pageBody("next", true, `{"id":"tt0001"}`))
			return
		}
		// Provider claims more pages but returns nothing.
		fmt.Fprint(w, pageBody("next2", true))
	}))
	defer srv.Close()

	all, err := testFetcher(t, srv.URL).FetchRemaining(context.Background(), "tt9000", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(all))
	}
	if hits != 2 {
		t.Fatalf("expected pagination to stop after the empty page, got %d requests", hits)
	}
}
