package episodes

import (
	"testing"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

func ordinal(v int) *int {
	return &v
}

func ep(id string, season, episode *int) item.Episode {
	return item.Episode{ID: id, Season: season, Episode: episode}
}

func TestMerge_DeduplicatesByID(t *testing.T) {
	t.Parallel()

	initial := []item.Episode{
		ep("tt1", ordinal(1), ordinal(1)),
		ep("tt2", ordinal(1), ordinal(2)),
	}
	paginated := []item.Episode{
		ep("tt2", ordinal(1), ordinal(2)),
		ep("tt3", ordinal(1), ordinal(3)),
	}

	merged := Merge(initial, paginated)
	if len(merged) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(merged))
	}
	seen := map[string]int{}
	for _, e := range merged {
		seen[e.ID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("episode %s appears %d times", id, count)
		}
	}
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	rating := 8.5
	initial := []item.Episode{
		{ID: "tt1", Season: ordinal(1), Episode: ordinal(1), UsersRating: &rating},
	}
	paginated := []item.Episode{
		{ID: "tt1", Season: ordinal(1), Episode: ordinal(1)},
	}

	merged := Merge(initial, paginated)
	if len(merged) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(merged))
	}
	if merged[0].UsersRating == nil || *merged[0].UsersRating != 8.5 {
		t.Fatalf("initial occurrence must win the merge")
	}
}

func TestMerge_SortsRegardlessOfArrivalOrder(t *testing.T) {
	t.Parallel()

	initial := []item.Episode{
		ep("tt5", ordinal(2), ordinal(1)),
		ep("tt2", ordinal(1), ordinal(2)),
	}
	paginated := []item.Episode{
		ep("tt1", ordinal(1), ordinal(1)),
		ep("tt6", ordinal(2), ordinal(2)),
	}

	merged := Merge(initial, paginated)
	want := []string{"tt1", "tt2", "tt5", "tt6"}
	for i, id := range want {
		if merged[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, merged[i].ID)
		}
	}
}

func TestSort_MissingOrdinalsSortLast(t *testing.T) {
	t.Parallel()

	eps := []item.Episode{
		ep("special", nil, ordinal(1)),
		ep("s2e1", ordinal(2), ordinal(1)),
		ep("s1e5", ordinal(1), ordinal(5)),
		ep("s1eX", ordinal(1), nil),
	}

	Sort(eps)

	want := []string{"s1e5", "s1eX", "s2e1", "special"}
	for i, id := range want {
		if eps[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, eps[i].ID)
		}
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Merge(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty merge, got %d entries", len(got))
	}

	only := []item.Episode{ep("tt1", ordinal(1), ordinal(1))}
	if got := Merge(only, nil); len(got) != 1 || got[0].ID != "tt1" {
		t.Fatalf("unexpected merge of single-sided input: %+v", got)
	}
}
