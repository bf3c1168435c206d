package episodes

import (
	"math"
	"sort"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

// Merge unions the initial scrape's episodes with paginated ones, keyed by
// stable episode id with the first occurrence winning, then sorts the result.
func Merge(initial, paginated []item.Episode) []item.Episode {
	merged := make([]item.Episode, 0, len(initial)+len(paginated))
	seen := make(map[string]struct{}, len(initial)+len(paginated))

	for _, episode := range initial {
		if _, ok := seen[episode.ID]; ok {
			continue
		}
		seen[episode.ID] = struct{}{}
		merged = append(merged, episode)
	}
	for _, episode := range paginated {
		if _, ok := seen[episode.ID]; ok {
			continue
		}
		seen[episode.ID] = struct{}{}
		merged = append(merged, episode)
	}

	Sort(merged)
	return merged
}

// Sort orders episodes by (season, episode) ascending; entries with a missing
// season or episode number sort last. The order is deterministic regardless
// of page arrival order.
func Sort(eps []item.Episode) {
	sort.SliceStable(eps, func(i, j int) bool {
		if a, b := ordinalValue(eps[i].Season), ordinalValue(eps[j].Season); a != b {
			return a < b
		}
		return ordinalValue(eps[i].Episode) < ordinalValue(eps[j].Episode)
	})
}

func ordinalValue(v *int) int {
	if v == nil {
		return math.MaxInt
	}
	return *v
}
