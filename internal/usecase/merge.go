package usecase

import (
	"sort"

	"FuturesHist/internal/domain/models"
)

// Merge concatenates pages, stable-sorts by timestamp and keeps the first
// record of each timestamp. Merge(Merge(p)) == Merge(p).
func Merge(pages ...models.Page) []models.Record {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	if total == 0 {
		return []models.Record{}
	}

	all := make([]models.Record, 0, total)
	for _, p := range pages {
		all = append(all, p...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	out := make([]models.Record, 0, len(all))
	for i, r := range all {
		if i > 0 && r.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, r)
	}
	return out
}
