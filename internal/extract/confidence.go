package extract

import "github.com/tangocommunity/crawler/internal/model"

// FilterByConfidence splits records into those at or above min and those below.
func FilterByConfidence[T model.Record](records []T, min float64) (kept, low []T) {
	for _, r := range records {
		if r.Score() < min {
			low = append(low, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, low
}
