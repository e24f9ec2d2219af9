package pipeline

import (
	"sort"

	"breadcrumb-etl/internal/breadcrumb"
)

// dedupeByVehicle drops records that share a vehicle and an absolute
// timestamp with an earlier record, keeping the first arrival. Records are
// compared per vehicle in time order, so the scan is linear per vehicle
// rather than a pairwise sweep over the whole batch.
//
// The returned slice preserves the original arrival order of the survivors;
// dropped carries the input indexes of the rejected records.
func dedupeByVehicle(recs []breadcrumb.ValidatedBreadcrumb) (kept []breadcrumb.ValidatedBreadcrumb, dropped []int) {
	byVehicle := make(map[int][]int)
	for i, rec := range recs {
		byVehicle[rec.VehicleID] = append(byVehicle[rec.VehicleID], i)
	}

	drop := make(map[int]bool)
	for _, idxs := range byVehicle {
		// Stable by timestamp: equal timestamps keep arrival order, so the
		// first occurrence always survives.
		sort.SliceStable(idxs, func(a, b int) bool {
			return recs[idxs[a]].Timestamp.Before(recs[idxs[b]].Timestamp)
		})
		for i := 1; i < len(idxs); i++ {
			if recs[idxs[i]].Timestamp.Equal(recs[idxs[i-1]].Timestamp) {
				drop[idxs[i]] = true
				// Compare the next record against the kept one, not the
				// dropped duplicate, so a run of duplicates collapses to one.
				idxs[i] = idxs[i-1]
			}
		}
	}

	kept = make([]breadcrumb.ValidatedBreadcrumb, 0, len(recs)-len(drop))
	for i, rec := range recs {
		if drop[i] {
			dropped = append(dropped, i)
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}
