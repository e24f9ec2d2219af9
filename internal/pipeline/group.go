package pipeline

import (
	"sort"

	"breadcrumb-etl/internal/breadcrumb"
)

// TripGroup holds one trip's breadcrumbs in chronological order.
type TripGroup struct {
	TripID  int
	Records []breadcrumb.ValidatedBreadcrumb
}

// GroupByTrip partitions validated records by EVENT_NO_TRIP and orders each
// partition by timestamp. The sort is stable: records with equal timestamps
// keep their arrival order. Groups come back sorted by trip id so downstream
// output is deterministic. A group of one record is retained; it simply
// cannot have a speed derived from deltas.
func GroupByTrip(recs []breadcrumb.ValidatedBreadcrumb) []TripGroup {
	byTrip := make(map[int][]breadcrumb.ValidatedBreadcrumb)
	for _, rec := range recs {
		byTrip[rec.EventNoTrip] = append(byTrip[rec.EventNoTrip], rec)
	}

	groups := make([]TripGroup, 0, len(byTrip))
	for tripID, members := range byTrip {
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].Timestamp.Before(members[b].Timestamp)
		})
		groups = append(groups, TripGroup{TripID: tripID, Records: members})
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].TripID < groups[b].TripID })
	return groups
}
