package pipeline

import "breadcrumb-etl/internal/breadcrumb"

// SummarizeTrip derives the Trip table row for an ordered group: the vehicle
// comes from the first chronological record, the service key from the
// record's calendar date. RouteID and Direction are left nil; they cannot be
// derived from breadcrumb data.
func SummarizeTrip(g TripGroup) (breadcrumb.TripRecord, error) {
	first := g.Records[0]
	date, err := ParseOpdDate(first.OpdDate)
	if err != nil {
		return breadcrumb.TripRecord{}, err
	}
	return breadcrumb.TripRecord{
		TripID:     g.TripID,
		VehicleID:  first.VehicleID,
		ServiceKey: breadcrumb.ServiceKeyForDate(date),
	}, nil
}
