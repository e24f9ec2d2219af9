package pipeline

import (
	"testing"
	"time"

	"breadcrumb-etl/internal/breadcrumb"
)

func crumbAt(tripID, vehicleID int, ts time.Time, meters float64) breadcrumb.ValidatedBreadcrumb {
	raw := validRaw()
	raw.EventNoTrip = tripID
	raw.VehicleID = vehicleID
	raw.Meters = meters
	return breadcrumb.ValidatedBreadcrumb{RawBreadcrumb: raw, Timestamp: ts}
}

func TestGroupByTripPartitionsAndOrders(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)

	recs := []breadcrumb.ValidatedBreadcrumb{
		crumbAt(200, 4041, base.Add(30*time.Second), 300),
		crumbAt(100, 4040, base.Add(20*time.Second), 150),
		crumbAt(200, 4041, base, 100),
		crumbAt(100, 4040, base, 50),
	}

	groups := GroupByTrip(recs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].TripID != 100 || groups[1].TripID != 200 {
		t.Fatalf("group order = %d,%d, want 100,200", groups[0].TripID, groups[1].TripID)
	}
	for _, g := range groups {
		for i := 1; i < len(g.Records); i++ {
			if g.Records[i].Timestamp.Before(g.Records[i-1].Timestamp) {
				t.Fatalf("trip %d not in time order", g.TripID)
			}
		}
	}
}

func TestGroupByTripStableOnTies(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)

	// Same timestamp: arrival order must be preserved.
	first := crumbAt(100, 4040, base, 1)
	second := crumbAt(100, 4041, base, 2)
	groups := GroupByTrip([]breadcrumb.ValidatedBreadcrumb{first, second})

	if len(groups) != 1 || len(groups[0].Records) != 2 {
		t.Fatalf("unexpected grouping: %+v", groups)
	}
	if groups[0].Records[0].Meters != 1 || groups[0].Records[1].Meters != 2 {
		t.Fatal("tie broke arrival order")
	}
}

func TestGroupByTripRetainsSingletons(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	groups := GroupByTrip([]breadcrumb.ValidatedBreadcrumb{crumbAt(100, 4040, base, 0)})
	if len(groups) != 1 || len(groups[0].Records) != 1 {
		t.Fatalf("singleton group not retained: %+v", groups)
	}
}

func TestDeriveSpeeds(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	g := TripGroup{TripID: 100, Records: []breadcrumb.ValidatedBreadcrumb{
		crumbAt(100, 4040, base, 100),
		crumbAt(100, 4040, base.Add(10*time.Second), 150),
		crumbAt(100, 4040, base.Add(20*time.Second), 220),
	}}

	if flagged := DeriveSpeeds(&g); flagged {
		t.Fatal("group unexpectedly flagged")
	}

	want := []float64{5.0, 5.0, 7.0}
	for i, w := range want {
		if g.Records[i].Speed != w {
			t.Errorf("speed[%d] = %v, want %v", i, g.Records[i].Speed, w)
		}
	}
}

func TestDeriveSpeedsSingleRecord(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	g := TripGroup{TripID: 100, Records: []breadcrumb.ValidatedBreadcrumb{
		crumbAt(100, 4040, base, 500),
	}}
	if flagged := DeriveSpeeds(&g); flagged {
		t.Fatal("group unexpectedly flagged")
	}
	if g.Records[0].Speed != 0 {
		t.Fatalf("speed = %v, want 0", g.Records[0].Speed)
	}
}

func TestDeriveSpeedsZeroTimeDelta(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	g := TripGroup{TripID: 100, Records: []breadcrumb.ValidatedBreadcrumb{
		crumbAt(100, 4040, base, 100),
		crumbAt(100, 4040, base, 150), // zero delta, should not occur post-dedup
		crumbAt(100, 4040, base.Add(10*time.Second), 250),
	}}

	flagged := DeriveSpeeds(&g)
	if !flagged {
		t.Fatal("expected group to be flagged")
	}
	if g.Records[1].Speed != 0 {
		t.Errorf("speed[1] = %v, want 0", g.Records[1].Speed)
	}
	if g.Records[2].Speed != 10 {
		t.Errorf("speed[2] = %v, want 10", g.Records[2].Speed)
	}
	if g.Records[0].Speed != 0 {
		t.Errorf("speed[0] = %v, want 0 (inherits second record)", g.Records[0].Speed)
	}
}

func TestSummarizeTrip(t *testing.T) {
	base := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)

	// Saturday date on the first record.
	g := TripGroup{TripID: 100, Records: []breadcrumb.ValidatedBreadcrumb{
		crumbAt(100, 4040, base, 0),
		crumbAt(100, 4041, base.Add(10*time.Second), 10),
	}}

	trip, err := SummarizeTrip(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.TripID != 100 {
		t.Errorf("TripID = %d, want 100", trip.TripID)
	}
	if trip.VehicleID != 4040 {
		t.Errorf("VehicleID = %d, want first record's 4040", trip.VehicleID)
	}
	if trip.ServiceKey != breadcrumb.ServiceSaturday {
		t.Errorf("ServiceKey = %s, want Saturday", trip.ServiceKey)
	}
	if trip.RouteID != nil || trip.Direction != nil {
		t.Error("RouteID/Direction must stay nil")
	}
}

func TestServiceKeyClassification(t *testing.T) {
	cases := []struct {
		date string
		want breadcrumb.ServiceKey
	}{
		{"06May2025:00:00:00", breadcrumb.ServiceWeekday}, // Tuesday
		{"03May2025:00:00:00", breadcrumb.ServiceSaturday},
		{"04May2025:00:00:00", breadcrumb.ServiceSunday},
		{"09May2025:00:00:00", breadcrumb.ServiceWeekday}, // Friday
	}
	for _, tc := range cases {
		d, err := ParseOpdDate(tc.date)
		if err != nil {
			t.Fatalf("%s: %v", tc.date, err)
		}
		if got := breadcrumb.ServiceKeyForDate(d); got != tc.want {
			t.Errorf("%s: service key = %s, want %s", tc.date, got, tc.want)
		}
	}
}
