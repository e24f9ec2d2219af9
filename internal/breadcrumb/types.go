package breadcrumb

import "time"

// ServiceKey classifies the calendar date a trip ran on.
type ServiceKey string

const (
	ServiceWeekday  ServiceKey = "Weekday"
	ServiceSaturday ServiceKey = "Saturday"
	ServiceSunday   ServiceKey = "Sunday"
)

// ServiceKeyForDate maps a calendar date to its service classification.
func ServiceKeyForDate(d time.Time) ServiceKey {
	switch d.Weekday() {
	case time.Saturday:
		return ServiceSaturday
	case time.Sunday:
		return ServiceSunday
	default:
		return ServiceWeekday
	}
}

// Direction of travel for a trip. Not derivable from breadcrumb data; present
// because the target schema carries it.
type Direction string

const (
	DirectionOut  Direction = "Out"
	DirectionBack Direction = "Back"
)

// RawBreadcrumb is one telemetry sample exactly as the upstream API delivers
// it. METERS is a cumulative odometer for the trip; ACT_TIME is elapsed
// seconds since midnight of OPD_DATE and may exceed 86400 when the sample
// belongs to the next calendar day.
type RawBreadcrumb struct {
	EventNoTrip   int     `json:"EVENT_NO_TRIP"`
	EventNoStop   int     `json:"EVENT_NO_STOP"`
	OpdDate       string  `json:"OPD_DATE"`
	VehicleID     int     `json:"VEHICLE_ID"`
	Meters        float64 `json:"METERS"`
	ActTime       float64 `json:"ACT_TIME"`
	GPSLongitude  float64 `json:"GPS_LONGITUDE"`
	GPSLatitude   float64 `json:"GPS_LATITUDE"`
	GPSSatellites int     `json:"GPS_SATELLITES"`
	GPSHDOP       float64 `json:"GPS_HDOP"`
}

// ValidatedBreadcrumb is a raw record that passed every assertion, with its
// decoded absolute timestamp and derived speed. Owned by the pipeline until
// handed to the loader; never mutated afterwards.
type ValidatedBreadcrumb struct {
	RawBreadcrumb
	Timestamp time.Time
	Speed     float64
}

// TripRecord is one row of the Trip table. RouteID and Direction are not
// derivable from breadcrumb fields and stay nil.
type TripRecord struct {
	TripID     int
	RouteID    *int
	VehicleID  int
	ServiceKey ServiceKey
	Direction  *Direction
}

// BreadcrumbRow is one row of the BreadCrumb table. TripID references an
// emitted TripRecord.
type BreadcrumbRow struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Speed     float64
	TripID    int
}
