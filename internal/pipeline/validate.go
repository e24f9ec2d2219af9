package pipeline

import (
	"breadcrumb-etl/internal/breadcrumb"
	"breadcrumb-etl/internal/fleet"
)

// Check identifies one per-record assertion.
type Check string

const (
	CheckRequiredFields     Check = "required_fields"
	CheckKnownVehicle       Check = "known_vehicle"
	CheckMetersNonNegative  Check = "meters_non_negative"
	CheckLongitudeRange     Check = "longitude_range"
	CheckLatitudeRange      Check = "latitude_range"
	CheckFixQuality         Check = "fix_quality"
	CheckTripIDPresent      Check = "trip_id_present"
	CheckStopIDPresent      Check = "stop_id_present"
	CheckDatePattern        Check = "date_pattern"
	CheckActTimeRange       Check = "act_time_range"
	CheckDuplicateTimestamp Check = "duplicate_timestamp"
	CheckTimestampRoundTrip Check = "timestamp_round_trip"
)

// GPS bounds for the service area, and the ACT_TIME cap: the current day plus
// one full next day, so a record can never drift more than one day forward.
const (
	minLongitude  = -124.0
	maxLongitude  = -122.0
	minLatitude   = 45.0
	maxLatitude   = 46.0
	maxHDOP       = 20.0
	minSatellites = 2
	maxActTime    = 172799.0
)

// Validator applies the per-record assertions against an injected fleet
// roster.
type Validator struct {
	roster fleet.Roster
}

func NewValidator(roster fleet.Roster) *Validator {
	return &Validator{roster: roster}
}

// Validate evaluates every assertion and returns the failed checks in
// evaluation order. All checks run even after one fails; the first entry is
// the record's rejection reason. An empty result means the record is valid.
func (v *Validator) Validate(rec breadcrumb.RawBreadcrumb) []Check {
	var failed []Check

	if !v.roster.IsKnownVehicle(rec.VehicleID) {
		failed = append(failed, CheckKnownVehicle)
	}
	if rec.Meters < 0 {
		failed = append(failed, CheckMetersNonNegative)
	}
	if rec.GPSLongitude > maxLongitude || rec.GPSLongitude < minLongitude {
		failed = append(failed, CheckLongitudeRange)
	}
	if rec.GPSLatitude > maxLatitude || rec.GPSLatitude < minLatitude {
		failed = append(failed, CheckLatitudeRange)
	}
	if rec.GPSHDOP > maxHDOP && rec.GPSSatellites < minSatellites {
		failed = append(failed, CheckFixQuality)
	}
	if rec.EventNoTrip == 0 {
		failed = append(failed, CheckTripIDPresent)
	}
	if rec.EventNoStop == 0 {
		failed = append(failed, CheckStopIDPresent)
	}
	if !datePattern.MatchString(rec.OpdDate) {
		failed = append(failed, CheckDatePattern)
	}
	if rec.ActTime < 0 || rec.ActTime > maxActTime {
		failed = append(failed, CheckActTimeRange)
	}

	return failed
}
