package breadcrumb

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStructuralInput means the batch itself is not a JSON array of objects.
// This is fatal for the batch; no partial output is produced from it.
var ErrStructuralInput = errors.New("input is not a JSON array of breadcrumb records")

// RequiredFields lists the upstream keys every record must carry.
var RequiredFields = []string{
	"EVENT_NO_TRIP", "EVENT_NO_STOP", "OPD_DATE", "VEHICLE_ID", "METERS",
	"ACT_TIME", "GPS_LONGITUDE", "GPS_LATITUDE", "GPS_SATELLITES", "GPS_HDOP",
}

// FieldError names a single field that is absent or of the wrong type.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// ParsedRecord is the outcome of parsing one batch element. A record with a
// non-empty Fields slice is malformed and will be rejected by the pipeline;
// parsing never silently defaults a missing or mistyped field.
type ParsedRecord struct {
	Raw    RawBreadcrumb
	Fields []FieldError
}

// Malformed reports whether the record failed the typed parse.
func (r ParsedRecord) Malformed() bool { return len(r.Fields) > 0 }

// ParseBatch decodes a JSON batch into typed records. A payload that is not
// an array of objects returns ErrStructuralInput; per-record field problems
// are recorded on the ParsedRecord instead of failing the batch.
func ParseBatch(data []byte) ([]ParsedRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuralInput, err)
	}

	records := make([]ParsedRecord, 0, len(elems))
	for i, elem := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(elem, &obj); err != nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrStructuralInput, i)
		}
		records = append(records, parseRecord(obj))
	}
	return records, nil
}

func parseRecord(obj map[string]json.RawMessage) ParsedRecord {
	var rec ParsedRecord

	intField := func(name string, dst *int) {
		raw, ok := obj[name]
		if !ok {
			rec.Fields = append(rec.Fields, FieldError{name, "missing"})
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			rec.Fields = append(rec.Fields, FieldError{name, "not an integer"})
		}
	}
	floatField := func(name string, dst *float64) {
		raw, ok := obj[name]
		if !ok {
			rec.Fields = append(rec.Fields, FieldError{name, "missing"})
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			rec.Fields = append(rec.Fields, FieldError{name, "not a number"})
		}
	}
	stringField := func(name string, dst *string) {
		raw, ok := obj[name]
		if !ok {
			rec.Fields = append(rec.Fields, FieldError{name, "missing"})
			return
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			rec.Fields = append(rec.Fields, FieldError{name, "not a string"})
		}
	}

	intField("EVENT_NO_TRIP", &rec.Raw.EventNoTrip)
	intField("EVENT_NO_STOP", &rec.Raw.EventNoStop)
	stringField("OPD_DATE", &rec.Raw.OpdDate)
	intField("VEHICLE_ID", &rec.Raw.VehicleID)
	floatField("METERS", &rec.Raw.Meters)
	floatField("ACT_TIME", &rec.Raw.ActTime)
	floatField("GPS_LONGITUDE", &rec.Raw.GPSLongitude)
	floatField("GPS_LATITUDE", &rec.Raw.GPSLatitude)
	intField("GPS_SATELLITES", &rec.Raw.GPSSatellites)
	floatField("GPS_HDOP", &rec.Raw.GPSHDOP)

	return rec
}
