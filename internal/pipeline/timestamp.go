package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// OPD_DATE looks like "05May2025:00:00:00"; the time suffix is constant and
// ignored. ACT_TIME is elapsed seconds since that date's midnight and may run
// into the following day (up to 47:59:59).
var datePattern = regexp.MustCompile(`^[0-9]{2}[A-Za-z]{3}[0-9]{4}:[0-9]{2}:[0-9]{2}:[0-9]{2}$`)

const opdDateLayout = "02Jan2006"

// ErrMalformedDate means OPD_DATE does not match the expected encoding.
var ErrMalformedDate = errors.New("malformed OPD_DATE")

// RoundTripError reports that recomposing seconds-of-day from the normalized
// hour/minute/second did not reproduce ACT_TIME. That signals a decoding
// defect (or a fractional ACT_TIME the encoding cannot carry), not ordinary
// bad input, so it is surfaced distinctly from validation failures.
type RoundTripError struct {
	ActTime    float64
	Recomposed int
}

func (e *RoundTripError) Error() string {
	return fmt.Sprintf("timestamp round-trip mismatch: ACT_TIME %v recomposed to %d", e.ActTime, e.Recomposed)
}

// ParseOpdDate returns the calendar date encoded in OPD_DATE, with the fixed
// time suffix stripped.
func ParseOpdDate(opdDate string) (time.Time, error) {
	if !datePattern.MatchString(opdDate) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, opdDate)
	}
	d, err := time.Parse(opdDateLayout, opdDate[:len(opdDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, opdDate)
	}
	return d, nil
}

// DecodeTimestamp combines OPD_DATE and ACT_TIME into an absolute timestamp.
// Hours of 24 or more mean the sample belongs to the next calendar day; the
// day is advanced by date arithmetic so month and year boundaries roll over
// correctly. Source values are naive local time; no timezone conversion.
func DecodeTimestamp(opdDate string, actTime float64) (time.Time, error) {
	base, err := ParseOpdDate(opdDate)
	if err != nil {
		return time.Time{}, err
	}

	total := int(actTime)
	secs := total % 60
	mins := (total / 60) % 60
	hours := total / 3600

	if recomposed := hours*3600 + mins*60 + secs; float64(recomposed) != actTime {
		return time.Time{}, &RoundTripError{ActTime: actTime, Recomposed: recomposed}
	}

	if hours >= 24 {
		base = base.AddDate(0, 0, 1)
		hours -= 24
	}
	return time.Date(base.Year(), base.Month(), base.Day(), hours, mins, secs, 0, base.Location()), nil
}
