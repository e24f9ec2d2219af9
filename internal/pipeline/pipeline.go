// Package pipeline turns raw breadcrumb batches into time-ordered, per-trip
// normalized rows for the Trip and BreadCrumb tables. All state lives in the
// batch-scoped run; the pipeline is re-entrant and keeps nothing between
// batches.
package pipeline

import (
	"errors"
	"strings"
	"sync"

	"breadcrumb-etl/internal/breadcrumb"
	"breadcrumb-etl/internal/fleet"
)

// Outcome records pass/fail for one input record. Failed lists every check
// the record failed in evaluation order; the first entry is the rejection
// reason.
type Outcome struct {
	Index  int
	Passed bool
	Failed []Check
	Detail string
}

// Report accounts for every record of a batch. Round-trip mismatches are
// counted separately from ordinary rejections because they signal a decoding
// defect rather than bad input.
type Report struct {
	Total               int
	Accepted            int
	Rejected            int
	Duplicates          int
	RoundTripMismatches int
	Outcomes            []Outcome
	FlaggedTrips        []int
}

// RejectedByCheck tallies rejections by their deciding check.
func (r *Report) RejectedByCheck() map[Check]int {
	counts := make(map[Check]int)
	for _, o := range r.Outcomes {
		if !o.Passed && len(o.Failed) > 0 {
			counts[o.Failed[0]]++
		}
	}
	return counts
}

// Result is the terminal state of a run: every breadcrumb row's trip id is
// present in Trips, and Trips must be persisted first.
type Result struct {
	Trips       []breadcrumb.TripRecord
	Breadcrumbs []breadcrumb.BreadcrumbRow
	Report      Report
}

// Pipeline composes validation, timestamp decoding, duplicate suppression,
// grouping, speed derivation and trip summarization over one batch.
type Pipeline struct {
	validator *Validator
}

func New(roster fleet.Roster) *Pipeline {
	return &Pipeline{validator: NewValidator(roster)}
}

// Run parses a JSON batch and processes it. A payload that is not an array
// of objects fails the whole batch; individual bad records are dropped,
// counted and reported.
func (p *Pipeline) Run(data []byte) (*Result, error) {
	records, err := breadcrumb.ParseBatch(data)
	if err != nil {
		return nil, err
	}
	return p.RunRecords(records)
}

// RunRecords processes already-parsed records as one batch.
func (p *Pipeline) RunRecords(records []breadcrumb.ParsedRecord) (*Result, error) {
	res := &Result{Report: Report{
		Total:    len(records),
		Outcomes: make([]Outcome, len(records)),
	}}

	// Validate and decode. decoded[i] came from input index origin[i].
	var decoded []breadcrumb.ValidatedBreadcrumb
	var origin []int
	for i, rec := range records {
		out := &res.Report.Outcomes[i]
		out.Index = i

		if rec.Malformed() {
			out.Failed = []Check{CheckRequiredFields}
			out.Detail = joinFieldErrors(rec.Fields)
			continue
		}
		if failed := p.validator.Validate(rec.Raw); len(failed) > 0 {
			out.Failed = failed
			continue
		}

		ts, err := DecodeTimestamp(rec.Raw.OpdDate, rec.Raw.ActTime)
		if err != nil {
			var rt *RoundTripError
			if errors.As(err, &rt) {
				res.Report.RoundTripMismatches++
				out.Failed = []Check{CheckTimestampRoundTrip}
			} else {
				out.Failed = []Check{CheckDatePattern}
			}
			out.Detail = err.Error()
			continue
		}

		out.Passed = true
		decoded = append(decoded, breadcrumb.ValidatedBreadcrumb{RawBreadcrumb: rec.Raw, Timestamp: ts})
		origin = append(origin, i)
	}

	// Inter-record assertion: one timestamp per vehicle.
	kept, dropped := dedupeByVehicle(decoded)
	for _, di := range dropped {
		out := &res.Report.Outcomes[origin[di]]
		out.Passed = false
		out.Failed = []Check{CheckDuplicateTimestamp}
		res.Report.Duplicates++
	}

	res.Report.Accepted = len(kept)
	res.Report.Rejected = res.Report.Total - res.Report.Accepted

	// Trip groups are independent, so speed derivation and summarization fan
	// out per group. Each goroutine writes only its own slot.
	groups := GroupByTrip(kept)
	trips := make([]breadcrumb.TripRecord, len(groups))
	flagged := make([]bool, len(groups))
	errs := make([]error, len(groups))

	var wg sync.WaitGroup
	for gi := range groups {
		wg.Add(1)
		go func(gi int) {
			defer wg.Done()
			flagged[gi] = DeriveSpeeds(&groups[gi])
			trips[gi], errs[gi] = SummarizeTrip(groups[gi])
		}(gi)
	}
	wg.Wait()

	for gi, err := range errs {
		if err != nil {
			// Validation guarantees a parseable date; reaching this is a
			// defect, not bad input.
			return nil, err
		}
		if flagged[gi] {
			res.Report.FlaggedTrips = append(res.Report.FlaggedTrips, groups[gi].TripID)
		}
	}

	// Emit trips before breadcrumbs so the loader can satisfy the foreign
	// key. Groups are already sorted by trip id.
	res.Trips = trips
	for _, g := range groups {
		for _, rec := range g.Records {
			res.Breadcrumbs = append(res.Breadcrumbs, breadcrumb.BreadcrumbRow{
				Timestamp: rec.Timestamp,
				Latitude:  rec.GPSLatitude,
				Longitude: rec.GPSLongitude,
				Speed:     rec.Speed,
				TripID:    g.TripID,
			})
		}
	}
	return res, nil
}

func joinFieldErrors(fields []breadcrumb.FieldError) string {
	parts := make([]string, len(fields))
	for i, fe := range fields {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}
