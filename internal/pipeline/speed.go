package pipeline

// DeriveSpeeds computes an instantaneous speed (meters/second) for every
// record of a chronologically ordered trip group from consecutive odometer
// and timestamp deltas. The first record has no predecessor and inherits the
// second record's speed so trips never start with an undefined value. A
// single-record group gets speed 0.
//
// Duplicate-timestamp suppression should have removed zero time deltas
// already; if one slips through the speed is forced to 0 instead of dividing
// by zero, and the group is flagged for inspection.
func DeriveSpeeds(g *TripGroup) (flagged bool) {
	recs := g.Records
	if len(recs) == 0 {
		return false
	}
	if len(recs) == 1 {
		recs[0].Speed = 0
		return false
	}

	for i := 1; i < len(recs); i++ {
		dt := recs[i].Timestamp.Sub(recs[i-1].Timestamp).Seconds()
		if dt == 0 {
			recs[i].Speed = 0
			flagged = true
			continue
		}
		recs[i].Speed = (recs[i].Meters - recs[i-1].Meters) / dt
	}
	recs[0].Speed = recs[1].Speed
	return flagged
}
