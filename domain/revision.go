package domain

import "time"

// RevisionPrecision is the granularity of version timestamps. It matches the microsecond
// resolution of Postgres timestamptz so stored values round-trip unchanged.
const RevisionPrecision = time.Microsecond

// NextRevision returns now truncated to RevisionPrecision, or the next possible revision after
// last when the clock has not moved past it.
func NextRevision(last, now time.Time) time.Time {
	rev := now.UTC().Truncate(RevisionPrecision)
	if rev.After(last) {
		return rev
	}
	return last.UTC().Add(RevisionPrecision)
}
