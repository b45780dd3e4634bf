// Package schedule holds the time arithmetic shared by slot calculation and
// booking conflict checks.
package schedule

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds the interval covering duration from start.
func NewInterval(start time.Time, duration time.Duration) Interval {
	return Interval{Start: start, End: start.Add(duration)}
}

// Overlaps reports whether two intervals share any instant. Intervals that
// only touch at an endpoint do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// OverlapsAny reports whether i overlaps at least one of the given intervals.
func (i Interval) OverlapsAny(others []Interval) bool {
	for _, o := range others {
		if i.Overlaps(o) {
			return true
		}
	}
	return false
}

// DayBounds returns [midnight, next midnight) of day in loc.
func DayBounds(day time.Time, loc *time.Location) Interval {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}
