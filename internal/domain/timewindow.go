package domain

import "time"

// TimeWindow represents a half-open UTC interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow creates a TimeWindow, normalizing both instants to UTC.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, ErrInvalidTimeRange
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether two half-open windows share any instant.
// Touching endpoints ([10,11) vs [11,12)) do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Contains reports whether the instant falls inside [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Intersect returns the overlapping sub-window, if any.
func (w TimeWindow) Intersect(other TimeWindow) (TimeWindow, bool) {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := w.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return TimeWindow{}, false
	}
	return TimeWindow{Start: start, End: end}, true
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// DurationMinutes returns the window length in whole minutes and whether
// the window is aligned to a whole-minute boundary. Booking items require
// whole-minute windows.
func (w TimeWindow) DurationMinutes() (int, bool) {
	d := w.End.Sub(w.Start)
	if d%time.Minute != 0 {
		return 0, false
	}
	return int(d / time.Minute), true
}

// Hours returns the window length in fractional hours, used for pricing.
func (w TimeWindow) Hours() float64 {
	return w.End.Sub(w.Start).Hours()
}
