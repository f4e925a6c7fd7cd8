// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open time range [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow returns a window and rejects an end before the start.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if end.Before(start) {
		return TimeWindow{}, fmt.Errorf("window end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Duration returns the width of the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsEmpty reports whether the window has zero or negative width.
func (w TimeWindow) IsEmpty() bool {
	return !w.End.After(w.Start)
}

// Contains reports whether t falls inside [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// String formats the window for logs.
func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// Bucket is a clock-aligned window whose width equals the bucket width.
// Buckets are the unit of caching.
type Bucket = TimeWindow

// Equal reports whether both windows cover the same instants.
func (w TimeWindow) Equal(other TimeWindow) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}
