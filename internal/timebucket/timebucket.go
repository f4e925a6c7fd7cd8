// Package timebucket splits time windows into clock-aligned buckets.
//
// A boundary is aligned when its minute-of-hour (in UTC) is a multiple of the
// bucket width and its seconds and sub-second parts are zero. Widths must divide
// an hour evenly so that every hour starts on a boundary.
package timebucket

import (
	"errors"
	"fmt"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// ErrInvalidWidth is returned for bucket widths that do not divide an hour.
var ErrInvalidWidth = errors.New("bucket width must be between 1 and 60 minutes and divide 60")

// DefaultWidthMinutes is the bucket width used when none is configured.
const DefaultWidthMinutes = 15

// Decomposition is a window split into its cacheable and uncacheable parts.
type Decomposition struct {
	Leading  *models.TimeWindow
	Trailing *models.TimeWindow
	Buckets  []models.Bucket
}

// HasBuckets reports whether any aligned bucket fits in the window.
func (d Decomposition) HasBuckets() bool {
	return len(d.Buckets) > 0
}

// Windows returns the pieces in chronological order.
func (d Decomposition) Windows() []models.TimeWindow {
	pieces := make([]models.TimeWindow, 0, len(d.Buckets)+2)
	if d.Leading != nil {
		pieces = append(pieces, *d.Leading)
	}
	pieces = append(pieces, d.Buckets...)
	if d.Trailing != nil {
		pieces = append(pieces, *d.Trailing)
	}
	return pieces
}

// ValidateWidth checks that a width in minutes can be used for alignment.
func ValidateWidth(widthMinutes int) error {
	if widthMinutes < 1 || widthMinutes > 60 || 60%widthMinutes != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWidth, widthMinutes)
	}
	return nil
}

// Width converts a width in minutes to a duration.
func Width(widthMinutes int) time.Duration {
	return time.Duration(widthMinutes) * time.Minute
}

// IsAligned reports whether t sits exactly on a bucket boundary.
func IsAligned(t time.Time, widthMinutes int) bool {
	return t.Truncate(Width(widthMinutes)).Equal(t)
}

// FloorBoundary rounds t down to the previous aligned boundary.
// An aligned t is returned unchanged.
func FloorBoundary(t time.Time, widthMinutes int) time.Time {
	return t.Truncate(Width(widthMinutes))
}

// CeilBoundary rounds t up to the next aligned boundary.
// An aligned t is returned unchanged. Hour and day rollover are handled by
// plain time arithmetic, so 23:50 rounds up to 00:00 of the next day.
func CeilBoundary(t time.Time, widthMinutes int) time.Time {
	floor := FloorBoundary(t, widthMinutes)
	if floor.Equal(t) {
		return floor
	}
	return floor.Add(Width(widthMinutes))
}

// AlignedBucketsWithin returns every aligned bucket fully contained in the
// window, oldest first. It returns nil when none fits.
func AlignedBucketsWithin(window models.TimeWindow, widthMinutes int) []models.Bucket {
	if window.IsEmpty() {
		return nil
	}

	width := Width(widthMinutes)
	first := CeilBoundary(window.Start, widthMinutes)
	last := FloorBoundary(window.End, widthMinutes)

	var buckets []models.Bucket
	for start := first; !start.Add(width).After(last); start = start.Add(width) {
		buckets = append(buckets, models.Bucket{Start: start, End: start.Add(width)})
	}
	return buckets
}

// Decompose splits a window into an optional leading margin, the aligned
// buckets and an optional trailing margin. Zero-width margins are nil. When no
// full bucket fits, the whole window is returned as the leading margin.
func Decompose(window models.TimeWindow, widthMinutes int) Decomposition {
	if window.IsEmpty() {
		return Decomposition{}
	}

	buckets := AlignedBucketsWithin(window, widthMinutes)
	if len(buckets) == 0 {
		whole := window
		return Decomposition{Leading: &whole}
	}

	d := Decomposition{Buckets: buckets}

	first := buckets[0].Start
	if window.Start.Before(first) {
		d.Leading = &models.TimeWindow{Start: window.Start, End: first}
	}

	last := buckets[len(buckets)-1].End
	if last.Before(window.End) {
		d.Trailing = &models.TimeWindow{Start: last, End: window.End}
	}

	return d
}
