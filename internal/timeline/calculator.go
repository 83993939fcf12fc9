// Package timeline provides the pure calculations behind a shared play-head:
// the virtual duration of two tracks, conversion between absolute time and a
// normalized 0-100 position, click-to-time mapping for the scrub bar, and the
// display format used for durations.
package timeline

import (
	"fmt"
	"math"
)

const (
	// maxFormatSeconds bounds FormatTime so the integer conversion stays defined
	maxFormatSeconds = math.MaxInt64 / 2

	// PositionMin is the normalized position of the start of the timeline
	PositionMin = 0.0

	// PositionMax is the normalized position of the end of the timeline
	PositionMax = 100.0
)

// SharedDuration returns the virtual duration of the timeline, the longer of
// the two track durations. A missing or unloaded track counts as 0, and the
// result is never negative.
func SharedDuration(video, audio float64) float64 {
	return math.Max(sanitize(video), sanitize(audio))
}

// PositionFromTime maps a time to a normalized position in [0, 100].
// A zero shared duration maps every time to 0.
func PositionFromTime(t, sharedDuration float64) float64 {
	sharedDuration = sanitize(sharedDuration)
	if sharedDuration == 0 {
		return PositionMin
	}
	if math.IsInf(t, 1) {
		return PositionMax
	}
	return Clamp(sanitize(t)/sharedDuration*PositionMax, PositionMin, PositionMax)
}

// TimeFromClick maps a horizontal offset on the timeline to a time.
// Callers clamp clickOffsetPx to [0, timelineWidthPx] first; a degenerate
// timeline (zero or negative width) yields 0 instead of NaN or Inf.
func TimeFromClick(clickOffsetPx, timelineWidthPx, sharedDuration float64) float64 {
	if !(timelineWidthPx > 0) || math.IsInf(timelineWidthPx, 0) {
		return 0
	}
	t := clickOffsetPx / timelineWidthPx * sanitize(sharedDuration)
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	return t
}

// BarWidth returns how much of the timeline, in percent, a track of the given
// duration occupies. The longest track always spans the full width.
func BarWidth(duration, sharedDuration float64) float64 {
	return PositionFromTime(duration, sharedDuration)
}

// FormatTime renders seconds as zero-padded HH:MM:SS. Fractions of a second
// are floored away; negative and non-finite inputs render as 00:00:00, and
// absurdly large ones saturate.
func FormatTime(seconds float64) string {
	total := int64(math.Floor(math.Min(sanitize(seconds), maxFormatSeconds)))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize maps NaN, Inf and negative values to 0
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
