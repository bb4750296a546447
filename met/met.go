// Package met handles mission elapsed time: floating-point seconds since the
// mission epoch, and the day-of-year date strings used by load products and
// telemetry (e.g. "2024:123:01:02:03.456").
package met

import (
	"fmt"
	"math"
	"time"
)

// Epoch is the zero point of mission elapsed time.
var Epoch = time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)

// DateFormat is the day-of-year timestamp layout used throughout the
// command and telemetry products. Millisecond precision.
const DateFormat = "2006:002:15:04:05.000"

// BoundaryPad is the outward padding, in seconds, applied to interval
// boundaries that round-trip through the date representation. Dates carry
// millisecond precision, so a stop time can land just past its date form and
// fall outside an interpolation range. One constant, always in seconds; the
// fraction-of-a-day variant that appeared in some historical products is not
// used.
const BoundaryPad = 0.01

// FarFuture is the placeholder stop time for a still-open state.
var FarFuture = MustSecs("2099:365:00:00:00.000")

// Time converts mission elapsed seconds to a UTC time.Time.
func Time(secs float64) time.Time {
	return Epoch.Add(time.Duration(math.Round(secs * 1e9)))
}

// FromTime converts a time.Time to mission elapsed seconds.
func FromTime(t time.Time) float64 {
	return t.Sub(Epoch).Seconds()
}

// Date renders mission elapsed seconds as a day-of-year date string.
func Date(secs float64) string {
	return Time(secs).UTC().Format(DateFormat)
}

// Secs parses a day-of-year date string into mission elapsed seconds.
// Fractional seconds beyond milliseconds are accepted and truncated by the
// layout.
func Secs(date string) (float64, error) {
	t, err := time.ParseInLocation(DateFormat, date, time.UTC)
	if err != nil {
		// Tolerate dates without fractional seconds.
		t, err = time.ParseInLocation("2006:002:15:04:05", date, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("met: parse date %q: %w", date, err)
		}
	}
	return FromTime(t), nil
}

// MustSecs is Secs for trusted literals; it panics on malformed input.
func MustSecs(date string) float64 {
	secs, err := Secs(date)
	if err != nil {
		panic(err)
	}
	return secs
}

// Clock provides the current mission elapsed time. The pipeline takes a Clock
// rather than reading the wall clock directly so runs can be anchored at a
// fixed reference time for regression testing.
type Clock interface {
	Now() float64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current mission elapsed time.
func (SystemClock) Now() float64 { return FromTime(time.Now().UTC()) }

// FixedClock always reports the same mission elapsed time.
type FixedClock float64

// Now returns the fixed mission elapsed time.
func (c FixedClock) Now() float64 { return float64(c) }
