package core

import (
	"fmt"
	"strings"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// Comparison selects the threshold test applied sample-by-sample.
type Comparison int

const (
	Greater Comparison = iota
	GreaterEqual
	Less
	LessEqual
)

func (c Comparison) String() string {
	switch c {
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	case Less:
		return "<"
	case LessEqual:
		return "<="
	default:
		return fmt.Sprintf("Comparison(%d)", int(c))
	}
}

// ParseComparison accepts both symbolic (">=") and named ("greater_equal")
// forms, the latter being what limit configurations use.
func ParseComparison(s string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">", "greater":
		return Greater, nil
	case ">=", "greater_equal":
		return GreaterEqual, nil
	case "<", "less":
		return Less, nil
	case "<=", "less_equal":
		return LessEqual, nil
	default:
		return 0, fmt.Errorf("unknown comparison %q", s)
	}
}

// Exceeds reports whether v breaches the limit under this comparison.
func (c Comparison) Exceeds(v, limit float64) bool {
	switch c {
	case Greater:
		return v > limit
	case GreaterEqual:
		return v >= limit
	case Less:
		return v < limit
	case LessEqual:
		return v <= limit
	default:
		return false
	}
}

// Upper reports whether the comparison tests an upper limit; the run
// extremum is then the maximum, otherwise the minimum.
func (c Comparison) Upper() bool { return c == Greater || c == GreaterEqual }

// ScanViolations converts a predicted time series into discrete violation
// intervals. The raw series is tested with no smoothing or hysteresis: any
// excursion, however brief, is surfaced, and a single bad sample yields a
// violation whose start and stop coincide.
//
// A run is reported only if it overlaps the review window: its start is
// strictly after reviewStart, or it began earlier but extends past
// reviewStart. In the latter case the reported start is clipped to
// reviewStart for display. An empty series yields no violations, never an
// error.
func ScanViolations(times, temps []float64, limit float64, op Comparison, reviewStart float64) []model.Violation {
	kind := "lo"
	if op.Upper() {
		kind = "hi"
	}

	var viols []model.Violation
	n := len(temps)
	if len(times) < n {
		n = len(times)
	}

	i := 0
	for i < n {
		if !op.Exceeds(temps[i], limit) {
			i++
			continue
		}
		// Start of a run; find its half-open end.
		start := i
		for i < n && op.Exceeds(temps[i], limit) {
			i++
		}
		stop := i // one past the last bad sample

		startT := times[start]
		// End of the run for window-overlap purposes: the first compliant
		// sample after it, or the last sample when the run hits the end.
		endT := times[stop-1]
		if stop < n {
			endT = times[stop]
		}

		inWindow := startT > reviewStart || (startT < reviewStart && reviewStart < endT)
		if !inWindow {
			continue
		}

		extreme := temps[start]
		for j := start + 1; j < stop; j++ {
			if op.Upper() {
				if temps[j] > extreme {
					extreme = temps[j]
				}
			} else if temps[j] < extreme {
				extreme = temps[j]
			}
		}

		vStart := startT
		if startT <= reviewStart {
			vStart = reviewStart
		}
		viols = append(viols, model.Violation{
			Kind:        kind,
			TStart:      vStart,
			TStop:       times[stop-1],
			DateStart:   met.Date(vStart),
			DateStop:    met.Date(times[stop-1]),
			ExtremeTemp: extreme,
			Limit:       limit,
		})
	}

	return viols
}
