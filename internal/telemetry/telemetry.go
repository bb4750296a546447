// Package telemetry provides access to archived spacecraft telemetry:
// fetching MSID sample sets, aligning them onto a common cadence, and the
// data-sufficiency rule the pipeline depends on.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/orbitalworks/thermcheck/met"
)

// ErrInsufficientTelemetry is returned when a fetch window yields fewer than
// MinSamples aligned records.
var ErrInsufficientTelemetry = errors.New("insufficient telemetry")

// MinSamples is the minimum number of aligned records a fetch must produce
// (20 minutes at the default cadence).
const MinSamples = 4

// DefaultCadence is the sample spacing in seconds for the 5-minute
// statistics product.
const DefaultCadence = 328.0

// Provider fetches time-aligned telemetry for a set of MSIDs. Retrying a
// failed fetch is the caller's decision; providers never retry internally.
type Provider interface {
	Fetch(ctx context.Context, msids []string, datestart, datestop string, cadence float64) (*MSIDSet, error)
}

// MSIDSet is a set of telemetry series aligned on a shared time grid.
type MSIDSet struct {
	Times  []float64
	Values map[string][]float64
}

// Series returns the samples for one MSID.
func (s *MSIDSet) Series(msid string) ([]float64, error) {
	v, ok := s.Values[msid]
	if !ok {
		return nil, fmt.Errorf("msid %q not in set", msid)
	}
	return v, nil
}

// MeanAround averages an MSID over samples within ±window seconds of t0.
// Used to derive the anchor state's held temperature.
func (s *MSIDSet) MeanAround(msid string, t0, window float64) (float64, error) {
	series, err := s.Series(msid)
	if err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for i, t := range s.Times {
		if t >= t0-window && t <= t0+window {
			sum += series[i]
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("no %s samples within %.0f s of %s", msid, window, met.Date(t0))
	}
	return sum / float64(n), nil
}

// rawSeries is one MSID's samples before alignment.
type rawSeries struct {
	times  []float64
	values []float64
}

// alignSets interpolates each raw series onto a shared grid spanning the
// overlap of all series, stepped by cadence, using nearest-sample lookup.
// Fewer than MinSamples aligned records is fatal: the caller cannot anchor a
// prediction on a window that thin.
func alignSets(raw map[string]rawSeries, cadence float64, datestart, datestop string) (*MSIDSet, error) {
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	var start, stop float64
	first := true
	for msid, rs := range raw {
		if len(rs.times) == 0 {
			return nil, fmt.Errorf("%w: no %s samples between %s and %s",
				ErrInsufficientTelemetry, msid, datestart, datestop)
		}
		if first {
			start, stop = rs.times[0], rs.times[len(rs.times)-1]
			first = false
			continue
		}
		if rs.times[0] > start {
			start = rs.times[0]
		}
		if last := rs.times[len(rs.times)-1]; last < stop {
			stop = last
		}
	}
	if first {
		return nil, fmt.Errorf("%w: no MSIDs requested", ErrInsufficientTelemetry)
	}

	var grid []float64
	for t := start; t <= stop+1; t += cadence {
		grid = append(grid, t)
	}
	if len(grid) < MinSamples {
		return nil, fmt.Errorf("%w: %d aligned samples between %s and %s (need %d)",
			ErrInsufficientTelemetry, len(grid), datestart, datestop, MinSamples)
	}

	out := &MSIDSet{Times: grid, Values: make(map[string][]float64, len(raw))}
	for msid, rs := range raw {
		vals := make([]float64, len(grid))
		j := 0
		for i, t := range grid {
			for j < len(rs.times)-1 && nearerNext(rs.times, j, t) {
				j++
			}
			vals[i] = rs.values[j]
		}
		out.Values[msid] = vals
	}
	return out, nil
}

// nearerNext reports whether sample j+1 is at least as close to t as sample j.
func nearerNext(times []float64, j int, t float64) bool {
	cur := times[j] - t
	if cur < 0 {
		cur = -cur
	}
	next := times[j+1] - t
	if next < 0 {
		next = -next
	}
	return next <= cur
}
