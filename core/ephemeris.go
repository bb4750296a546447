package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

const earthRadiusKm = 6378.137

// Ephemeris propagates the observatory's orbit from a TLE so reports can
// annotate commanded states with orbital context.
type Ephemeris struct {
	sat satellite.Satellite
}

// NewEphemerisFromTLE constructs an ephemeris from two-line element lines.
func NewEphemerisFromTLE(line1, line2 string) *Ephemeris {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &Ephemeris{sat: sat}
}

// AltitudeKm returns the geocentric altitude in km at a mission elapsed time.
func (e *Ephemeris) AltitudeKm(tsecs float64) float64 {
	t := met.Time(tsecs).UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, _ := satellite.Propagate(e.sat, year, int(month), day, hour, min, sec)
	r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	return r - earthRadiusKm
}

// StateAltitudes evaluates the altitude at each state's midpoint. The result
// is index-aligned with states; a nil ephemeris yields nil.
func (e *Ephemeris) StateAltitudes(states []model.CommandedState) []float64 {
	if e == nil {
		return nil
	}
	out := make([]float64, len(states))
	for i, s := range states {
		out[i] = e.AltitudeKm((s.TStart + s.TStop) / 2)
	}
	return out
}
