package core

import (
	"testing"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// SGP4 reference TLE (ISS), epoch 2008 day 264.
const (
	tleLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	tleLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func TestAltitudeKm(t *testing.T) {
	eph := NewEphemerisFromTLE(tleLine1, tleLine2)

	alt := eph.AltitudeKm(met.MustSecs("2008:264:12:00:00.000"))
	if alt < 200 || alt > 500 {
		t.Fatalf("altitude = %v km, want low Earth orbit range", alt)
	}
}

func TestStateAltitudes(t *testing.T) {
	eph := NewEphemerisFromTLE(tleLine1, tleLine2)
	t0 := met.MustSecs("2008:264:12:00:00.000")
	states := []model.CommandedState{
		{TStart: t0, TStop: t0 + 1000},
		{TStart: t0 + 1000, TStop: t0 + 2000},
	}

	alts := eph.StateAltitudes(states)
	if len(alts) != len(states) {
		t.Fatalf("got %d altitudes for %d states", len(alts), len(states))
	}
	for i, a := range alts {
		if a < 200 || a > 500 {
			t.Fatalf("state %d altitude = %v km", i, a)
		}
	}
}

func TestStateAltitudesNilEphemeris(t *testing.T) {
	var eph *Ephemeris
	if alts := eph.StateAltitudes([]model.CommandedState{{TStart: 0, TStop: 1}}); alts != nil {
		t.Fatalf("nil ephemeris produced %v", alts)
	}
}
