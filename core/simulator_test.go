package core

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/orbitalworks/thermcheck/model"
)

func testSpec() *ModelSpec {
	return &ModelSpec{
		Name:       "test",
		TimeStep:   328,
		TauSeconds: 20000,
		PitchTable: []PitchPower{
			{Pitch: 45, TEq: 18},
			{Pitch: 90, TEq: 24},
			{Pitch: 170, TEq: 22},
		},
		CCDDegC:      1.6,
		FEPDegC:      0.9,
		ClockingDegC: 1.2,
	}
}

func TestLoadModelSpec(t *testing.T) {
	spec, err := LoadModelSpec(strings.NewReader(`{
		"name": "dpa",
		"tau_seconds": 20000,
		"pitch_table": [{"pitch": 170, "t_eq": 22}, {"pitch": 45, "t_eq": 18}],
		"ccd_deg_c": 1.6
	}`))
	if err != nil {
		t.Fatalf("LoadModelSpec: %v", err)
	}
	if spec.TimeStep != 328 {
		t.Fatalf("default time step = %v, want 328", spec.TimeStep)
	}
	if spec.PitchTable[0].Pitch != 45 {
		t.Fatal("pitch table not sorted")
	}
}

func TestLoadModelSpecRejectsZeroTau(t *testing.T) {
	if _, err := LoadModelSpec(strings.NewReader(`{"name": "x"}`)); err == nil {
		t.Fatal("expected error for missing tau_seconds")
	}
	if _, err := LoadModelSpec(strings.NewReader(`{not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestPitchTEqInterpolation(t *testing.T) {
	spec := testSpec()

	tests := []struct {
		pitch float64
		want  float64
	}{
		{45, 18},
		{90, 24},
		{67.5, 21}, // midpoint of 45 and 90
		{10, 18},   // clamped below
		{200, 22},  // clamped above
	}
	for _, tc := range tests {
		if got := spec.pitchTEq(tc.pitch); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("pitchTEq(%v) = %v, want %v", tc.pitch, got, tc.want)
		}
	}
}

func TestEquilibriumAddsInstrumentPower(t *testing.T) {
	spec := testSpec()
	base := spec.equilibrium(model.StateAttrs{Pitch: 90})
	loaded := spec.equilibrium(model.StateAttrs{Pitch: 90, CCDCount: 4, FEPCount: 4, Clocking: 1})
	want := base + 4*1.6 + 4*0.9 + 1.2
	if math.Abs(loaded-want) > 1e-9 {
		t.Fatalf("equilibrium = %v, want %v", loaded, want)
	}
}

func TestFirstOrderSimulatorConvergesToEquilibrium(t *testing.T) {
	spec := testSpec()
	states := []model.CommandedState{{
		TStart:     0,
		TStop:      400000,
		StateAttrs: model.StateAttrs{Pitch: 90},
	}}

	res, err := FirstOrderSimulator{}.Run(context.Background(), spec, states, 0, 400000, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Times) != len(res.Temps) {
		t.Fatal("times and temps misaligned")
	}
	final := res.Temps[len(res.Temps)-1]
	if math.Abs(final-24) > 0.5 {
		t.Fatalf("final temp = %v, want ~24 after 20 time constants", final)
	}
	// Monotonic approach from below.
	for i := 1; i < len(res.Temps); i++ {
		if res.Temps[i] < res.Temps[i-1]-1e-9 {
			t.Fatalf("temperature dipped at sample %d", i)
		}
	}
}

func TestFirstOrderSimulatorTracksStateChanges(t *testing.T) {
	spec := testSpec()
	states := []model.CommandedState{
		{TStart: 0, TStop: 200000, StateAttrs: model.StateAttrs{Pitch: 90}},
		{TStart: 200000, TStop: 400000, StateAttrs: model.StateAttrs{Pitch: 45}},
	}

	res, err := FirstOrderSimulator{}.Run(context.Background(), spec, states, 0, 400000, 24)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	final := res.Temps[len(res.Temps)-1]
	if math.Abs(final-18) > 0.5 {
		t.Fatalf("final temp = %v, want ~18 after the pitch change", final)
	}
}

func TestFirstOrderSimulatorErrors(t *testing.T) {
	spec := testSpec()
	states := []model.CommandedState{{TStart: 0, TStop: 100}}

	if _, err := (FirstOrderSimulator{}).Run(context.Background(), nil, states, 0, 100, 20); err == nil {
		t.Fatal("expected error for nil spec")
	}
	if _, err := (FirstOrderSimulator{}).Run(context.Background(), spec, states, 100, 100, 20); err == nil {
		t.Fatal("expected error for empty interval")
	}
	if _, err := (FirstOrderSimulator{}).Run(context.Background(), spec, nil, 0, 100, 20); err == nil {
		t.Fatal("expected error for no states")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (FirstOrderSimulator{}).Run(ctx, spec, states, 0, 100000, 20); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
