package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/orbitalworks/thermcheck/model"
)

// PitchPower maps a solar pitch angle to the equilibrium temperature
// contribution at that attitude.
type PitchPower struct {
	Pitch float64 `json:"pitch"`
	TEq   float64 `json:"t_eq"`
}

// ModelSpec parameterizes the built-in thermal response model. Specs are
// JSON products checked in next to the limit configuration.
type ModelSpec struct {
	Name string `json:"name"`
	// TimeStep is the integration step in seconds.
	TimeStep float64 `json:"time_step"`
	// TauSeconds is the first-order thermal time constant.
	TauSeconds float64 `json:"tau_seconds"`
	// PitchTable gives the attitude-dependent equilibrium contribution,
	// interpolated linearly in pitch.
	PitchTable []PitchPower `json:"pitch_table"`
	// CCDDegC and FEPDegC are the per-unit equilibrium contributions of
	// powered CCDs and FEPs.
	CCDDegC float64 `json:"ccd_deg_c"`
	FEPDegC float64 `json:"fep_deg_c"`
	// ClockingDegC is added while the instrument is clocking.
	ClockingDegC float64 `json:"clocking_deg_c"`
}

// LoadModelSpec decodes a model specification from r.
func LoadModelSpec(r io.Reader) (*ModelSpec, error) {
	var spec ModelSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode model spec: %w", err)
	}
	if spec.TimeStep <= 0 {
		spec.TimeStep = 328.0
	}
	if spec.TauSeconds <= 0 {
		return nil, fmt.Errorf("model spec %q: tau_seconds must be positive", spec.Name)
	}
	sort.Slice(spec.PitchTable, func(i, j int) bool {
		return spec.PitchTable[i].Pitch < spec.PitchTable[j].Pitch
	})
	return &spec, nil
}

// SimResult is the predicted temperature time series.
type SimResult struct {
	Times []float64
	Temps []float64
}

// Simulator evolves a thermal model over a commanded-state sequence. It is
// treated as a pure function: same states and initial temperature, same
// series.
type Simulator interface {
	Run(ctx context.Context, spec *ModelSpec, states []model.CommandedState, tstart, tstop, initTemp float64) (*SimResult, error)
}

// FirstOrderSimulator is the built-in engine: a single-node first-order
// response dT/dt = (Teq(state) - T) / tau integrated with fixed Euler steps.
// Production runs substitute the external physics engine behind the same
// interface.
type FirstOrderSimulator struct{}

// Run integrates the model from tstart to tstop on the spec's time step.
func (FirstOrderSimulator) Run(ctx context.Context, spec *ModelSpec, states []model.CommandedState, tstart, tstop, initTemp float64) (*SimResult, error) {
	if spec == nil {
		return nil, fmt.Errorf("simulator: nil model spec")
	}
	if tstop <= tstart {
		return nil, fmt.Errorf("simulator: tstop %v <= tstart %v", tstop, tstart)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("simulator: no states")
	}

	res := &SimResult{}
	temp := initTemp
	si := 0
	for t := tstart; t <= tstop; t += spec.TimeStep {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for si < len(states)-1 && states[si].TStop <= t {
			si++
		}
		teq := spec.equilibrium(states[si].StateAttrs)
		temp += (teq - temp) / spec.TauSeconds * spec.TimeStep
		res.Times = append(res.Times, t)
		res.Temps = append(res.Temps, temp)
	}
	return res, nil
}

// equilibrium computes the steady-state temperature for an attribute vector.
func (spec *ModelSpec) equilibrium(attrs model.StateAttrs) float64 {
	teq := spec.pitchTEq(attrs.Pitch)
	teq += float64(attrs.CCDCount) * spec.CCDDegC
	teq += float64(attrs.FEPCount) * spec.FEPDegC
	if attrs.Clocking != 0 {
		teq += spec.ClockingDegC
	}
	return teq
}

// pitchTEq interpolates the pitch table, clamping outside its range.
func (spec *ModelSpec) pitchTEq(pitch float64) float64 {
	table := spec.PitchTable
	if len(table) == 0 {
		return 0
	}
	if pitch <= table[0].Pitch {
		return table[0].TEq
	}
	last := len(table) - 1
	if pitch >= table[last].Pitch {
		return table[last].TEq
	}
	for i := 1; i <= last; i++ {
		if pitch <= table[i].Pitch {
			a, b := table[i-1], table[i]
			frac := (pitch - a.Pitch) / (b.Pitch - a.Pitch)
			return a.TEq + frac*(b.TEq-a.TEq)
		}
	}
	return table[last].TEq
}
