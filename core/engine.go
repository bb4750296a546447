package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/orbitalworks/thermcheck/internal/logging"
	"github.com/orbitalworks/thermcheck/internal/observability"
	"github.com/orbitalworks/thermcheck/internal/telemetry"
	"github.com/orbitalworks/thermcheck/kb"
	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// AnchorWindowSecs is the half-width of the telemetry window averaged to seed
// the anchor state's temperature.
const AnchorWindowSecs = 700.0

// MinInitialTemp floors the seeded temperature. Sensors read implausibly low
// after safing events; starting colder than this makes early predictions
// optimistic.
const MinInitialTemp = 15.0

// DefaultDaysBack is how far before the review load telemetry is fetched.
const DefaultDaysBack = 21.0

var tracer = otel.Tracer("thermcheck/core")

// Limits carries the planning and yellow limits for one modeled quantity.
type Limits struct {
	YellowHi float64 `yaml:"yellow_hi"`
	YellowLo float64 `yaml:"yellow_lo"`
	// MarginDegC separates the planning limit from the yellow limit on
	// both sides.
	MarginDegC float64 `yaml:"margin_deg_c"`
	// FlagCold enables the lower planning limit scan.
	FlagCold bool `yaml:"flag_cold"`
}

// PlanningHi is the upper planning limit.
func (l Limits) PlanningHi() float64 { return l.YellowHi - l.MarginDegC }

// PlanningLo is the lower planning limit.
func (l Limits) PlanningLo() float64 { return l.YellowLo + l.MarginDegC }

// StateOverride is a caller-supplied initial state used when no state history
// is available, typically on the first run after a database outage.
type StateOverride struct {
	Attrs model.StateAttrs
	// TInit, when set, replaces the telemetry-derived seed temperature.
	TInit *float64
}

// PredictionRequest describes one review run.
type PredictionRequest struct {
	// LoadDir is the product directory of the load under review.
	LoadDir string
	// Interrupt marks this load as interrupting the previously-approved
	// schedule. It is always an explicit input.
	Interrupt bool
	// MSID is the telemetry mnemonic of the modeled temperature.
	MSID string
	// RunStart is the run time in mission seconds; zero means the clock.
	RunStart float64
	// DaysBack overrides DefaultDaysBack when positive.
	DaysBack float64
	Limits   Limits
	// Override, when non-nil, bypasses the anchor-state lookup.
	Override *StateOverride
}

// PredictionResult is everything a review run produces.
type PredictionResult struct {
	Load       *model.Load
	State0     model.InitialState
	Resolve    *ResolveReport
	States     []model.CommandedState
	Times      []float64
	Temps      []float64
	Violations []model.Violation
	// AltitudesKm is index-aligned with States when an ephemeris is
	// configured, nil otherwise.
	AltitudesKm []float64
}

// ValidationRequest describes one validation run over already-flown history.
type ValidationRequest struct {
	DateStart string
	DateStop  string
	MSID      string
	// Limits maps quantity name to its residual-quantile bounds.
	Limits map[string][]ValidationLimit
}

// ValidationResult holds the residual statistics and any flagged quantiles.
type ValidationResult struct {
	States     []model.CommandedState
	Times      []float64
	Data       []float64
	Pred       []float64
	Quantiles  map[string][]QuantileStat
	Violations []ValidationViolation
}

// ReviewEngine orchestrates the load-review pipeline: telemetry, anchor
// state, continuity resolution, state materialization, simulation, and
// violation scanning. All collaborators are interfaces or nil-safe values so
// tests can assemble partial engines.
type ReviewEngine struct {
	Source    LoadSource
	Store     *kb.HistoryStore
	Telemetry telemetry.Provider
	Sim       Simulator
	Spec      *ModelSpec
	Eph       *Ephemeris
	Clock     met.Clock
	Log       logging.Logger
	Metrics   *observability.PipelineCollector
}

func (e *ReviewEngine) log() logging.Logger {
	if e.Log == nil {
		return logging.Noop()
	}
	return e.Log
}

func (e *ReviewEngine) now() float64 {
	if e.Clock == nil {
		return met.SystemClock{}.Now()
	}
	return e.Clock.Now()
}

// startStage opens a span and a stage-duration observation for one pipeline
// stage. The returned func ends both.
func (e *ReviewEngine) startStage(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, name)
	start := time.Now()
	return ctx, func() {
		e.Metrics.ObserveStage(name, time.Since(start).Seconds())
		span.End()
	}
}

// RunPrediction executes a full review run for one load.
func (e *ReviewEngine) RunPrediction(ctx context.Context, req PredictionRequest) (*PredictionResult, error) {
	ctx, log := logging.WithRunLogger(ctx, e.log())
	ctx, span := tracer.Start(ctx, "prediction", oteltrace.WithAttributes(
		attribute.String("load_dir", req.LoadDir),
		attribute.String("msid", req.MSID)))
	defer span.End()

	res, err := e.runPrediction(ctx, log, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prediction failed")
		e.Metrics.RunCompleted("prediction", "error")
		return nil, err
	}
	e.Metrics.RunCompleted("prediction", "ok")
	return res, nil
}

func (e *ReviewEngine) runPrediction(ctx context.Context, log logging.Logger, req PredictionRequest) (*PredictionResult, error) {
	load, err := e.Source.Load(req.LoadDir)
	if err != nil {
		return nil, err
	}
	log = log.With(logging.String("load", load.Name))
	log.Info(ctx, "review load read",
		logging.Int("commands", len(load.Commands)),
		logging.String("tstart", met.Date(load.TStart)),
		logging.String("tstop", met.Date(load.TStop)))

	tlm, err := e.fetchTelemetry(ctx, req, load)
	if err != nil {
		return nil, err
	}

	state0, err := e.anchorState(ctx, log, req, tlm)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "anchor state established",
		logging.String("tstart", state0.DateStart),
		logging.Float64("t_init", *state0.HeldTemperature))

	cmds, report, err := e.resolveHistory(ctx, load, state0, req.Interrupt)
	if err != nil {
		return nil, err
	}
	e.Metrics.ObserveChainDepth(len(report.Visited))

	_, done := e.startStage(ctx, "materialize")
	states := Materialize(state0, cmds)
	done()
	log.Info(ctx, "states materialized", logging.Int("states", len(states)))

	sctx, done := e.startStage(ctx, "simulate")
	sim, err := e.Sim.Run(sctx, e.Spec, states, state0.TStart, load.TStop, *state0.HeldTemperature)
	done()
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", load.Name, err)
	}

	_, done = e.startStage(ctx, "scan")
	viols := ScanViolations(sim.Times, sim.Temps, req.Limits.PlanningHi(), GreaterEqual, load.TStart)
	if req.Limits.FlagCold {
		viols = append(viols, ScanViolations(sim.Times, sim.Temps, req.Limits.PlanningLo(), LessEqual, load.TStart)...)
	}
	done()
	for _, v := range viols {
		e.Metrics.ViolationFound(v.Kind)
		log.Warn(ctx, "planning limit violation",
			logging.String("kind", v.Kind),
			logging.String("start", v.DateStart),
			logging.String("stop", v.DateStop),
			logging.Float64("extreme", v.ExtremeTemp),
			logging.Float64("limit", v.Limit))
	}

	return &PredictionResult{
		Load:        load,
		State0:      state0,
		Resolve:     report,
		States:      states,
		Times:       sim.Times,
		Temps:       sim.Temps,
		Violations:  viols,
		AltitudesKm: e.Eph.StateAltitudes(states),
	}, nil
}

// fetchTelemetry pulls the seed telemetry window: DaysBack days ending at
// whichever comes first, the load start or the run time. Fetching past the
// load start would leak flown telemetry into a prospective review.
func (e *ReviewEngine) fetchTelemetry(ctx context.Context, req PredictionRequest, load *model.Load) (*telemetry.MSIDSet, error) {
	runStart := req.RunStart
	if runStart == 0 {
		runStart = e.now()
	}
	stop := load.TStart
	if runStart < stop {
		stop = runStart
	}
	days := req.DaysBack
	if days <= 0 {
		days = DefaultDaysBack
	}

	sctx, done := e.startStage(ctx, "telemetry")
	tlm, err := e.Telemetry.Fetch(sctx, []string{req.MSID},
		met.Date(stop-days*86400), met.Date(stop), telemetry.DefaultCadence)
	done()
	if err != nil {
		return nil, fmt.Errorf("fetch %s telemetry: %w", req.MSID, err)
	}
	if len(tlm.Times) < telemetry.MinSamples {
		return nil, fmt.Errorf("%w: %d samples ending %s",
			telemetry.ErrInsufficientTelemetry, len(tlm.Times), met.Date(stop))
	}
	return tlm, nil
}

// anchorState builds State0. The anchor time sits five samples back from the
// end of telemetry so the seed never rests on the ragged tail of the archive.
// The anchor is the latest normal-pointing state at or before that time; its
// temperature is the telemetry mean around the anchor start, floored at
// MinInitialTemp.
func (e *ReviewEngine) anchorState(ctx context.Context, log logging.Logger, req PredictionRequest, tlm *telemetry.MSIDSet) (model.InitialState, error) {
	idx := len(tlm.Times) - 5
	if idx < 0 {
		idx = 0
	}
	tbegin := tlm.Times[idx]

	var cs model.CommandedState
	if req.Override != nil {
		cs = model.CommandedState{
			TStart:     tbegin,
			TStop:      met.FarFuture,
			DateStart:  met.Date(tbegin),
			DateStop:   met.Date(met.FarFuture),
			StateAttrs: req.Override.Attrs,
		}
		log.Info(ctx, "using caller-supplied initial state")
	} else {
		var err error
		cs, err = e.Store.LatestStateBefore(tbegin, func(s model.CommandedState) bool {
			return s.PCADMode == "NPNT"
		})
		if err != nil {
			return model.InitialState{}, fmt.Errorf("anchor lookup at %s: %w", met.Date(tbegin), err)
		}
	}

	var temp float64
	if req.Override != nil && req.Override.TInit != nil {
		temp = *req.Override.TInit
	} else {
		var err error
		temp, err = tlm.MeanAround(req.MSID, cs.TStart, AnchorWindowSecs)
		if err != nil {
			return model.InitialState{}, err
		}
	}
	if temp < MinInitialTemp {
		log.Warn(ctx, "seed temperature below floor",
			logging.Float64("temp", temp),
			logging.Float64("floor", MinInitialTemp))
		temp = MinInitialTemp
	}

	return model.InitialState{CommandedState: cs, HeldTemperature: &temp}, nil
}

// resolveHistory bridges the anchor state to the review load's first command
// and returns the complete merged sequence, review commands included. With a
// history store populated, bridge commands come from the store under the
// interrupt filtering rule; otherwise the resolver walks the continuity chain
// on disk.
func (e *ReviewEngine) resolveHistory(ctx context.Context, load *model.Load, state0 model.InitialState, interrupt bool) ([]model.Command, *ResolveReport, error) {
	ctx, done := e.startStage(ctx, "resolve")
	defer done()

	if e.Store != nil {
		if ncmds, _ := e.Store.Len(); ncmds > 0 {
			head := e.Store.CommandsBetween(state0.TStart, load.TStart)
			head = FilterContinuityCommands(head, load.TStart, interrupt)
			review, dropped := dropLegacyLeading(load.Commands)
			cmds := append(head, review...)
			model.SortCommands(cmds)
			return cmds, &ResolveReport{Commands: len(cmds), DroppedLeading: dropped}, nil
		}
	}

	r := NewResolver(e.Source, e.log())
	return r.AssembleHistory(ctx, load, state0)
}

// RunValidation replays a flown interval and compares the model against what
// the spacecraft actually reported.
func (e *ReviewEngine) RunValidation(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	ctx, log := logging.WithRunLogger(ctx, e.log())
	ctx, span := tracer.Start(ctx, "validation", oteltrace.WithAttributes(
		attribute.String("msid", req.MSID),
		attribute.String("datestart", req.DateStart),
		attribute.String("datestop", req.DateStop)))
	defer span.End()

	res, err := e.runValidation(ctx, log, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		e.Metrics.RunCompleted("validation", "error")
		return nil, err
	}
	e.Metrics.RunCompleted("validation", "ok")
	return res, nil
}

func (e *ReviewEngine) runValidation(ctx context.Context, log logging.Logger, req ValidationRequest) (*ValidationResult, error) {
	states, err := StatesForInterval(e.Store, req.DateStart, req.DateStop)
	if err != nil {
		return nil, err
	}

	sctx, done := e.startStage(ctx, "telemetry")
	tlm, err := e.Telemetry.Fetch(sctx, []string{req.MSID}, req.DateStart, req.DateStop, telemetry.DefaultCadence)
	done()
	if err != nil {
		return nil, fmt.Errorf("fetch %s telemetry: %w", req.MSID, err)
	}
	data, err := tlm.Series(req.MSID)
	if err != nil {
		return nil, err
	}

	tstart := states[0].TStart
	tstop := states[len(states)-1].TStop
	sctx, done = e.startStage(ctx, "simulate")
	sim, err := e.Sim.Run(sctx, e.Spec, states, tstart, tstop, data[0])
	done()
	if err != nil {
		return nil, fmt.Errorf("simulate validation interval: %w", err)
	}

	pred := sampleAt(sim.Times, sim.Temps, tlm.Times)
	stats, err := ResidualQuantiles(data, pred, DefaultQuantiles)
	if err != nil {
		return nil, err
	}
	byQuantity := map[string][]QuantileStat{req.MSID: stats}
	viols := ValidationViols(byQuantity, req.Limits)
	for _, v := range viols {
		log.Warn(ctx, "validation quantile outside limit",
			logging.String("quantity", v.Quantity),
			logging.Int("quantile", v.Quantile),
			logging.Float64("value", v.Value),
			logging.Float64("limit", v.Limit))
	}

	return &ValidationResult{
		States:     states,
		Times:      tlm.Times,
		Data:       data,
		Pred:       pred,
		Quantiles:  byQuantity,
		Violations: viols,
	}, nil
}

// sampleAt evaluates a series at the requested times by linear interpolation,
// clamping outside the source range.
func sampleAt(times, values, at []float64) []float64 {
	out := make([]float64, len(at))
	j := 0
	for i, t := range at {
		for j < len(times)-1 && times[j+1] <= t {
			j++
		}
		switch {
		case j >= len(times)-1 || t <= times[0]:
			if t <= times[0] {
				out[i] = values[0]
			} else {
				out[i] = values[len(values)-1]
			}
		default:
			a, b := times[j], times[j+1]
			frac := (t - a) / (b - a)
			out[i] = values[j] + frac*(values[j+1]-values[j])
		}
	}
	return out
}
