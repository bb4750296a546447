package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/orbitalworks/thermcheck/internal/logging"
	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// ErrContinuityChain is returned when the backward walk through continuity
// loads fails to reach the anchor state within the depth bound. Truncating
// the chain instead would silently produce a wrong State0, so this is fatal.
var ErrContinuityChain = errors.New("continuity chain did not reach anchor state")

// DefaultMaxChainDepth bounds the backward walk. Real chains are a handful
// of loads; anything near this bound is a circular continuity reference or a
// mis-assembled product tree.
const DefaultMaxChainDepth = 30

// LoadSource supplies load products to the resolver. FileLoadSource is the
// production implementation; tests substitute in-memory chains.
type LoadSource interface {
	// Load returns the review backstop commands for a product directory.
	Load(dir string) (*model.Load, error)
	// VehicleOnly returns the vehicle-only command block for a directory.
	VehicleOnly(dir string) ([]model.Command, error)
	// Continuity returns the predecessor metadata for a directory.
	Continuity(dir string) (*ContinuityInfo, error)
}

// VisitedLoad records one backward step for the resolve report.
type VisitedLoad struct {
	Name     string
	Dir      string
	Type     model.LoadType
	Kept     int
	Dropped  int
	Vehicle  int
}

// ResolveReport is the diagnostics value returned alongside the assembled
// command sequence. Stages report what they did through this rather than
// through logger side effects, so callers can assert on it.
type ResolveReport struct {
	Visited        []VisitedLoad
	Commands       int
	DroppedLeading bool
}

// Resolver assembles a gap-free command sequence spanning from the anchor
// state's start time through the end of the load under review, by walking
// backward through continuity predecessors.
type Resolver struct {
	Source        LoadSource
	MaxChainDepth int
	Log           logging.Logger
}

// NewResolver constructs a resolver with the default chain bound.
func NewResolver(src LoadSource, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Noop()
	}
	return &Resolver{Source: src, MaxChainDepth: DefaultMaxChainDepth, Log: log}
}

// AssembleHistory walks the continuity chain backward from the review load
// until the earliest assembled command time is at or before state0's start.
// Each step returns a fresh slice; nothing aliases across iterations.
func (r *Resolver) AssembleHistory(ctx context.Context, review *model.Load, state0 model.InitialState) ([]model.Command, *ResolveReport, error) {
	report := &ResolveReport{}

	cmds, dropped := dropLegacyLeading(review.Commands)
	report.DroppedLeading = dropped
	if dropped {
		r.Log.Info(ctx, "dropped legacy leading attitude-stability command",
			logging.String("load", review.Name))
	}
	if len(cmds) == 0 {
		return nil, nil, fmt.Errorf("review load %s has no commands", review.Name)
	}

	dir := review.Dir
	startTime := cmds[0].Time
	depth := 0

	for state0.TStart < startTime {
		if depth >= r.maxDepth() {
			return nil, nil, fmt.Errorf("%w: %d loads walked, earliest command %s, anchor %s",
				ErrContinuityChain, depth, met.Date(startTime), met.Date(state0.TStart))
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		info, err := r.Source.Continuity(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("continuity lookup for %s: %w", dir, err)
		}
		cont, err := r.Source.Load(info.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("continuity load %s: %w", info.Path, err)
		}

		visit := VisitedLoad{Name: cont.Name, Dir: info.Path, Type: info.Type}
		before := len(cmds)

		switch info.Type.Kind {
		case model.LoadNormal:
			cmds = combineNormal(cont.Commands, cmds)

		case model.LoadTOO:
			cmds = combineTOO(cont.Commands, cmds)

		case model.LoadStop:
			cmds = combineStop(cont.Commands, cmds, info.Type.StopTime)

		case model.LoadShutdown:
			vehicle, err := r.Source.VehicleOnly(info.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("vehicle-only commands for %s: %w", info.Path, err)
			}
			visit.Vehicle = len(vehicle)
			cmds = combineShutdown(cont.Commands, vehicle, cmds, info.Type.StopTime)

		default:
			return nil, nil, fmt.Errorf("%w: unresolvable load type %v for %s",
				ErrContinuityChain, info.Type.Kind, info.Path)
		}

		visit.Kept = len(cmds) - before
		visit.Dropped = len(cont.Commands) + visit.Vehicle - visit.Kept
		report.Visited = append(report.Visited, visit)

		r.Log.Info(ctx, "spliced continuity load",
			logging.String("load", cont.Name),
			logging.String("type", info.Type.Kind.String()),
			logging.Int("kept", visit.Kept),
			logging.Int("dropped", visit.Dropped))

		startTime = cmds[0].Time
		dir = info.Path
		depth++
	}

	report.Commands = len(cmds)
	return cmds, report, nil
}

func (r *Resolver) maxDepth() int {
	if r.MaxChainDepth > 0 {
		return r.MaxChainDepth
	}
	return DefaultMaxChainDepth
}

// combineNormal prepends the whole predecessor: a normal continuity load ran
// uninterrupted to the point the current load begins.
func combineNormal(cont, cmds []model.Command) []model.Command {
	out := make([]model.Command, 0, len(cont)+len(cmds))
	out = append(out, cont...)
	out = append(out, cmds...)
	model.SortCommands(out)
	return out
}

// combineTOO truncates the predecessor at the moment the interrupting load's
// first command takes effect; predecessor commands at or after that moment
// never executed on the spacecraft.
func combineTOO(cont, cmds []model.Command) []model.Command {
	cutoff := cmds[0].Time
	out := make([]model.Command, 0, len(cont)+len(cmds))
	for _, c := range cont {
		if c.Time < cutoff {
			out = append(out, c)
		}
	}
	return append(out, cmds...)
}

// combineStop truncates the predecessor at the explicit autonomous-stop
// time; anything between the stop point and its nominal end is discarded.
func combineStop(cont, cmds []model.Command, stopTime float64) []model.Command {
	out := make([]model.Command, 0, len(cont)+len(cmds))
	for _, c := range cont {
		if c.Time <= stopTime {
			out = append(out, c)
		}
	}
	return append(out, cmds...)
}

// combineShutdown handles SCS-107: the predecessor is truncated at the
// shutdown time and the separately-sourced vehicle-only block supplies the
// safing commands, which are absent from the normal predecessor product.
func combineShutdown(cont, vehicle, cmds []model.Command, scs107Time float64) []model.Command {
	cutoff := cmds[0].Time
	out := make([]model.Command, 0, len(cont)+len(vehicle)+len(cmds))
	for _, c := range cont {
		if c.Time <= scs107Time {
			out = append(out, c)
		}
	}
	for _, c := range vehicle {
		if c.Time > scs107Time && c.Time < cutoff {
			out = append(out, c)
		}
	}
	out = append(out, cmds...)
	model.SortCommands(out)
	return out
}

// dropLegacyLeading removes a leading attitude-stability command from loads
// predating the running-load-termination-time marker. On those products the
// leading AOACRSTD reflects a 3-minute maneuver-sequence overlap that would
// otherwise be double counted. Returns a fresh slice when dropping.
func dropLegacyLeading(cmds []model.Command) ([]model.Command, bool) {
	if len(cmds) == 0 || cmds[0].Mnemonic != mnemAttStable {
		return cmds, false
	}
	for _, c := range cmds {
		if c.Params["EVENT"] == "RUNNING_LOAD_TERMINATION_TIME" {
			return cmds, false
		}
	}
	return append([]model.Command(nil), cmds[1:]...), true
}

// FilterContinuityCommands applies the database-resolver rule for commands
// fetched from the history store: keep load commands unless this run reviews
// an interrupt (their tail would reflect a timeline being displaced), and
// always keep commands that execute before the review load starts. Interrupt
// is an explicit input; it is never derived from the wall clock.
func FilterContinuityCommands(cmds []model.Command, reviewStart float64, interrupt bool) []model.Command {
	out := make([]model.Command, 0, len(cmds))
	for _, c := range cmds {
		if (!c.NonLoad() && !interrupt) || c.Time < reviewStart {
			out = append(out, c)
		}
	}
	return out
}
