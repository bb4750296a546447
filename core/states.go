package core

import (
	"fmt"

	"github.com/orbitalworks/thermcheck/kb"
	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// Materialize converts a merged, gap-free command sequence plus an anchor
// state into contiguous commanded-state intervals. The walk starts from the
// anchor's attribute vector; a new state opens whenever a command changes any
// tracked attribute. Commands at or before the anchor's start are ignored:
// their effects are already reflected in the anchor.
//
// The final state's stop is forced to the last command's time, replacing the
// open-ended placeholder.
func Materialize(state0 model.InitialState, cmds []model.Command) []model.CommandedState {
	if len(cmds) == 0 {
		s := state0.CommandedState
		return []model.CommandedState{s}
	}

	sorted := append([]model.Command(nil), cmds...)
	model.SortCommands(sorted)

	fold := commandFold{attrs: state0.StateAttrs}
	cur := model.CommandedState{
		TStart:     state0.TStart,
		DateStart:  state0.DateStart,
		TStop:      met.FarFuture,
		DateStop:   met.Date(met.FarFuture),
		StateAttrs: state0.StateAttrs,
	}
	if cur.DateStart == "" {
		cur.DateStart = met.Date(cur.TStart)
	}

	var states []model.CommandedState
	lastTime := state0.TStart
	for _, cmd := range sorted {
		if cmd.Time <= state0.TStart {
			continue
		}
		lastTime = cmd.Time
		if !fold.apply(cmd) {
			continue
		}
		// Close the current state at the transition and open the next one.
		if cmd.Time > cur.TStart {
			cur.TStop = cmd.Time
			cur.DateStop = met.Date(cmd.Time)
			states = append(states, cur)
			cur = model.CommandedState{
				TStart:    cmd.Time,
				DateStart: met.Date(cmd.Time),
			}
		}
		cur.StateAttrs = fold.attrs
	}

	cur.TStop = lastTime
	cur.DateStop = met.Date(lastTime)
	states = append(states, cur)
	return states
}

// StatesForInterval fetches the previously-materialized states intersecting
// [datestart, datestop] from the history store, then stretches the first
// state's start and the last state's stop outward by met.BoundaryPad so the
// interval stays fully covered despite date/seconds round-trip precision
// loss. Used by validation, which bypasses command replay.
func StatesForInterval(store *kb.HistoryStore, datestart, datestop string) ([]model.CommandedState, error) {
	t0, err := met.Secs(datestart)
	if err != nil {
		return nil, err
	}
	t1, err := met.Secs(datestop)
	if err != nil {
		return nil, err
	}
	if t1 <= t0 {
		return nil, fmt.Errorf("interval %s to %s is empty", datestart, datestop)
	}

	states := store.StatesIntersecting(t0, t1)
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", kb.ErrNoStates, datestart, datestop)
	}

	states[0].TStart = t0 - met.BoundaryPad
	states[0].DateStart = met.Date(states[0].TStart)
	last := len(states) - 1
	states[last].TStop = t1 + met.BoundaryPad
	states[last].DateStop = met.Date(states[last].TStop)

	return states, nil
}
