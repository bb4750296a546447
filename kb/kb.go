// Package kb provides the in-memory command/state history store backing a
// review run. Within a run the store is strictly read-only after loading; the
// mutex exists so a metrics endpoint or future service surface can read it
// concurrently with the pipeline.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orbitalworks/thermcheck/model"
)

var (
	// ErrNoAnchorState is returned when no qualifying state exists at or
	// before the requested time.
	ErrNoAnchorState = errors.New("no qualifying anchor state")
	// ErrNoStates is returned when a state query matches nothing.
	ErrNoStates = errors.New("no states in interval")
)

// HistoryStore holds previously-run commands and previously-materialized
// commanded states, ordered by time.
type HistoryStore struct {
	mu       sync.RWMutex
	commands []model.Command
	states   []model.CommandedState
}

// NewHistoryStore constructs an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// AddCommands inserts commands into the history, keeping time order.
func (h *HistoryStore) AddCommands(cmds ...model.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmds...)
	model.SortCommands(h.commands)
}

// AddStates inserts states into the history, keeping TStart order.
func (h *HistoryStore) AddStates(states ...model.CommandedState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, states...)
	sort.SliceStable(h.states, func(i, j int) bool {
		return h.states[i].TStart < h.states[j].TStart
	})
}

// CommandsBetween returns a copy of the commands with tstart <= time < tstop.
func (h *HistoryStore) CommandsBetween(tstart, tstop float64) []model.Command {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lo := sort.Search(len(h.commands), func(i int) bool {
		return h.commands[i].Time >= tstart
	})
	hi := sort.Search(len(h.commands), func(i int) bool {
		return h.commands[i].Time >= tstop
	})
	out := make([]model.Command, hi-lo)
	copy(out, h.commands[lo:hi])
	return out
}

// StatesIntersecting returns a copy of the states that overlap
// [tstart, tstop): every state with TStop > tstart and TStart < tstop,
// ordered by TStart.
func (h *HistoryStore) StatesIntersecting(tstart, tstop float64) []model.CommandedState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []model.CommandedState
	for _, s := range h.states {
		if s.TStop > tstart && s.TStart < tstop {
			out = append(out, s)
		}
	}
	return out
}

// LatestStateBefore returns the most recent state whose start is at or before
// t and which satisfies qualify (nil accepts everything). This is the anchor
// state lookup used to build State0.
func (h *HistoryStore) LatestStateBefore(t float64, qualify func(model.CommandedState) bool) (model.CommandedState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.states) - 1; i >= 0; i-- {
		s := h.states[i]
		if s.TStart > t {
			continue
		}
		if qualify == nil || qualify(s) {
			return s, nil
		}
	}
	return model.CommandedState{}, fmt.Errorf("%w at or before %v", ErrNoAnchorState, t)
}

// Len reports the number of stored commands and states.
func (h *HistoryStore) Len() (commands, states int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.commands), len(h.states)
}
