package kb

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// HistorySummary is a small summary of what was loaded from JSON. It's
// mainly useful for logging from main().
type HistorySummary struct {
	Commands int
	States   int
}

// internal JSON shapes – keep them unexported so we're free to evolve them.
type historyJSON struct {
	Commands []commandJSON `json:"commands"`
	States   []stateJSON   `json:"states"`
}

type commandJSON struct {
	Date       string            `json:"date"`
	Mnemonic   string            `json:"mnemonic"`
	Params     map[string]string `json:"params,omitempty"`
	TimelineID string            `json:"timeline_id,omitempty"`
}

type stateJSON struct {
	DateStart string  `json:"datestart"`
	DateStop  string  `json:"datestop"`
	Q1        float64 `json:"q1"`
	Q2        float64 `json:"q2"`
	Q3        float64 `json:"q3"`
	Q4        float64 `json:"q4"`
	Pitch     float64 `json:"pitch"`
	SimPos    float64 `json:"simpos"`
	CCDCount  int     `json:"ccd_count"`
	FEPCount  int     `json:"fep_count"`
	VidBoard  int     `json:"vid_board"`
	Clocking  int     `json:"clocking"`
	ObsID     int     `json:"obsid"`
	PCADMode  string  `json:"pcad_mode"`
}

// LoadHistory reads a JSON command/state history from r, populates the
// store, and returns a summary of what was loaded.
//
// It fails only on JSON or date errors; ordering is restored by the store's
// own insertion sort, so the file need not be pre-sorted.
func LoadHistory(store *HistoryStore, r io.Reader) (*HistorySummary, error) {
	if store == nil {
		return nil, fmt.Errorf("LoadHistory: store is nil")
	}

	var payload historyJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadHistory: decode failed: %w", err)
	}

	cmds := make([]model.Command, 0, len(payload.Commands))
	for i, jc := range payload.Commands {
		t, err := met.Secs(jc.Date)
		if err != nil {
			return nil, fmt.Errorf("LoadHistory: command %d: %w", i, err)
		}
		cmds = append(cmds, model.Command{
			Time:       t,
			Date:       jc.Date,
			Mnemonic:   jc.Mnemonic,
			Params:     jc.Params,
			TimelineID: jc.TimelineID,
			Seq:        i,
		})
	}

	states := make([]model.CommandedState, 0, len(payload.States))
	for i, js := range payload.States {
		t0, err := met.Secs(js.DateStart)
		if err != nil {
			return nil, fmt.Errorf("LoadHistory: state %d: %w", i, err)
		}
		t1, err := met.Secs(js.DateStop)
		if err != nil {
			return nil, fmt.Errorf("LoadHistory: state %d: %w", i, err)
		}
		states = append(states, model.CommandedState{
			TStart:    t0,
			TStop:     t1,
			DateStart: js.DateStart,
			DateStop:  js.DateStop,
			StateAttrs: model.StateAttrs{
				Q1: js.Q1, Q2: js.Q2, Q3: js.Q3, Q4: js.Q4,
				Pitch:    js.Pitch,
				SimPos:   js.SimPos,
				CCDCount: js.CCDCount,
				FEPCount: js.FEPCount,
				VidBoard: js.VidBoard,
				Clocking: js.Clocking,
				ObsID:    js.ObsID,
				PCADMode: js.PCADMode,
			},
		})
	}

	store.AddCommands(cmds...)
	store.AddStates(states...)

	return &HistorySummary{Commands: len(cmds), States: len(states)}, nil
}
