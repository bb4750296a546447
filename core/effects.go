package core

import (
	"strconv"
	"strings"

	"github.com/orbitalworks/thermcheck/model"
)

// attitude-stability indicator issued at the head of the maneuver sequence.
// See dropLegacyLeading in continuity.go.
const mnemAttStable = "AOACRSTD"

// commandFold carries the mutable walk state for a materialization pass:
// the current attribute vector plus the target quaternion staged by
// MP_TARGQUAT, which only takes effect when the maneuver starts.
type commandFold struct {
	attrs model.StateAttrs

	stagedQuat  [4]float64
	stagedPitch float64
	hasStaged   bool
}

// apply folds one command into the walk state and reports whether any
// tracked attribute changed (i.e. whether a new commanded state begins).
func (f *commandFold) apply(cmd model.Command) bool {
	before := f.attrs

	switch cmd.Mnemonic {
	case "SIMTRANS":
		if v, ok := paramFloat(cmd, "POS"); ok {
			f.attrs.SimPos = v
		}

	case "MP_OBSID":
		if v, ok := paramInt(cmd, "ID"); ok {
			f.attrs.ObsID = v
		}

	case "MP_TARGQUAT":
		// Staged only; the attitude changes when AOMANUVR fires.
		q1, ok1 := paramFloat(cmd, "Q1")
		q2, ok2 := paramFloat(cmd, "Q2")
		q3, ok3 := paramFloat(cmd, "Q3")
		q4, ok4 := paramFloat(cmd, "Q4")
		if ok1 && ok2 && ok3 && ok4 {
			f.stagedQuat = [4]float64{q1, q2, q3, q4}
			f.stagedPitch, _ = paramFloat(cmd, "PITCH")
			f.hasStaged = true
		}

	case "AOMANUVR":
		if f.hasStaged {
			f.attrs.Q1 = f.stagedQuat[0]
			f.attrs.Q2 = f.stagedQuat[1]
			f.attrs.Q3 = f.stagedQuat[2]
			f.attrs.Q4 = f.stagedQuat[3]
			if f.stagedPitch != 0 {
				f.attrs.Pitch = f.stagedPitch
			}
			f.hasStaged = false
		}
		f.attrs.PCADMode = "NMAN"

	case "AONMMODE":
		f.attrs.PCADMode = "NMAN"

	case "AONPMODE":
		f.attrs.PCADMode = "NPNT"

	case "ACISPKT":
		f.applyACIS(cmd)
	}

	return f.attrs != before
}

// applyACIS handles the instrument power and clocking packets. The power
// packets carry explicit CCDS/FEPS counts in their parameter field.
func (f *commandFold) applyACIS(cmd model.Command) {
	tlmsid := cmd.TLMSID()
	switch {
	case strings.HasPrefix(tlmsid, "WSPOW"):
		if tlmsid == "WSPOW00000" {
			// Power-down packet: everything off.
			f.attrs.CCDCount = 0
			f.attrs.FEPCount = 0
			f.attrs.VidBoard = 0
			return
		}
		if v, ok := paramInt(cmd, "CCDS"); ok {
			f.attrs.CCDCount = v
		}
		if v, ok := paramInt(cmd, "FEPS"); ok {
			f.attrs.FEPCount = v
		}
		f.attrs.VidBoard = 1

	case strings.HasPrefix(tlmsid, "XTZ"), strings.HasPrefix(tlmsid, "XCZ"):
		f.attrs.Clocking = 1

	case strings.HasPrefix(tlmsid, "AA00"):
		f.attrs.Clocking = 0

	case tlmsid == "WSVIDALLDN":
		f.attrs.VidBoard = 0
		f.attrs.CCDCount = 0
	}
}

func paramFloat(cmd model.Command, key string) (float64, bool) {
	raw, ok := cmd.Params[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func paramInt(cmd model.Command, key string) (int, bool) {
	raw, ok := cmd.Params[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
