package model

import "sort"

// Command is a single spacecraft directive from a load product or the
// command history. Commands are immutable once read.
type Command struct {
	// Time is the execution time in mission elapsed seconds.
	Time float64
	// Date is the redundant day-of-year string form of Time.
	Date string
	// Mnemonic is the command type, e.g. "SIMTRANS" or "ACISPKT".
	Mnemonic string
	// Params holds the pipe-delimited parameter field, split into key/value
	// pairs. TLMSID, when present, identifies the specific packet.
	Params map[string]string
	// TimelineID names the load this command belongs to. Empty for non-load
	// commands (ground-injected or autonomous).
	TimelineID string
	// Seq is the position of the command in its source product; it breaks
	// ordering ties between commands at the same time.
	Seq int
}

// TLMSID returns the TLMSID parameter, or "" when absent.
func (c Command) TLMSID() string { return c.Params["TLMSID"] }

// NonLoad reports whether the command belongs to no timeline.
func (c Command) NonLoad() bool { return c.TimelineID == "" }

// SortCommands orders commands by time, ties broken by source position.
// The sort is performed on the slice in place; callers holding shared
// history should pass a copy.
func SortCommands(cmds []Command) {
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Time != cmds[j].Time {
			return cmds[i].Time < cmds[j].Time
		}
		return cmds[i].Seq < cmds[j].Seq
	})
}
