package model

import (
	"fmt"
	"strings"
)

// LoadKind classifies how a load relates to its continuity predecessor.
type LoadKind int

const (
	// LoadNormal supersedes nothing; the predecessor ran to completion.
	LoadNormal LoadKind = iota
	// LoadTOO interrupts and replaces the tail of its predecessor.
	LoadTOO
	// LoadStop means the predecessor was stopped early at an explicit time.
	LoadStop
	// LoadShutdown means the predecessor was truncated by an autonomous
	// SCS-107 shutdown and a vehicle-only safing block must be spliced in.
	LoadShutdown
)

func (k LoadKind) String() string {
	switch k {
	case LoadNormal:
		return "Normal"
	case LoadTOO:
		return "TOO"
	case LoadStop:
		return "Stop"
	case LoadShutdown:
		return "SCS-107"
	default:
		return fmt.Sprintf("LoadKind(%d)", int(k))
	}
}

// LoadType is the tagged classification of a load. StopTime carries the
// premature-stop or shutdown time and is meaningful only for LoadStop and
// LoadShutdown.
type LoadType struct {
	Kind     LoadKind
	StopTime float64
}

// ParseLoadKind maps the continuity-file type token onto a LoadKind.
func ParseLoadKind(s string) (LoadKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORMAL":
		return LoadNormal, nil
	case "TOO":
		return LoadTOO, nil
	case "STOP":
		return LoadStop, nil
	case "SCS-107", "SCS107":
		return LoadShutdown, nil
	default:
		return 0, fmt.Errorf("unknown load type %q", s)
	}
}

// Load is a named command product covering a contiguous time span.
type Load struct {
	// Name is the load identifier, taken from the backstop file name.
	Name string
	// Dir is the product directory the load was read from.
	Dir string
	// Commands is the full ordered command list.
	Commands []Command
	// TStart and TStop are the times of the first and last command.
	TStart float64
	TStop  float64
}
