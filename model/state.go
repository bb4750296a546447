package model

// StateAttrs is the fixed vector of spacecraft attributes tracked by the
// state materializer. A new commanded state begins whenever any of these
// changes.
type StateAttrs struct {
	// Attitude quaternion.
	Q1, Q2, Q3, Q4 float64
	// Pitch is the solar pitch angle in degrees.
	Pitch float64
	// SimPos is the science instrument module translation position in steps.
	SimPos float64
	// CCDCount and FEPCount are the number of powered CCDs and FEPs.
	CCDCount int
	FEPCount int
	// VidBoard and Clocking are 0/1 flags for video board power and clocking.
	VidBoard int
	Clocking int
	// ObsID is the current observation identifier.
	ObsID int
	// PCADMode is the pointing mode, e.g. "NPNT" or "NMAN".
	PCADMode string
}

// CommandedState is an interval during which the attribute vector is
// constant. Intervals are half-open [TStart, TStop) and adjacent states are
// contiguous.
type CommandedState struct {
	TStart    float64
	TStop     float64
	DateStart string
	DateStop  string
	StateAttrs
}

// InitialState is the anchor state seeding a prediction run: the most recent
// trusted commanded state, augmented with a telemetry-derived temperature.
type InitialState struct {
	CommandedState
	// HeldTemperature is the telemetry-derived mean temperature at the
	// anchor, when one has been attached. Nil until set.
	HeldTemperature *float64
}

// Violation is a contiguous interval where a predicted quantity breaches a
// limit, clipped for display to the start of the load under review.
type Violation struct {
	// Kind is "hi" for upper-limit and "lo" for lower-limit violations.
	Kind      string
	DateStart string
	DateStop  string
	TStart    float64
	TStop     float64
	// ExtremeTemp is the maximum over the run for upper-limit violations,
	// the minimum for lower-limit ones.
	ExtremeTemp float64
	// Limit is the threshold that was breached.
	Limit float64
}
