// Package report writes the pipeline's tabular output products. Both files
// are tab-delimited with a header row so downstream plotting and diffing
// tools can consume them without a schema.
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// WriteStates writes the commanded-state table. altitudesKm, when non-nil,
// must be index-aligned with states and adds a trailing altitude column.
func WriteStates(w io.Writer, states []model.CommandedState, altitudesKm []float64) error {
	if altitudesKm != nil && len(altitudesKm) != len(states) {
		return fmt.Errorf("write states: %d altitudes for %d states", len(altitudesKm), len(states))
	}

	bw := bufio.NewWriter(w)
	header := "datestart\tdatestop\ttstart\ttstop\tpitch\tsimpos\tccd_count\tfep_count\tvid_board\tclocking\tobsid\tpcad_mode"
	if altitudesKm != nil {
		header += "\taltitude_km"
	}
	if _, err := fmt.Fprintln(bw, header); err != nil {
		return err
	}

	for i, s := range states {
		_, err := fmt.Fprintf(bw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.0f\t%d\t%d\t%d\t%d\t%d\t%s",
			s.DateStart, s.DateStop, s.TStart, s.TStop, s.Pitch,
			s.SimPos, s.CCDCount, s.FEPCount, s.VidBoard, s.Clocking,
			s.ObsID, s.PCADMode)
		if err != nil {
			return err
		}
		if altitudesKm != nil {
			if _, err := fmt.Fprintf(bw, "\t%.2f", altitudesKm[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTemps writes the predicted temperature series.
func WriteTemps(w io.Writer, times, temps []float64) error {
	if len(times) != len(temps) {
		return fmt.Errorf("write temps: %d times for %d temps", len(times), len(temps))
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "time\tdate\ttemp"); err != nil {
		return err
	}
	for i, t := range times {
		if _, err := fmt.Fprintf(bw, "%.2f\t%s\t%.2f\n", t, met.Date(t), temps[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteViolations writes the violation table; an empty slice still writes the
// header so the product always exists after a run.
func WriteViolations(w io.Writer, viols []model.Violation) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "kind\tdatestart\tdatestop\textreme_temp\tlimit"); err != nil {
		return err
	}
	for _, v := range viols {
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%.2f\t%.2f\n",
			v.Kind, v.DateStart, v.DateStop, v.ExtremeTemp, v.Limit)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
