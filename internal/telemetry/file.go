package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orbitalworks/thermcheck/met"
)

// FileArchive serves telemetry from per-MSID JSON exports in a directory.
// Each file is named <msid>.json (lowercase) and holds sorted samples:
//
//	{"msid": "1dpamzt", "samples": [{"date": "2024:123:00:00:00.000", "value": 21.4}, ...]}
//
// This is the offline archive format; the live archive sits behind the same
// Provider interface.
type FileArchive struct {
	Dir string
}

type archiveFileJSON struct {
	MSID    string              `json:"msid"`
	Samples []archiveSampleJSON `json:"samples"`
}

type archiveSampleJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Fetch reads each requested MSID's file, windows its samples to
// [datestart, datestop], and aligns the series onto a shared grid.
func (a *FileArchive) Fetch(ctx context.Context, msids []string, datestart, datestop string, cadence float64) (*MSIDSet, error) {
	t0, err := met.Secs(datestart)
	if err != nil {
		return nil, fmt.Errorf("telemetry window start: %w", err)
	}
	t1, err := met.Secs(datestop)
	if err != nil {
		return nil, fmt.Errorf("telemetry window stop: %w", err)
	}

	raw := make(map[string]rawSeries, len(msids))
	for _, msid := range msids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rs, err := a.readMSID(msid, t0, t1)
		if err != nil {
			return nil, err
		}
		raw[msid] = rs
	}
	return alignSets(raw, cadence, datestart, datestop)
}

func (a *FileArchive) readMSID(msid string, t0, t1 float64) (rawSeries, error) {
	path := filepath.Join(a.Dir, strings.ToLower(msid)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return rawSeries{}, fmt.Errorf("read telemetry archive %s: %w", path, err)
	}

	var file archiveFileJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return rawSeries{}, fmt.Errorf("decode telemetry archive %s: %w", path, err)
	}

	var rs rawSeries
	for i, s := range file.Samples {
		t, err := met.Secs(s.Date)
		if err != nil {
			return rawSeries{}, fmt.Errorf("telemetry archive %s: sample %d: %w", path, i, err)
		}
		if t < t0 || t > t1 {
			continue
		}
		rs.times = append(rs.times, t)
		rs.values = append(rs.values, s.Value)
	}
	return rs, nil
}
