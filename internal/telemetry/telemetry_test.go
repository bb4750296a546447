package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/orbitalworks/thermcheck/met"
)

func mustSecs(t *testing.T, date string) float64 {
	t.Helper()
	s, err := met.Secs(date)
	if err != nil {
		t.Fatalf("met.Secs(%q): %v", date, err)
	}
	return s
}

func TestMeanAround(t *testing.T) {
	set := &MSIDSet{
		Times:  []float64{0, 328, 656, 984, 1312},
		Values: map[string][]float64{"1dpamzt": {10, 20, 30, 40, 50}},
	}

	got, err := set.MeanAround("1dpamzt", 656, 700)
	if err != nil {
		t.Fatalf("MeanAround: %v", err)
	}
	// Samples at 0 and 1312 fall outside ±700 s of 656.
	if want := 30.0; got != want {
		t.Fatalf("mean = %v, want %v", got, want)
	}

	if _, err := set.MeanAround("1dpamzt", 1e6, 700); err == nil {
		t.Fatal("expected error for empty window")
	}
	if _, err := set.MeanAround("nope", 656, 700); err == nil {
		t.Fatal("expected error for unknown msid")
	}
}

func TestAlignSetsInsufficientSamples(t *testing.T) {
	raw := map[string]rawSeries{
		"1dpamzt": {times: []float64{0, 328}, values: []float64{1, 2}},
	}
	_, err := alignSets(raw, DefaultCadence, "2024:001:00:00:00.000", "2024:001:01:00:00.000")
	if !errors.Is(err, ErrInsufficientTelemetry) {
		t.Fatalf("err = %v, want ErrInsufficientTelemetry", err)
	}
}

func TestAlignSetsEmptySeries(t *testing.T) {
	raw := map[string]rawSeries{
		"1dpamzt": {},
	}
	_, err := alignSets(raw, DefaultCadence, "2024:001:00:00:00.000", "2024:001:01:00:00.000")
	if !errors.Is(err, ErrInsufficientTelemetry) {
		t.Fatalf("err = %v, want ErrInsufficientTelemetry", err)
	}
}

func TestAlignSetsSharedGrid(t *testing.T) {
	raw := map[string]rawSeries{
		"a": {times: []float64{0, 328, 656, 984, 1312, 1640}, values: []float64{1, 2, 3, 4, 5, 6}},
		"b": {times: []float64{164, 492, 820, 1148, 1476}, values: []float64{10, 20, 30, 40, 50}},
	}
	set, err := alignSets(raw, 328, "x", "y")
	if err != nil {
		t.Fatalf("alignSets: %v", err)
	}
	if len(set.Times) < MinSamples {
		t.Fatalf("grid has %d samples, want >= %d", len(set.Times), MinSamples)
	}
	// Grid spans the overlap of both series.
	if set.Times[0] < 164 || set.Times[len(set.Times)-1] > 1477 {
		t.Fatalf("grid [%v, %v] outside overlap [164, 1476]",
			set.Times[0], set.Times[len(set.Times)-1])
	}
	for msid, vals := range set.Values {
		if len(vals) != len(set.Times) {
			t.Fatalf("%s has %d values for %d times", msid, len(vals), len(set.Times))
		}
	}
}

func TestFileArchiveFetch(t *testing.T) {
	dir := t.TempDir()

	start := "2024:100:00:00:00.000"
	t0 := mustSecs(t, start)
	var samples []archiveSampleJSON
	for i := 0; i < 10; i++ {
		samples = append(samples, archiveSampleJSON{
			Date:  met.Date(t0 + float64(i)*328),
			Value: 20 + float64(i),
		})
	}
	writeArchiveFile(t, dir, "1dpamzt", samples)

	arch := &FileArchive{Dir: dir}
	set, err := arch.Fetch(context.Background(), []string{"1DPAMZT"},
		start, met.Date(t0+9*328), DefaultCadence)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	series, err := set.Series("1DPAMZT")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(series) != len(set.Times) {
		t.Fatalf("series length %d != grid length %d", len(series), len(set.Times))
	}
	if math.Abs(series[0]-20) > 0.5 {
		t.Fatalf("first aligned value = %v, want ~20", series[0])
	}
}

func TestFileArchiveFetchWindowTooThin(t *testing.T) {
	dir := t.TempDir()
	t0 := mustSecs(t, "2024:100:00:00:00.000")
	writeArchiveFile(t, dir, "1dpamzt", []archiveSampleJSON{
		{Date: met.Date(t0), Value: 20},
		{Date: met.Date(t0 + 328), Value: 21},
	})

	arch := &FileArchive{Dir: dir}
	_, err := arch.Fetch(context.Background(), []string{"1DPAMZT"},
		met.Date(t0), met.Date(t0+328), DefaultCadence)
	if !errors.Is(err, ErrInsufficientTelemetry) {
		t.Fatalf("err = %v, want ErrInsufficientTelemetry", err)
	}
}

func TestFileArchiveMissingFile(t *testing.T) {
	arch := &FileArchive{Dir: t.TempDir()}
	_, err := arch.Fetch(context.Background(), []string{"1DPAMZT"},
		"2024:100:00:00:00.000", "2024:101:00:00:00.000", DefaultCadence)
	if err == nil {
		t.Fatal("expected error for missing archive file")
	}
}

func writeArchiveFile(t *testing.T, dir, msid string, samples []archiveSampleJSON) {
	t.Helper()
	data, err := json.Marshal(archiveFileJSON{MSID: msid, Samples: samples})
	if err != nil {
		t.Fatalf("marshal archive: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, msid+".json"), data, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}
