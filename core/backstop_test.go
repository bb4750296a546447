package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/orbitalworks/thermcheck/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestGlobOne(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "CR190_0704.backstop", "x")

	path, err := GlobOne(dir, "CR*.backstop")
	if err != nil {
		t.Fatalf("GlobOne: %v", err)
	}
	if filepath.Base(path) != "CR190_0704.backstop" {
		t.Fatalf("path = %s", path)
	}
}

func TestGlobOneZeroMatches(t *testing.T) {
	_, err := GlobOne(t.TempDir(), "CR*.backstop")
	if !errors.Is(err, ErrAmbiguousSource) {
		t.Fatalf("err = %v, want ErrAmbiguousSource", err)
	}
}

func TestGlobOneMultipleMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "CR190_0704.backstop", "x")
	writeFile(t, dir, "CR191_0101.backstop", "x")

	_, err := GlobOne(dir, "CR*.backstop")
	if !errors.Is(err, ErrAmbiguousSource) {
		t.Fatalf("err = %v, want ErrAmbiguousSource", err)
	}
}

const sampleBackstop = `2024:190:00:00:00.000 | 1234567 0 | MP_OBSID | ID= 28601
2024:190:00:05:00.000 | 1234568 0 | SIMTRANS | POS= 75624, SCS= 131, STEP= 23
2024:190:00:10:00.000 | 1234569 0 | ACISPKT | TLMSID= WSPOW08E1, CMDS= 5, WORDS= 3, CCDS= 5, FEPS= 4
`

func TestReadBackstop(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "CR190_0704.backstop", sampleBackstop)

	cmds, err := ReadBackstop(path, "JUL0824A")
	if err != nil {
		t.Fatalf("ReadBackstop: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}
	if cmds[0].Mnemonic != "MP_OBSID" || cmds[0].Params["ID"] != "28601" {
		t.Fatalf("first command = %+v", cmds[0])
	}
	if cmds[1].Params["POS"] != "75624" {
		t.Fatalf("SIMTRANS POS = %q", cmds[1].Params["POS"])
	}
	if cmds[2].TLMSID() != "WSPOW08E1" {
		t.Fatalf("TLMSID = %q", cmds[2].TLMSID())
	}
	for i, c := range cmds {
		if c.TimelineID != "JUL0824A" {
			t.Fatalf("command %d timeline = %q", i, c.TimelineID)
		}
		if c.Seq != i+1 {
			t.Fatalf("command %d seq = %d", i, c.Seq)
		}
	}
	if cmds[0].Time >= cmds[1].Time {
		t.Fatal("command times not increasing")
	}
}

func TestReadBackstopMalformed(t *testing.T) {
	dir := t.TempDir()

	for name, content := range map[string]string{
		"fields.backstop": "2024:190:00:00:00.000 | only three | fields\n",
		"date.backstop":   "not-a-date | 1 0 | SIMTRANS | POS= 1\n",
		"empty.backstop":  "\n\n",
	} {
		path := writeFile(t, dir, name, content)
		if _, err := ReadBackstop(path, "X"); !errors.Is(err, ErrMalformedBackstop) {
			t.Fatalf("%s: err = %v, want ErrMalformedBackstop", name, err)
		}
	}
}

func TestFileLoadSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "CR190_0704.backstop", sampleBackstop)

	load, err := FileLoadSource{}.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if load.Name != "CR190_0704" {
		t.Fatalf("name = %q", load.Name)
	}
	if load.Dir != dir {
		t.Fatalf("dir = %q, want %q", load.Dir, dir)
	}
	if load.TStart != load.Commands[0].Time || load.TStop != load.Commands[2].Time {
		t.Fatalf("span [%v, %v] does not match commands", load.TStart, load.TStop)
	}
}

func TestFileLoadSourceVehicleOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "VR190_0704.backstop", sampleBackstop)

	cmds, err := FileLoadSource{}.VehicleOnly(dir)
	if err != nil {
		t.Fatalf("VehicleOnly: %v", err)
	}
	for i, c := range cmds {
		if !c.NonLoad() {
			t.Fatalf("vehicle command %d carries timeline %q", i, c.TimelineID)
		}
	}
}

func TestFileLoadSourceContinuity(t *testing.T) {
	parent := t.TempDir()
	prev := filepath.Join(parent, "prev")
	if err := os.Mkdir(prev, 0o755); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(parent, "cur")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		content  string
		wantKind model.LoadKind
		wantStop bool
		wantErr  error
	}{
		{
			name:     "normal",
			content:  prev + "\nNORMAL\n",
			wantKind: model.LoadNormal,
		},
		{
			name:     "too",
			content:  prev + "\nTOO\n",
			wantKind: model.LoadTOO,
		},
		{
			name:     "stop with time",
			content:  prev + "\nSTOP 2024:189:12:00:00.000\n",
			wantKind: model.LoadStop,
			wantStop: true,
		},
		{
			name:     "scs-107 with time",
			content:  prev + "\nSCS-107 2024:189:12:00:00.000\n",
			wantKind: model.LoadShutdown,
			wantStop: true,
		},
		{
			name:    "stop without time",
			content: prev + "\nSTOP\n",
			wantErr: ErrMalformedContinuity,
		},
		{
			name:    "unknown type",
			content: prev + "\nWEIRD\n",
			wantErr: ErrMalformedContinuity,
		},
		{
			name:    "single line",
			content: prev + "\n",
			wantErr: ErrMalformedContinuity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writeFile(t, dir, "CUR-Continuity.txt", tc.content)

			info, err := FileLoadSource{}.Continuity(dir)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Continuity: %v", err)
			}
			if info.Type.Kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v", info.Type.Kind, tc.wantKind)
			}
			if tc.wantStop && info.Type.StopTime == 0 {
				t.Fatal("stop time not parsed")
			}
			if info.Path != prev {
				t.Fatalf("path = %q, want %q", info.Path, prev)
			}
		})
	}
}

func TestFileLoadSourceContinuityRelativePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "CUR-Continuity.txt", "../prev/ofls\nNORMAL\n")

	info, err := FileLoadSource{}.Continuity(dir)
	if err != nil {
		t.Fatalf("Continuity: %v", err)
	}
	want := filepath.Join(dir, "../prev/ofls")
	if info.Path != filepath.Clean(want) && info.Path != want {
		t.Fatalf("path = %q, want %q", info.Path, want)
	}
}
