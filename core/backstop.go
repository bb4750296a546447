package core

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

var (
	// ErrAmbiguousSource is returned when a load-product glob matches zero
	// or more than one file.
	ErrAmbiguousSource = errors.New("ambiguous load source")
	// ErrMalformedBackstop is returned for unparseable backstop lines.
	ErrMalformedBackstop = errors.New("malformed backstop file")
	// ErrMalformedContinuity is returned for unparseable continuity metadata.
	ErrMalformedContinuity = errors.New("malformed continuity file")
)

const (
	reviewPattern      = "CR*.backstop"
	vehicleOnlyPattern = "VR*.backstop"
	continuityPattern  = "*-Continuity.txt"
)

// GlobOne returns the single file matching pattern inside dir. Zero or
// multiple matches are an ErrAmbiguousSource: the product directory was
// mis-assembled and a human has to fix it before re-running.
func GlobOne(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("glob %s in %s: %w", pattern, dir, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no files matching %s in %s", ErrAmbiguousSource, pattern, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %d files matching %s in %s", ErrAmbiguousSource, len(matches), pattern, dir)
	}
}

// ReadBackstop parses a backstop product file into commands. Each line has
// four pipe-delimited fields:
//
//	2024:123:01:02:03.456 | 1234567 0 | SIMTRANS | POS= 75624, SCS= 131, STEP= 23
//
// Every command is taken; filtering for relevance happens downstream. The
// timeline parameter becomes the TimelineID of each command.
func ReadBackstop(path, timeline string) ([]model.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backstop %s: %w", path, err)
	}
	defer f.Close()

	var cmds []model.Command
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: %s:%d: want 4 fields, got %d",
				ErrMalformedBackstop, path, lineno, len(fields))
		}
		date := strings.TrimSpace(fields[0])
		t, err := met.Secs(date)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrMalformedBackstop, path, lineno, err)
		}
		cmds = append(cmds, model.Command{
			Time:       t,
			Date:       date,
			Mnemonic:   strings.TrimSpace(fields[2]),
			Params:     parseParams(fields[3]),
			TimelineID: timeline,
			Seq:        lineno,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read backstop %s: %w", path, err)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("%w: %s: no commands", ErrMalformedBackstop, path)
	}
	return cmds, nil
}

// parseParams splits "TLMSID= WSPOW08E1, CMDS= 5, SCS= 131" into a map.
// Values keep no surrounding whitespace; malformed fragments are skipped
// rather than fatal, matching how loosely the parameter field is specified.
func parseParams(s string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(kv[1])
	}
	return params
}

// ContinuityInfo is the metadata chaining a load to its predecessor.
type ContinuityInfo struct {
	// Path is the predecessor's product directory.
	Path string
	// Type classifies the transition from the predecessor to this load.
	Type model.LoadType
}

// FileLoadSource reads load products from the filesystem. It implements
// LoadSource for the continuity resolver.
type FileLoadSource struct{}

// Load reads the single review backstop file inside dir.
func (FileLoadSource) Load(dir string) (*model.Load, error) {
	path := dir
	if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
		path, err = GlobOne(dir, reviewPattern)
		if err != nil {
			return nil, err
		}
	} else {
		dir = filepath.Dir(path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	cmds, err := ReadBackstop(path, name)
	if err != nil {
		return nil, err
	}
	return &model.Load{
		Name:     name,
		Dir:      dir,
		Commands: cmds,
		TStart:   cmds[0].Time,
		TStop:    cmds[len(cmds)-1].Time,
	}, nil
}

// VehicleOnly reads the vehicle-only backstop file inside dir. Vehicle-only
// commands carry no timeline: they execute autonomously during safing.
func (FileLoadSource) VehicleOnly(dir string) ([]model.Command, error) {
	path, err := GlobOne(dir, vehicleOnlyPattern)
	if err != nil {
		return nil, err
	}
	return ReadBackstop(path, "")
}

// Continuity reads the continuity metadata file inside dir. The file has a
// predecessor path on the first line and a type token, optionally followed
// by a stop/shutdown date, on the second:
//
//	/loads/2024/JUN2424A/ofls
//	SCS-107 2024:178:03:14:17.000
func (FileLoadSource) Continuity(dir string) (*ContinuityInfo, error) {
	path, err := GlobOne(dir, continuityPattern)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read continuity %s: %w", path, err)
	}

	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: %s: want path and type lines", ErrMalformedContinuity, path)
	}

	tokens := strings.Fields(lines[1])
	kind, err := model.ParseLoadKind(tokens[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedContinuity, path, err)
	}

	lt := model.LoadType{Kind: kind}
	switch kind {
	case model.LoadStop, model.LoadShutdown:
		if len(tokens) < 2 {
			return nil, fmt.Errorf("%w: %s: %s load without stop time",
				ErrMalformedContinuity, path, kind)
		}
		stop, err := met.Secs(tokens[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedContinuity, path, err)
		}
		lt.StopTime = stop
	default:
		// Extra tokens on Normal/TOO lines are tolerated; older products
		// sometimes repeated the load week there.
	}

	predecessor := lines[0]
	if !filepath.IsAbs(predecessor) {
		predecessor = filepath.Join(dir, predecessor)
	}
	return &ContinuityInfo{Path: predecessor, Type: lt}, nil
}
