package stepbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// Pattern is a snapshot of the whole step sequencer state: tempo, swing
	// and the tracks. This is what gets stored to the banks and saved to /
	// loaded from disk. Swing is stored in the range 0..1.
	Pattern struct {
		BPM    float64 `json:"bpm" yaml:"bpm"`
		Swing  float64 `json:"swing" yaml:"swing"`
		Tracks []Track `json:"tracks" yaml:"tracks"`
	}

	// Track is a single drum voice of a pattern: the sample it triggers, its
	// mix settings and one row of steps. Steps, Velocities and Offsets are
	// parallel slices, always of equal length. Offsets are per-step timing
	// offsets in milliseconds, added by humanization; a nil Offsets slice is
	// accepted when reading older snapshots and treated as all zeros.
	Track struct {
		Name       string    `json:"name" yaml:"name"`
		SamplePath string    `json:"samplePath" yaml:"samplePath"`
		Volume     float32   `json:"volume" yaml:"volume"` // 0..1
		Pan        float32   `json:"pan" yaml:"pan"`       // -1 (left) .. 1 (right)
		Steps      []bool    `json:"steps" yaml:"steps,flow"`
		Velocities []float32 `json:"velocities" yaml:"velocities,flow"`
		Offsets    []float64 `json:"offsets,omitempty" yaml:"offsets,flow,omitempty"`
	}
)

// DefaultStepCount is the number of steps in a freshly created track.
const DefaultStepCount = 16

var (
	ErrInvalidStepCount = errors.New("step count must be greater than 0")
	ErrInvalidPattern   = errors.New("invalid pattern")
)

// NewTrack creates a track with all steps inactive and all velocities at
// full.
func NewTrack(name, samplePath string, steps int) Track {
	t := Track{Name: name, SamplePath: samplePath, Volume: 1}
	t.Steps = make([]bool, steps)
	t.Velocities = make([]float32, steps)
	for i := range t.Velocities {
		t.Velocities[i] = 1
	}
	t.Offsets = make([]float64, steps)
	return t
}

// Len returns the number of steps in the track.
func (t *Track) Len() int {
	return len(t.Steps)
}

// Offset returns the timing offset of the step in milliseconds, or 0 if the
// track carries no offsets.
func (t *Track) Offset(step int) float64 {
	if step < 0 || step >= len(t.Offsets) {
		return 0
	}
	return t.Offsets[step]
}

// Active tells if the step exists and is set.
func (t *Track) Active(step int) bool {
	return step >= 0 && step < len(t.Steps) && t.Steps[step]
}

// Resize changes the number of steps in the track. The existing steps that
// fit are kept as they are; new steps are inactive, with velocity 1 and no
// timing offset.
func (t *Track) Resize(count int) error {
	if count <= 0 {
		return ErrInvalidStepCount
	}
	if count == len(t.Steps) && len(t.Velocities) == count && len(t.Offsets) == count {
		return nil
	}
	steps := make([]bool, count)
	velocities := make([]float32, count)
	offsets := make([]float64, count)
	copy(steps, t.Steps)
	copy(offsets, t.Offsets)
	n := copy(velocities, t.Velocities)
	for i := n; i < count; i++ {
		velocities[i] = 1
	}
	t.Steps, t.Velocities, t.Offsets = steps, velocities, offsets
	return nil
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	ret := *t
	ret.Steps = append([]bool(nil), t.Steps...)
	ret.Velocities = append([]float32(nil), t.Velocities...)
	ret.Offsets = append([]float64(nil), t.Offsets...)
	return ret
}

// Copy makes a deep copy of a Pattern.
func (p *Pattern) Copy() Pattern {
	tracks := make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		tracks[i] = p.Tracks[i].Copy()
	}
	return Pattern{BPM: p.BPM, Swing: p.Swing, Tracks: tracks}
}

// StepCount returns the length of the longest track.
func (p *Pattern) StepCount() int {
	ret := 0
	for i := range p.Tracks {
		ret = max(ret, p.Tracks[i].Len())
	}
	return ret
}

// Validate checks that the pattern can be played: BPM > 0, swing within
// 0..1 and the per-step slices of every track of equal length.
func (p *Pattern) Validate() error {
	if !(p.BPM > 0) || math.IsInf(p.BPM, 0) {
		return fmt.Errorf("%w: BPM should be > 0, got %v", ErrInvalidPattern, p.BPM)
	}
	if !(p.Swing >= 0 && p.Swing <= 1) {
		return fmt.Errorf("%w: swing should be within 0..1, got %v", ErrInvalidPattern, p.Swing)
	}
	for i, t := range p.Tracks {
		if len(t.Steps) != len(t.Velocities) {
			return fmt.Errorf("%w: track %d (%s) has %d steps but %d velocities", ErrInvalidPattern, i, t.Name, len(t.Steps), len(t.Velocities))
		}
		if t.Offsets != nil && len(t.Offsets) != len(t.Steps) {
			return fmt.Errorf("%w: track %d (%s) has %d steps but %d offsets", ErrInvalidPattern, i, t.Name, len(t.Steps), len(t.Offsets))
		}
	}
	return nil
}

// normalize fills in the optional fields of snapshots written without them.
func (p *Pattern) normalize() {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Offsets == nil {
			t.Offsets = make([]float64, len(t.Steps))
		}
	}
}

// ReadPattern reads a pattern snapshot, trying to parse it both as json and
// yaml.
func ReadPattern(r io.Reader) (Pattern, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Pattern{}, fmt.Errorf("could not read pattern: %w", err)
	}
	var pattern Pattern
	if errJSON := json.Unmarshal(b, &pattern); errJSON != nil {
		pattern = Pattern{}
		if errYaml := yaml.Unmarshal(b, &pattern); errYaml != nil {
			return Pattern{}, fmt.Errorf("the pattern could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := pattern.Validate(); err != nil {
		return Pattern{}, err
	}
	pattern.normalize()
	return pattern, nil
}

// Write marshals the pattern to w. If the name has the extension ".json" or
// ".beat", the pattern is marshaled as json; otherwise, it's marshaled as
// yaml.
func (p *Pattern) Write(w io.Writer, name string) error {
	var contents []byte
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".beat":
		contents, err = json.MarshalIndent(p, "", "  ")
	default:
		contents, err = yaml.Marshal(p)
	}
	if err != nil {
		return fmt.Errorf("could not marshal pattern: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write pattern: %w", err)
	}
	return nil
}
