package stepbox

import (
	"fmt"
	"io"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	midiTicksPerQuarter = 960
	midiTicksPerStep    = midiTicksPerQuarter / 4 // steps are 16th notes
	midiDrumChannel     = 9                       // channel 10 in 1-based numbering
)

// General MIDI percussion keys matched against track names, first match
// wins.
var drumKeys = []struct {
	word string
	key  uint8
}{
	{"kick", 36}, {"bd", 36}, {"bass", 36},
	{"rim", 37},
	{"snare", 38}, {"sd", 38},
	{"clap", 39},
	{"open", 46}, {"oh", 46},
	{"hat", 42}, {"hh", 42},
	{"tom", 45},
	{"crash", 49},
	{"ride", 51},
	{"cow", 56},
}

// DrumKey guesses the General MIDI percussion key for a track name. Unknown
// names are assigned keys from 60 upwards by track index.
func DrumKey(name string, index int) uint8 {
	lower := strings.ToLower(name)
	for _, d := range drumKeys {
		if strings.Contains(lower, d.word) {
			return d.key
		}
	}
	return uint8(min(60+index, 127))
}

// WriteMIDI exports the step grid as a standard MIDI file: a tempo track
// and one track per pattern track on the drum channel, each active step
// being a 16th note. Swing and timing offsets are not exported. keys gives
// the MIDI key of each track; tracks beyond len(keys) use DrumKey.
func (p *Pattern) WriteMIDI(w io.Writer, keys []uint8) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(midiTicksPerQuarter)
	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(p.BPM))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return fmt.Errorf("could not add tempo track: %w", err)
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		key := DrumKey(t.Name, i)
		if i < len(keys) {
			key = keys[i]
		}
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(t.Name))
		var delta uint32
		for step := range t.Steps {
			if !t.Steps[step] {
				delta += midiTicksPerStep
				continue
			}
			velocity := uint8(clamp(int(t.Velocities[step]*127+0.5), 1, 127))
			track.Add(delta, midi.NoteOn(midiDrumChannel, key, velocity))
			track.Add(midiTicksPerStep, midi.NoteOff(midiDrumChannel, key))
			delta = 0
		}
		track.Close(delta)
		if err := s.Add(track); err != nil {
			return fmt.Errorf("could not add track %d: %w", i, err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("could not write midi file: %w", err)
	}
	return nil
}
