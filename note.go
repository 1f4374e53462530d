package stepbox

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownNote is returned when a note name cannot be resolved to a MIDI
// note number.
var ErrUnknownNote = errors.New("unknown note name")

var noteOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteFrequency returns the equal-tempered frequency of a MIDI note, A4 (69)
// being 440 Hz. There are no range checks: notes below 0 or above 127 are
// computed with the same formula.
func NoteFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// ParseNote resolves scientific pitch notation ("C4", "F#3", "Bb5") into a
// MIDI note number, C4 being 60. Octaves -1 to 9 are accepted, as long as
// the resulting note stays within 0..127.
func ParseNote(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	offset, ok := noteOffsets[s[0]&^0x20] // upper case
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	s = s[1:]
	switch s[0] {
	case '#':
		offset++
		s = s[1:]
	case 'b':
		offset--
		s = s[1:]
	}
	octave, err := strconv.Atoi(s)
	if err != nil || octave < -1 || octave > 9 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	note := (octave+1)*12 + offset
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	return note, nil
}

// NoteName renders a MIDI note number using sharps, e.g. 61 is "C#4".
func NoteName(note int) string {
	octave := note/12 - 1
	index := note % 12
	if index < 0 {
		index += 12
		octave--
	}
	return sharpNames[index] + strconv.Itoa(octave)
}
