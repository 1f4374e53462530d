package synth

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects the oscillator shape of the voices.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Saw
	Triangle
)

const twoPi = 2 * math.Pi

var waveformNames = [...]string{"sine", "square", "saw", "triangle"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveformNames[w]
}

// ParseWaveform is the inverse of Waveform.String, ignoring case.
func ParseWaveform(s string) (Waveform, error) {
	for i, n := range waveformNames {
		if strings.EqualFold(s, n) {
			return Waveform(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown waveform %q", s)
}

// Oscillate returns the value of the waveform at phase, which is assumed to
// be in [0, 2*pi). The result is in [-1, 1].
func Oscillate(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		s := math.Sin(phase)
		if s > 0 {
			return 1
		} else if s < 0 {
			return -1
		}
		return 0
	case Saw:
		return 2*(phase/twoPi) - 1
	case Triangle:
		return 2*math.Abs(2*(phase/twoPi)-1) - 1
	}
	return math.Sin(phase)
}

// advancePhase adds inc to phase, wrapping the result into [0, 2*pi).
func advancePhase(phase, inc float64) float64 {
	phase += inc
	if phase >= twoPi || phase < 0 {
		phase = math.Mod(phase, twoPi)
		if phase < 0 {
			phase += twoPi
		}
	}
	return phase
}
