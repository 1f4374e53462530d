package synth

// ADSR holds the envelope settings of a voice. The times are in seconds,
// Sustain is a level in 0..1.
type ADSR struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

// DefaultADSR is the envelope a new Engine starts with.
var DefaultADSR = ADSR{Attack: 0.01, Decay: 0.2, Sustain: 0.7, Release: 0.3}

const (
	envStateAttack = iota
	envStateDecay
	envStateSustain
	envStateRelease
	envStateOff
)

// stageSamples converts a stage duration to samples; never less than one
// sample so that zero length stages don't divide by zero.
func stageSamples(seconds, sampleRate float64) int {
	return max(1, int(seconds*sampleRate))
}

// Envelope is an ADSR converted to sample counts at a given sample rate.
type Envelope struct {
	attack, decay, release int
	sustain                float64
}

// NewEnvelope converts the settings to sample counts. The sustain level is
// clamped to 0..1.
func NewEnvelope(a ADSR, sampleRate float64) Envelope {
	return Envelope{
		attack:  stageSamples(a.Attack, sampleRate),
		decay:   stageSamples(a.Decay, sampleRate),
		release: stageSamples(a.Release, sampleRate),
		sustain: min(max(a.Sustain, 0), 1),
	}
}

// State returns the stage the envelope is in at the given position.
// releaseStart is the position at which the note was released, or negative
// if it has not been released.
func (e Envelope) State(pos, releaseStart int) int {
	switch {
	case releaseStart >= 0 && pos-releaseStart >= e.release:
		return envStateOff
	case releaseStart >= 0:
		return envStateRelease
	case pos < e.attack:
		return envStateAttack
	case pos < e.attack+e.decay:
		return envStateDecay
	}
	return envStateSustain
}

// Amplitude returns the envelope level at sample position pos, counted from
// note on. The release ramp always starts from the sustain level, measured
// from releaseStart.
func (e Envelope) Amplitude(pos, releaseStart int) float64 {
	switch e.State(pos, releaseStart) {
	case envStateAttack:
		return float64(pos) / float64(e.attack)
	case envStateDecay:
		d := float64(pos-e.attack) / float64(e.decay)
		return 1 + d*(e.sustain-1)
	case envStateSustain:
		return e.sustain
	case envStateRelease:
		r := float64(pos-releaseStart) / float64(e.release)
		return e.sustain * (1 - r)
	}
	return 0
}
