package synth

import (
	"sync"

	"github.com/stepbox/stepbox"
	"github.com/viterin/vek/vek32"
)

type (
	// Engine is a polyphonic subtractive synthesizer rendering mono audio.
	// Every note on creates a new voice; voices are recycled once their
	// release has finished. Note on / off from the control side and
	// ReadAudio from the audio device are serialized with a single mutex,
	// held only while touching the voice list.
	Engine struct {
		mu           sync.Mutex
		sampleRate   float64
		waveform     Waveform
		adsr         ADSR
		masterVolume float32
		voices       []*voice       // sounding voices, in trigger order
		byNote       map[int]*voice // the most recent held voice of each note
		free         []*voice       // finished voices ready for reuse
	}

	// stereo renders the engine into both channels of an interleaved
	// buffer.
	stereo struct {
		e   *Engine
		tmp []float32
	}
)

// DefaultMasterVolume is the master volume of a new Engine.
const DefaultMasterVolume = 0.5

// NewEngine returns an engine with the default sine waveform and envelope.
// sampleRate <= 0 selects stepbox.SampleRate.
func NewEngine(sampleRate int) *Engine {
	if sampleRate <= 0 {
		sampleRate = stepbox.SampleRate
	}
	return &Engine{
		sampleRate:   float64(sampleRate),
		adsr:         DefaultADSR,
		masterVolume: DefaultMasterVolume,
		byNote:       make(map[int]*voice),
	}
}

// NoteOn starts a new voice for a MIDI note. velocity is clamped to 0..1.
// If the note is already held, the older voice keeps ringing (and is no
// longer reachable by NoteOff); it ends when its own envelope ends.
func (e *Engine) NoteOn(note int, velocity float32) {
	freq := stepbox.NoteFrequency(note)
	e.mu.Lock()
	defer e.mu.Unlock()
	var v *voice
	if n := len(e.free); n > 0 {
		v = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		v = new(voice)
	}
	v.reset(note, freq, e.sampleRate, e.waveform, NewEnvelope(e.adsr, e.sampleRate), float64(min(max(velocity, 0), 1)))
	e.voices = append(e.voices, v)
	e.byNote[note] = v
}

// NoteOnName is NoteOn for a note given in scientific pitch notation, e.g.
// "C#4". Unknown names return an error wrapping stepbox.ErrUnknownNote and
// start nothing.
func (e *Engine) NoteOnName(name string, velocity float32) error {
	note, err := stepbox.ParseNote(name)
	if err != nil {
		return err
	}
	e.NoteOn(note, velocity)
	return nil
}

// NoteOff releases the held voice of the note. Releasing a note that is not
// held is a no-op.
func (e *Engine) NoteOff(note int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.byNote[note]; ok {
		v.release()
		delete(e.byNote, note)
	}
}

// NoteOffName is NoteOff for a note given in scientific pitch notation.
func (e *Engine) NoteOffName(name string) error {
	note, err := stepbox.ParseNote(name)
	if err != nil {
		return err
	}
	e.NoteOff(note)
	return nil
}

// SetWaveform sets the oscillator of voices started from now on.
func (e *Engine) SetWaveform(w Waveform) {
	e.mu.Lock()
	e.waveform = w
	e.mu.Unlock()
}

// Waveform returns the current oscillator shape.
func (e *Engine) Waveform() Waveform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waveform
}

// SetADSR sets the envelope of voices started from now on.
func (e *Engine) SetADSR(a ADSR) {
	e.mu.Lock()
	e.adsr = a
	e.mu.Unlock()
}

// ADSR returns the current envelope settings.
func (e *Engine) ADSR() ADSR {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adsr
}

// SetMasterVolume sets the output gain, clamped to 0..1. It applies
// immediately, also to sounding voices.
func (e *Engine) SetMasterVolume(v float32) {
	e.mu.Lock()
	e.masterVolume = min(max(v, 0), 1)
	e.mu.Unlock()
}

// MasterVolume returns the output gain.
func (e *Engine) MasterVolume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVolume
}

// ActiveVoices returns the number of voices still sounding.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// ReadAudio renders mono audio into the whole buffer: the sum of all voices,
// scaled by the master volume and hard clipped to [-1, 1]. Voices that
// finished during the buffer are recycled afterwards. It always fills the
// buffer and never fails.
func (e *Engine) ReadAudio(buffer []float32) (int, error) {
	clear(buffer)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.voices) == 0 {
		return len(buffer), nil
	}
	for _, v := range e.voices {
		v.render(buffer)
	}
	vek32.MulNumber_Inplace(buffer, e.masterVolume)
	for i, s := range buffer {
		if s > 1 {
			buffer[i] = 1
		} else if s < -1 {
			buffer[i] = -1
		}
	}
	live := e.voices[:0]
	for _, v := range e.voices {
		if v.finished {
			if e.byNote[v.note] == v {
				delete(e.byNote, v.note)
			}
			e.free = append(e.free, v)
			continue
		}
		live = append(live, v)
	}
	clear(e.voices[len(live):])
	e.voices = live
	return len(buffer), nil
}

// Stereo returns an AudioSource rendering the engine into interleaved
// stereo, the same signal on both channels, so that the engine can be added
// to the sample mixer.
func (e *Engine) Stereo() stepbox.AudioSource {
	return &stereo{e: e}
}

func (s *stereo) ReadAudio(buffer []float32) (int, error) {
	frames := len(buffer) / 2
	if cap(s.tmp) < frames {
		s.tmp = make([]float32, frames)
	}
	mono := s.tmp[:frames]
	if _, err := s.e.ReadAudio(mono); err != nil {
		return 0, err
	}
	for i, v := range mono {
		buffer[2*i] = v
		buffer[2*i+1] = v
	}
	if len(buffer)%2 == 1 {
		buffer[len(buffer)-1] = 0
	}
	return len(buffer), nil
}
