// Package mixer sums any number of audio sources into one interleaved
// stream.
package mixer

import (
	"sync"

	"github.com/stepbox/stepbox"
	"github.com/viterin/vek/vek32"
)

type (
	// Mixer is an AudioSource summing its inputs. Inputs are added from any
	// goroutine and read from the audio goroutine; a single mutex guards the
	// input list, held for the duration of one ReadAudio.
	//
	// Every input is asked for the whole buffer. An input that returns less
	// contributes silence for the rest of the buffer and is then removed, as
	// is an input implementing stepbox.Finisher that reports Done or an
	// input returning an error. Removal happens after the buffer has been
	// mixed, so no audio that was produced is lost.
	Mixer struct {
		mu       sync.Mutex
		channels int
		inputs   []stepbox.AudioSource
		tmp      []float32
		clip     bool
	}

	// Option configures a Mixer.
	Option func(*Mixer)
)

// WithClip makes the mixer hard clip its output to [-1, 1]. Without it, the
// sum is passed on as is and overs are left for the output device to deal
// with.
func WithClip(clip bool) Option {
	return func(m *Mixer) { m.clip = clip }
}

// New returns an empty mixer for interleaved audio of the given channel
// count.
func New(channels int, opts ...Option) *Mixer {
	m := &Mixer{channels: max(channels, 1)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Channels returns the channel count the mixer was created with.
func (m *Mixer) Channels() int {
	return m.channels
}

// Add starts mixing a source from the next ReadAudio on.
func (m *Mixer) Add(source stepbox.AudioSource) {
	m.mu.Lock()
	m.inputs = append(m.inputs, source)
	m.mu.Unlock()
}

// Len returns the number of inputs currently mixed.
func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Clear removes all inputs.
func (m *Mixer) Clear() {
	m.mu.Lock()
	clear(m.inputs)
	m.inputs = m.inputs[:0]
	m.mu.Unlock()
}

// ReadAudio mixes all inputs into the buffer. It always fills the whole
// buffer, with silence if there are no inputs.
func (m *Mixer) ReadAudio(buffer []float32) (int, error) {
	clear(buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return len(buffer), nil
	}
	if cap(m.tmp) < len(buffer) {
		m.tmp = make([]float32, len(buffer))
	}
	tmp := m.tmp[:len(buffer)]
	// inputs write whole frames only, a trailing partial frame stays silent
	full := len(buffer) - len(buffer)%m.channels
	live := m.inputs[:0]
	for _, in := range m.inputs {
		n, err := in.ReadAudio(tmp)
		n = min(max(n, 0), len(tmp))
		if n > 0 {
			vek32.Add_Inplace(buffer[:n], tmp[:n])
		}
		if err != nil || n < full {
			continue
		}
		if f, ok := in.(stepbox.Finisher); ok && f.Done() {
			continue
		}
		live = append(live, in)
	}
	clear(m.inputs[len(live):])
	m.inputs = live
	if m.clip {
		for i, s := range buffer {
			if s > 1 {
				buffer[i] = 1
			} else if s < -1 {
				buffer[i] = -1
			}
		}
	}
	return len(buffer), nil
}
