package stepbox

import "io"

// The engine runs at one fixed rate. Sample files of any other rate are
// converted once, when they are loaded into the cache.
const (
	SampleRate    = 44100
	MixChannels   = 2 // the sample mixer renders interleaved stereo
	SynthChannels = 1 // the synthesizer renders mono
)

type (
	// AudioSource is anything that can fill an interleaved float32 buffer:
	// the synth engine, a playback cursor, the mixer or the recording tap.
	// ReadAudio is called from the audio device callback, so implementations
	// must not block on anything but short-held locks. n is the number of
	// float32 values written; a source that has nothing more to give returns
	// 0.
	AudioSource interface {
		ReadAudio(buffer []float32) (n int, err error)
	}

	// Finisher is implemented by sources that can tell they have played out
	// and can be retired from a mix.
	Finisher interface {
		Done() bool
	}

	// AudioContext is an audio output device. Play starts pulling audio from
	// the source until the returned io.Closer is closed.
	AudioContext interface {
		Play(source AudioSource) (io.Closer, error)
		Close() error
	}

	// AudioSourceFunc adapts an ordinary function into an AudioSource.
	AudioSourceFunc func(buffer []float32) (n int, err error)
)

func (f AudioSourceFunc) ReadAudio(buffer []float32) (int, error) { return f(buffer) }

// Silence is an AudioSource that never ends and always renders zeros.
var Silence AudioSource = AudioSourceFunc(func(buffer []float32) (int, error) {
	clear(buffer)
	return len(buffer), nil
})

// Render fills the whole buffer from the source, padding with zeros once the
// source runs dry. It returns the number of values the source actually
// produced.
func Render(source AudioSource, buffer []float32) (int, error) {
	total := 0
	for total < len(buffer) {
		n, err := source.ReadAudio(buffer[total:])
		total += n
		if err != nil {
			clear(buffer[total:])
			return total, err
		}
		if n == 0 {
			break
		}
	}
	clear(buffer[total:])
	return total, nil
}

func clamp[T ~float32 | ~float64 | ~int](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
