package record

import (
	"fmt"
	"os"
	"sync"

	"github.com/stepbox/stepbox"
)

// Tap is an AudioSource that passes its source through unchanged and, while
// recording, appends every rendered buffer to a 32-bit float .wav file.
// Control calls and ReadAudio may come from different goroutines; the file
// is only touched under the tap's mutex, never while the source renders.
type Tap struct {
	source     stepbox.AudioSource
	sampleRate int
	channels   int
	opts       options

	mu     sync.Mutex
	file   *os.File
	writer *stepbox.WavWriter
	path   string
	err    error
}

// NewTap wraps a source producing interleaved audio of the given format.
func NewTap(source stepbox.AudioSource, sampleRate, channels int, opts ...Option) *Tap {
	return &Tap{source: source, sampleRate: sampleRate, channels: channels, opts: newOptions(opts)}
}

// StartRecording opens path for writing and starts mirroring the stream to
// it. A recording already in progress is finished first. Failing to create
// the file is returned and leaves the tap idle.
func (t *Tap) StartRecording(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		if err := t.finishLocked(); err != nil {
			t.opts.logger.Warn("could not finish previous recording", "path", t.path, "err", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create recording: %w", err)
	}
	w, err := stepbox.NewWavWriter(f, t.sampleRate, t.channels)
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("could not start recording: %w", err)
	}
	t.file, t.writer, t.path, t.err = f, w, path, nil
	t.opts.logger.Info("recording started", "path", path)
	return nil
}

// StopRecording flushes and closes the file. Calling it while not recording
// does nothing.
func (t *Tap) StopRecording() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	path, samples := t.path, t.writer.Samples()
	if err := t.finishLocked(); err != nil {
		return err
	}
	t.opts.logger.Info("recording stopped", "path", path, "frames", samples/int64(t.channels))
	return nil
}

// Recording tells if a file is currently being written.
func (t *Tap) Recording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file != nil
}

// Path returns the file of the current or last recording.
func (t *Tap) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// Err returns the error that ended the last recording, if any.
func (t *Tap) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tap) finishLocked() error {
	errW := t.writer.Close()
	errF := t.file.Close()
	t.file, t.writer = nil, nil
	if errW != nil {
		return fmt.Errorf("could not finish recording: %w", errW)
	}
	if errF != nil {
		return fmt.Errorf("could not close recording: %w", errF)
	}
	return nil
}

// ReadAudio renders the source into the buffer and, while recording, writes
// what was rendered. A failed write ends the recording; the audio is passed
// on regardless.
func (t *Tap) ReadAudio(buffer []float32) (int, error) {
	n, err := t.source.ReadAudio(buffer)
	if n <= 0 {
		return n, err
	}
	var failure error
	t.mu.Lock()
	if t.writer != nil {
		if werr := t.writer.WriteAudio(buffer[:n]); werr != nil {
			failure = fmt.Errorf("%w: %s: %v", ErrRecordingFailed, t.path, werr)
			t.err = failure
			t.finishLocked()
		}
	}
	t.mu.Unlock()
	if failure != nil {
		t.opts.logger.Error("recording stopped", "err", failure)
		if t.opts.onError != nil {
			t.opts.onError(failure)
		}
	}
	return n, err
}
