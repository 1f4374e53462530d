package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stepbox/stepbox"
)

type (
	// Recorder records segments of at most maxSeconds into new files in its
	// directory, named SynthSample_<date>_<time>.wav. When a segment reaches
	// the maximum length, the recorder stops itself and reports the segment
	// to the completion callback. Unlike Tap, a Recorder is not in the audio
	// path: something has to hand it the buffers, see RecorderTap.
	Recorder struct {
		dir        string
		sampleRate int
		channels   int
		maxSeconds float64
		opts       options

		mu      sync.Mutex
		file    *os.File
		writer  *stepbox.WavWriter
		path    string
		samples int64
	}

	// RecorderTap passes a source through and hands every rendered buffer to
	// a Recorder, which keeps whatever arrives while it is recording.
	RecorderTap struct {
		source   stepbox.AudioSource
		recorder *Recorder
	}
)

const recordingBitDepth = 32

// NewRecorder creates the directory if needed and returns an idle recorder.
func NewRecorder(dir string, sampleRate, channels int, maxSeconds float64, opts ...Option) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create recording directory: %w", err)
	}
	return &Recorder{
		dir:        dir,
		sampleRate: sampleRate,
		channels:   max(channels, 1),
		maxSeconds: maxSeconds,
		opts:       newOptions(opts),
	}, nil
}

// Start opens a new file and starts recording. Starting while already
// recording does nothing.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return nil
	}
	name := "SynthSample_" + r.opts.now().Format("20060102_150405") + ".wav"
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create recording: %w", err)
	}
	w, err := stepbox.NewWavWriter(f, r.sampleRate, r.channels)
	if err != nil {
		f.Close()
		return fmt.Errorf("could not start recording: %w", err)
	}
	r.file, r.writer, r.path, r.samples = f, w, path, 0
	r.opts.logger.Info("sample recording started", "path", path, "max", r.maxSeconds)
	return nil
}

// Recording tells if a segment is being recorded.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Write appends interleaved audio to the segment. It returns ErrNotRecording
// when idle. If the segment reaches the maximum length, it is finished and
// the completion callback is called before Write returns. A failed write
// ends the segment and returns an error wrapping ErrRecordingFailed.
func (r *Recorder) Write(buffer []float32) error {
	if len(buffer) == 0 {
		return nil
	}
	r.mu.Lock()
	if r.file == nil {
		r.mu.Unlock()
		return ErrNotRecording
	}
	if err := r.writer.WriteAudio(buffer); err != nil {
		r.stopLocked()
		r.mu.Unlock()
		err = fmt.Errorf("%w: %v", ErrRecordingFailed, err)
		r.opts.logger.Error("sample recording stopped", "err", err)
		return err
	}
	r.samples += int64(len(buffer))
	var done *Metadata
	if r.seconds() >= r.maxSeconds {
		m := r.stopLocked()
		done = &m
	}
	r.mu.Unlock()
	if done != nil && r.opts.onComplete != nil {
		r.opts.onComplete(*done)
	}
	return nil
}

// Stop finishes the segment and returns its metadata; ok is false if
// nothing was being recorded.
func (r *Recorder) Stop() (m Metadata, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return Metadata{}, false
	}
	return r.stopLocked(), true
}

func (r *Recorder) seconds() float64 {
	return float64(r.samples) / float64(r.sampleRate*r.channels)
}

func (r *Recorder) stopLocked() Metadata {
	err := errors.Join(r.writer.Close(), r.file.Close())
	if err != nil {
		r.opts.logger.Error("could not finish sample recording", "path", r.path, "err", err)
	}
	m := Metadata{
		Name:       filepath.Base(r.path),
		Path:       r.path,
		Duration:   time.Duration(r.seconds() * float64(time.Second)),
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		BitDepth:   recordingBitDepth,
	}
	r.file, r.writer = nil, nil
	r.opts.logger.Info("sample recording stopped", "path", m.Path, "duration", m.Duration)
	return m
}

// NewRecorderTap inserts a recorder after a source.
func NewRecorderTap(source stepbox.AudioSource, recorder *Recorder) *RecorderTap {
	return &RecorderTap{source: source, recorder: recorder}
}

func (t *RecorderTap) ReadAudio(buffer []float32) (int, error) {
	n, err := t.source.ReadAudio(buffer)
	if n > 0 {
		// failures are logged by the recorder and end its segment
		t.recorder.Write(buffer[:n])
	}
	return n, err
}

// Dir returns the directory new segments are written to.
func (r *Recorder) Dir() string {
	return r.dir
}
