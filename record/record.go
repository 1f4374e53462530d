// Package record writes the audio passing through the engine to .wav files.
//
// Tap sits between a source and the output device and, while armed, mirrors
// every buffer to a file. Recorder captures segments of limited length, for
// turning synth takes into samples, and stops by itself once the length is
// reached.
package record

import (
	"errors"
	"log/slog"
	"time"
)

type (
	// Metadata describes a finished recording.
	Metadata struct {
		Name       string        `yaml:"name"` // file name without directory
		Path       string        `yaml:"path"`
		Duration   time.Duration `yaml:"duration"`
		SampleRate int           `yaml:"sampleRate"`
		Channels   int           `yaml:"channels"`
		BitDepth   int           `yaml:"bitDepth"`
	}

	// Option configures a Tap or a Recorder.
	Option func(*options)

	options struct {
		logger     *slog.Logger
		onError    func(error)
		onComplete func(Metadata)
		now        func() time.Time
	}
)

var (
	ErrNotRecording    = errors.New("not recording")
	ErrRecordingFailed = errors.New("recording failed")
)

// WithLogger sets the logger for session start, stop and failure.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithErrorHandler sets a function called when a write fails and the
// session is ended. It is called from the goroutine rendering audio and must
// not block.
func WithErrorHandler(f func(error)) Option {
	return func(o *options) { o.onError = f }
}

// WithCompletion sets a function called with the metadata of a segment that
// a Recorder stopped because it reached its maximum length. It is called
// from the goroutine writing the audio, after the file has been closed.
func WithCompletion(f func(Metadata)) Option {
	return func(o *options) { o.onComplete = f }
}

// WithClock replaces time.Now for naming recordings.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, f := range opts {
		f(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
