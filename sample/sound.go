// Package sample loads drum samples into memory and plays them back.
//
// A Cache decodes .wav and .mp3 files once, converting them to the engine
// sample rate and channel count, and keeps them for the lifetime of the
// process. Each trigger of a sample gets its own Cursor, which reads the
// shared data with a per-trigger gain and pan.
package sample

import (
	"errors"
	"time"
)

// Sound is decoded audio held in memory: interleaved float32 values at a
// fixed sample rate and channel count. A Sound is immutable once created and
// can be read by any number of cursors concurrently.
type Sound struct {
	data       []float32
	channels   int
	sampleRate int
}

// ErrUnsupportedFormat is returned when a file extension has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// NewSound wraps already decoded interleaved audio. The slice is not copied.
func NewSound(data []float32, sampleRate, channels int) *Sound {
	return &Sound{data: data, sampleRate: sampleRate, channels: max(channels, 1)}
}

// Data returns the interleaved samples. The returned slice must not be
// modified.
func (s *Sound) Data() []float32 { return s.data }

func (s *Sound) Channels() int   { return s.channels }
func (s *Sound) SampleRate() int { return s.sampleRate }

// Frames returns the number of sample frames, i.e. samples per channel.
func (s *Sound) Frames() int { return len(s.data) / s.channels }

// Duration returns the playing time of the sound.
func (s *Sound) Duration() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.sampleRate)
}
