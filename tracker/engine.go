package tracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/mixer"
	"github.com/stepbox/stepbox/record"
	"github.com/stepbox/stepbox/sample"
)

type (
	// Engine is the audio side of the drum machine: a sample cache, a mixer
	// of sample playbacks and other sources (e.g. the synth) and a recording
	// tap behind it. Its ReadAudio is what the output device pulls.
	//
	// The render path is ReadAudio; everything else is the control path and
	// may be called from any goroutine.
	Engine struct {
		cache  *sample.Cache
		mixer  *mixer.Mixer
		tap    *record.Tap
		broker *Broker
		logger *slog.Logger
		clip   bool

		mu           sync.Mutex
		masterVolume float32
	}

	// EngineOption configures an Engine.
	EngineOption func(*Engine)
)

// DefaultMasterVolume is the master volume of a new Engine.
const DefaultMasterVolume = 0.8

// WithBroker makes the engine report recording failures and pass copies of
// the rendered audio through the broker.
func WithBroker(b *Broker) EngineOption {
	return func(e *Engine) { e.broker = b }
}

// WithEngineLogger sets the logger of the engine and its recording tap.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithMasterVolume sets the initial master volume.
func WithMasterVolume(v float32) EngineOption {
	return func(e *Engine) { e.masterVolume = min(max(v, 0), 1) }
}

// WithClip makes the mixer hard clip the summed samples to [-1, 1].
func WithClip(clip bool) EngineOption {
	return func(e *Engine) { e.clip = clip }
}

// NewEngine returns an engine rendering interleaved stereo at
// stepbox.SampleRate. The cache should decode to the same format.
func NewEngine(cache *sample.Cache, opts ...EngineOption) *Engine {
	e := &Engine{cache: cache, logger: slog.Default(), masterVolume: DefaultMasterVolume}
	for _, o := range opts {
		o(e)
	}
	e.mixer = mixer.New(stepbox.MixChannels, mixer.WithClip(e.clip))
	e.tap = record.NewTap(e.mixer, stepbox.SampleRate, stepbox.MixChannels,
		record.WithLogger(e.logger),
		record.WithErrorHandler(e.recordingFailed))
	return e
}

func (e *Engine) recordingFailed(err error) {
	if e.broker == nil {
		return
	}
	e.broker.Alert(err.Error(), Error, 5*time.Second)
	TrySend(e.broker.ToUI, MsgToUI{Kind: MsgRecording, Data: ""})
}

// SetMasterVolume sets the gain applied to every sample triggered from now
// on, clamped to 0..1.
func (e *Engine) SetMasterVolume(v float32) {
	e.mu.Lock()
	e.masterVolume = min(max(v, 0), 1)
	e.mu.Unlock()
}

func (e *Engine) MasterVolume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVolume
}

// PlaySample starts a playback of the sample at path. The playback gain is
// master volume × track volume × velocity, clamped to 0..1. Blank paths and
// files that cannot be loaded are ignored, so that a track without a usable
// sample is simply silent.
func (e *Engine) PlaySample(path string, trackVolume, pan, velocity float32) {
	if strings.TrimSpace(path) == "" {
		return
	}
	s, err := e.cache.Load(path)
	if err != nil {
		e.logger.Debug("sample not played", "path", path, "err", err)
		return
	}
	gain := e.MasterVolume() * trackVolume * velocity
	e.mixer.Add(sample.NewCursor(s, gain, pan))
}

// PreloadSamples decodes samples ahead of playback, skipping blank, missing
// and undecodable paths. It returns the number of samples available.
func (e *Engine) PreloadSamples(paths []string) int {
	return e.cache.Preload(paths)
}

// WaveformPeaks returns a waveform overview of the sample, nil if it cannot
// be loaded.
func (e *Engine) WaveformPeaks(path string, points int) []float32 {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	return e.cache.Peaks(path, points)
}

// AddSource mixes a source into the output until it ends.
func (e *Engine) AddSource(source stepbox.AudioSource) {
	e.mixer.Add(source)
}

// Voices returns the number of sources currently mixed.
func (e *Engine) Voices() int {
	return e.mixer.Len()
}

// StartRecording starts writing the output to a 32-bit float .wav file at
// path, finishing any recording in progress.
func (e *Engine) StartRecording(path string) error {
	if err := e.tap.StartRecording(path); err != nil {
		return err
	}
	if e.broker != nil {
		TrySend(e.broker.ToUI, MsgToUI{Kind: MsgRecording, Data: path})
	}
	return nil
}

// StopRecording finishes the recording; it does nothing when not recording.
func (e *Engine) StopRecording() error {
	wasRecording := e.tap.Recording()
	err := e.tap.StopRecording()
	if wasRecording && e.broker != nil {
		TrySend(e.broker.ToUI, MsgToUI{Kind: MsgRecording, Data: ""})
	}
	return err
}

func (e *Engine) Recording() bool {
	return e.tap.Recording()
}

// RecordingErr returns the error that ended the last recording, if any.
func (e *Engine) RecordingErr() error {
	return e.tap.Err()
}

// ReadAudio renders the mix into the buffer, recording it if armed.
func (e *Engine) ReadAudio(buffer []float32) (int, error) {
	n, err := e.tap.ReadAudio(buffer)
	if e.broker != nil && n > 0 {
		b := e.broker.GetAudioBuffer()
		*b = append(*b, buffer[:n]...)
		if !TrySend(e.broker.ToMeter, b) {
			e.broker.PutAudioBuffer(b)
		}
	}
	return n, err
}
