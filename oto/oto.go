// Package oto plays stepbox audio sources through the system audio device
// with ebitengine/oto.
package oto

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/stepbox/stepbox"
)

type (
	// OtoContext is the audio device. oto allows only one context per
	// process; create it once and play everything through it, mixing
	// several sources beforehand if needed.
	OtoContext struct {
		ctx        *oto.Context
		channels   int
		sampleRate int
		pcm16      bool
	}

	// Option configures an OtoContext.
	Option func(*OtoContext)

	// OtoOutput is a playing source. The device pulls audio through Read,
	// which renders the source into a reused float buffer and converts it
	// to bytes in place.
	OtoOutput struct {
		player *oto.Player
		pcm16  bool

		mu       sync.Mutex
		source   stepbox.AudioSource
		floatBuf []float32
	}
)

// With16Bit makes the device play 16-bit integer samples instead of
// float32, for drivers without float support.
func With16Bit(pcm16 bool) Option {
	return func(c *OtoContext) { c.pcm16 = pcm16 }
}

// NewContext opens the audio device for interleaved audio. bufferSize is
// the device latency; 0 lets oto decide.
func NewContext(sampleRate, channels int, bufferSize time.Duration, opts ...Option) (*OtoContext, error) {
	c := &OtoContext{channels: channels, sampleRate: sampleRate}
	for _, o := range opts {
		o(c)
	}
	format := oto.FormatFloat32LE
	if c.pcm16 {
		format = oto.FormatSignedInt16LE
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       format,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	c.ctx = ctx
	return c, nil
}

// NewOutput returns the reader side of an output without a device, for
// pulling the device format out of a source by hand. A nil source plays
// silence.
func NewOutput(source stepbox.AudioSource, pcm16 bool) *OtoOutput {
	if source == nil {
		source = stepbox.Silence
	}
	return &OtoOutput{source: source, pcm16: pcm16}
}

// Play starts pulling audio from the source. Closing the returned output
// stops it.
func (c *OtoContext) Play(source stepbox.AudioSource) (io.Closer, error) {
	o := NewOutput(source, c.pcm16)
	o.player = c.ctx.NewPlayer(o)
	o.player.Play()
	if err := c.ctx.Err(); err != nil {
		o.player.Close()
		return nil, fmt.Errorf("cannot start oto player: %w", err)
	}
	return o, nil
}

// Close suspends the device. oto cannot release a context, so a closed
// context stays unusable for the rest of the process.
func (c *OtoContext) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot close oto context: %w", err)
	}
	return nil
}

// Read implements io.Reader for the oto player. The source is rendered
// fully, padding with silence once it runs dry, so the device never
// starves.
func (o *OtoOutput) Read(p []byte) (int, error) {
	bytesPerSample := 4
	if o.pcm16 {
		bytesPerSample = 2
	}
	n := len(p) / bytesPerSample
	o.mu.Lock()
	defer o.mu.Unlock()
	if cap(o.floatBuf) < n {
		o.floatBuf = make([]float32, n)
	}
	buf := o.floatBuf[:n]
	if _, err := stepbox.Render(o.source, buf); err != nil {
		// a failing source is dropped, the device keeps playing silence
		o.source = stepbox.Silence
	}
	if o.pcm16 {
		return len(FloatBufferTo16BitLE(buf, p[:0])), nil
	}
	return FloatBufferToFloat32LE(buf, p), nil
}

// Close stops the playback.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	o.source = stepbox.Silence
	o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
