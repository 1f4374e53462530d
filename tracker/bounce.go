package tracker

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/mixer"
	"github.com/stepbox/stepbox/sample"
	"github.com/stepbox/stepbox/sequencer"
)

type (
	// BounceOption configures Bounce.
	BounceOption func(*bounceConfig)

	bounceConfig struct {
		loops        int
		maxTail      time.Duration
		masterVolume float32
		clip         bool
		logger       *slog.Logger
	}

	bounceEvent struct {
		frame int
		hit   Hit
	}
)

const bounceBlock = 4096 // frames rendered per mixer call

// WithLoops sets how many times the pattern is played. Default 1.
func WithLoops(n int) BounceOption {
	return func(c *bounceConfig) { c.loops = max(n, 1) }
}

// WithTail sets how long sounds still ringing after the last loop may
// continue. Default 5 s.
func WithTail(d time.Duration) BounceOption {
	return func(c *bounceConfig) { c.maxTail = max(d, 0) }
}

// WithBounceVolume sets the master volume of the render.
func WithBounceVolume(v float32) BounceOption {
	return func(c *bounceConfig) { c.masterVolume = min(max(v, 0), 1) }
}

// WithBounceClip hard clips the render to [-1, 1].
func WithBounceClip(clip bool) BounceOption {
	return func(c *bounceConfig) { c.clip = clip }
}

// WithBounceLogger sets the logger for samples that cannot be loaded.
func WithBounceLogger(logger *slog.Logger) BounceOption {
	return func(c *bounceConfig) { c.logger = logger }
}

// Bounce renders the pattern offline into interleaved stereo at
// stepbox.SampleRate. The timing is the same as when played by a Session:
// each step lasts sequencer.StepInterval, with swing, and every hit starts at
// its step plus its timing offset, rounded to the nearest frame. Unlike live
// playback, the result is exactly reproducible.
func Bounce(p stepbox.Pattern, cache *sample.Cache, opts ...BounceOption) ([]float32, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cfg := bounceConfig{loops: 1, maxTail: 5 * time.Second, masterVolume: DefaultMasterVolume, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	steps := stepCount(&p)
	toFrame := func(d time.Duration) int {
		return int(math.Round(d.Seconds() * stepbox.SampleRate))
	}
	var events []bounceEvent
	var t time.Duration
	for range cfg.loops {
		for step := range steps {
			for _, h := range HitsAt(&p, step) {
				events = append(events, bounceEvent{frame: toFrame(t + h.Offset), hit: h})
			}
			t += sequencer.StepInterval(p.BPM, p.Swing, step)
		}
	}
	slices.SortStableFunc(events, func(a, b bounceEvent) int { return a.frame - b.frame })
	end := toFrame(t)

	m := mixer.New(stepbox.MixChannels, mixer.WithClip(cfg.clip))
	out := make([]float32, 0, (end+toFrame(time.Second))*stepbox.MixChannels)
	frame := 0
	render := func(frames int) {
		for frames > 0 {
			n := min(frames, bounceBlock)
			start := len(out)
			out = append(out, make([]float32, n*stepbox.MixChannels)...)
			m.ReadAudio(out[start:])
			frame += n
			frames -= n
		}
	}
	for _, ev := range events {
		render(ev.frame - frame)
		s, err := cache.Load(ev.hit.SamplePath)
		if err != nil {
			cfg.logger.Debug("bounce: sample skipped", "path", ev.hit.SamplePath, "err", err)
			continue
		}
		m.Add(sample.NewCursor(s, cfg.masterVolume*ev.hit.Volume*ev.hit.Velocity, ev.hit.Pan))
	}
	render(end - frame)
	for tail := toFrame(cfg.maxTail); tail > 0 && m.Len() > 0; tail -= bounceBlock {
		render(min(tail, bounceBlock))
	}
	return out, nil
}
