package tracker

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/stepbox/stepbox"
)

type (
	// Hit is one sample trigger: an active step of a track, with the mix
	// settings of the track at the time the step was reached.
	Hit struct {
		Track      int
		Step       int
		SamplePath string
		Volume     float32
		Pan        float32
		Velocity   float32
		Offset     time.Duration // humanized delay after the step
	}

	// SamplePlayer plays samples; Engine is one.
	SamplePlayer interface {
		PlaySample(path string, trackVolume, pan, velocity float32)
	}

	// AfterFunc runs f in its own goroutine after d, like time.AfterFunc.
	AfterFunc func(d time.Duration, f func())

	// Scheduler turns the hits of a step into sample playbacks. Every hit is
	// delayed by its timing offset on its own timer, so neither the clock
	// nor the other hits of the step wait for it. When a hit plays, the
	// scheduler reports HitStarted and, a pulse window later, HitEnded, for
	// front ends to flash the track.
	//
	// Delayed hits are not cancelled individually. Instead, Reset and Close
	// invalidate every hit scheduled before them, so that a hit firing
	// after its pattern was replaced or the session closed does nothing.
	Scheduler struct {
		player    SamplePlayer
		broker    *Broker
		logger    *slog.Logger
		pulse     time.Duration
		afterFunc AfterFunc

		gen    atomic.Uint64
		closed atomic.Bool
	}

	// SchedulerOption configures a Scheduler.
	SchedulerOption func(*Scheduler)
)

// DefaultPulse is how long a track is reported as triggered after a hit.
const DefaultPulse = 200 * time.Millisecond

// WithPulse sets the time between HitStarted and HitEnded.
func WithPulse(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.pulse = d }
}

// WithAfterFunc replaces time.AfterFunc for delaying hits and pulses.
func WithAfterFunc(f AfterFunc) SchedulerOption {
	return func(s *Scheduler) { s.afterFunc = f }
}

// WithSchedulerLogger sets the logger for dropped hits.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler returns a scheduler playing through player. broker may be
// nil.
func NewScheduler(player SamplePlayer, broker *Broker, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		player:    player,
		broker:    broker,
		logger:    slog.Default(),
		pulse:     DefaultPulse,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// HitsAt lists the hits of a step: one per track whose step is active.
func HitsAt(p *stepbox.Pattern, step int) []Hit {
	var hits []Hit
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if !t.Active(step) {
			continue
		}
		hits = append(hits, Hit{
			Track:      i,
			Step:       step,
			SamplePath: t.SamplePath,
			Volume:     t.Volume,
			Pan:        t.Pan,
			Velocity:   t.Velocities[step],
			Offset:     time.Duration(max(t.Offset(step), 0) * float64(time.Millisecond)),
		})
	}
	return hits
}

// Schedule plays the hits after their offsets. It returns immediately.
func (s *Scheduler) Schedule(hits []Hit) {
	if s.closed.Load() {
		return
	}
	gen := s.gen.Load()
	for _, h := range hits {
		s.afterFunc(h.Offset, func() { s.fire(gen, h) })
	}
}

func (s *Scheduler) fire(gen uint64, h Hit) {
	if s.closed.Load() || s.gen.Load() != gen {
		s.logger.Debug("hit dropped", "track", h.Track, "step", h.Step)
		return
	}
	s.player.PlaySample(h.SamplePath, h.Volume, h.Pan, h.Velocity)
	if s.broker == nil {
		return
	}
	TrySend(s.broker.ToUI, MsgToUI{Kind: MsgHitStarted, Track: h.Track, Step: h.Step})
	s.afterFunc(s.pulse, func() {
		TrySend(s.broker.ToUI, MsgToUI{Kind: MsgHitEnded, Track: h.Track, Step: h.Step})
	})
}

// Reset drops the hits scheduled so far that have not played yet.
func (s *Scheduler) Reset() {
	s.gen.Add(1)
}

// Close drops all pending hits and makes Schedule a no-op.
func (s *Scheduler) Close() {
	s.closed.Store(true)
	s.gen.Add(1)
}
