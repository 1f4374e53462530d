// Package sequencer provides the step clock driving pattern playback.
package sequencer

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"
)

type (
	// Clock advances a step index in 16th notes at a given tempo, with
	// swing, and reports every new step to a callback. Ticks are scheduled
	// against absolute deadlines, so the time spent in the callback does not
	// make the tempo drift.
	//
	// The callback is called from the clock's own goroutines, one call at a
	// time and in order. It receives the new step index, or -1 when the
	// clock is stopped. The callback must not call Start or Stop.
	Clock struct {
		onStep func(step int)
		timer  Timer
		logger *slog.Logger

		mu      sync.Mutex
		steps   int
		bpm     float64
		swing   float64
		step    int
		playing bool
		gen     uint64 // incremented on every start and stop
		pending Stopper
		next    time.Time

		notify sync.Mutex // serializes the callback
	}

	// Timer is the time source of a Clock. The default uses time.Now and
	// time.AfterFunc; tests replace it to step the clock by hand.
	Timer interface {
		Now() time.Time
		AfterFunc(d time.Duration, f func()) Stopper
	}

	// Stopper cancels a pending AfterFunc, like time.Timer.Stop.
	Stopper interface {
		Stop() bool
	}

	// Option configures a Clock.
	Option func(*Clock)

	realTimer struct{}
)

var (
	ErrInvalidBPM       = errors.New("bpm must be greater than 0")
	ErrInvalidStepCount = errors.New("step count must be greater than 0")
)

func (realTimer) Now() time.Time { return time.Now() }

func (realTimer) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// WithTimer replaces the wall clock.
func WithTimer(t Timer) Option {
	return func(c *Clock) { c.timer = t }
}

// WithSwing sets the initial swing amount.
func WithSwing(swing float64) Option {
	return func(c *Clock) { c.swing = clampSwing(swing) }
}

// WithLogger sets the logger for start and stop events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) { c.logger = logger }
}

// New returns a stopped clock. onStep may be nil.
func New(steps int, bpm float64, onStep func(step int), opts ...Option) (*Clock, error) {
	if steps <= 0 {
		return nil, ErrInvalidStepCount
	}
	if !validBPM(bpm) {
		return nil, ErrInvalidBPM
	}
	if onStep == nil {
		onStep = func(int) {}
	}
	c := &Clock{onStep: onStep, timer: realTimer{}, logger: slog.Default(), steps: steps, bpm: bpm, step: -1}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// StepInterval returns how long the clock stays on a step: a 16th note at
// the tempo, lengthened by up to half on odd (off-beat) steps and shortened
// by up to a quarter on even steps as swing goes from 0 to 1.
func StepInterval(bpm, swing float64, step int) time.Duration {
	ms := 60000 / (bpm * 4)
	if step%2 != 0 {
		ms *= 1 + swing*0.5
	} else {
		ms *= 1 - swing*0.25
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// validBPM accepts finite tempos above zero.
func validBPM(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 1)
}

// clampSwing keeps swing within 0..1; NaN means no swing.
func clampSwing(swing float64) float64 {
	if math.IsNaN(swing) {
		return 0
	}
	return min(max(swing, 0), 1)
}

// Interval returns the current length of a step, see StepInterval.
func (c *Clock) Interval(step int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StepInterval(c.bpm, c.swing, step)
}

// Start resets the step index and starts ticking; the first tick, moving to
// step 0, comes after Interval(0). Starting a running clock does nothing.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.playing = true
	c.gen++
	c.step = -1
	c.next = c.timer.Now()
	c.scheduleLocked(c.gen, StepInterval(c.bpm, c.swing, 0))
	c.logger.Debug("clock started", "bpm", c.bpm, "swing", c.swing, "steps", c.steps)
}

// Stop stops ticking, resets the step index and reports step -1. Stopping
// a stopped clock does nothing.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.step = -1
	c.mu.Unlock()
	c.logger.Debug("clock stopped")
	c.notify.Lock()
	defer c.notify.Unlock()
	c.onStep(-1)
}

func (c *Clock) scheduleLocked(gen uint64, interval time.Duration) {
	c.next = c.next.Add(interval)
	d := c.next.Sub(c.timer.Now())
	if d < 0 {
		// fell behind, e.g. after a suspend; continue from now
		c.next = c.timer.Now()
		d = 0
	}
	c.pending = c.timer.AfterFunc(d, func() { c.tick(gen) })
}

func (c *Clock) tick(gen uint64) {
	c.notify.Lock()
	defer c.notify.Unlock()
	c.mu.Lock()
	if !c.playing || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.step = (c.step + 1) % c.steps
	step := c.step
	c.scheduleLocked(gen, StepInterval(c.bpm, c.swing, step))
	c.mu.Unlock()
	c.onStep(step)
}

// SetBPM changes the tempo from the next tick on.
func (c *Clock) SetBPM(bpm float64) error {
	if !validBPM(bpm) {
		return ErrInvalidBPM
	}
	c.mu.Lock()
	c.bpm = bpm
	c.mu.Unlock()
	return nil
}

// SetSwing sets the swing amount, clamped to 0..1.
func (c *Clock) SetSwing(swing float64) {
	c.mu.Lock()
	c.swing = clampSwing(swing)
	c.mu.Unlock()
}

// SetSteps changes the loop length and resets the step index, so that a
// running clock continues from step 0 on its next tick.
func (c *Clock) SetSteps(steps int) error {
	if steps <= 0 {
		return ErrInvalidStepCount
	}
	c.mu.Lock()
	c.steps = steps
	c.step = -1
	c.mu.Unlock()
	return nil
}

func (c *Clock) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

func (c *Clock) Swing() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.swing
}

func (c *Clock) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

// Step returns the current step index, -1 before the first tick and while
// stopped.
func (c *Clock) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}
