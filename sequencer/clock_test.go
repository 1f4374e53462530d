package sequencer_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stepbox/stepbox/sequencer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer runs scheduled functions only when fire is called, advancing
// its time to their deadline.
type fakeTimer struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeEntry
}

type fakeEntry struct {
	at      time.Time
	d       time.Duration
	f       func()
	stopped bool
}

func (e *fakeEntry) Stop() bool {
	was := !e.stopped
	e.stopped = true
	return was
}

func (t *fakeTimer) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

func (t *fakeTimer) AfterFunc(d time.Duration, f func()) sequencer.Stopper {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &fakeEntry{at: t.now.Add(d), d: d, f: f}
	t.pending = append(t.pending, e)
	return e
}

// fire runs the next live scheduled function and returns the delay it was
// scheduled with; ok is false if nothing is scheduled.
func (t *fakeTimer) fire() (d time.Duration, ok bool) {
	t.mu.Lock()
	var e *fakeEntry
	for len(t.pending) > 0 && e == nil {
		e, t.pending = t.pending[0], t.pending[1:]
		if e.stopped {
			e = nil
		}
	}
	if e == nil {
		t.mu.Unlock()
		return 0, false
	}
	t.now = e.at
	t.mu.Unlock()
	e.f()
	return e.d, true
}

type stepLog struct {
	mu    sync.Mutex
	steps []int
}

func (l *stepLog) record(step int) {
	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()
}

func (l *stepLog) get() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.steps...)
}

func newClock(t *testing.T, steps int, bpm float64, opts ...sequencer.Option) (*sequencer.Clock, *fakeTimer, *stepLog) {
	t.Helper()
	timer := &fakeTimer{now: time.Unix(1000, 0)}
	log := &stepLog{}
	c, err := sequencer.New(steps, bpm, log.record, append([]sequencer.Option{sequencer.WithTimer(timer)}, opts...)...)
	require.NoError(t, err)
	return c, timer, log
}

func TestStepInterval(t *testing.T) {
	assert.Equal(t, 125*time.Millisecond, sequencer.StepInterval(120, 0, 0))
	assert.Equal(t, 125*time.Millisecond, sequencer.StepInterval(120, 0, 1))
	assert.Equal(t, 187500*time.Microsecond, sequencer.StepInterval(120, 1, 1))
	assert.Equal(t, 93750*time.Microsecond, sequencer.StepInterval(120, 1, 0))
	assert.Equal(t, 93750*time.Microsecond, sequencer.StepInterval(120, 1, 2))
	assert.Equal(t, 250*time.Millisecond, sequencer.StepInterval(60, 0, 3))
}

func TestNewValidates(t *testing.T) {
	_, err := sequencer.New(0, 120, nil)
	assert.ErrorIs(t, err, sequencer.ErrInvalidStepCount)
	for _, bpm := range []float64{0, -120, math.NaN(), math.Inf(1)} {
		_, err = sequencer.New(16, bpm, nil)
		assert.ErrorIs(t, err, sequencer.ErrInvalidBPM, "bpm %v", bpm)
	}
	c, err := sequencer.New(16, 120, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, c.Step())
	assert.False(t, c.Playing())
}

func TestClockWrapsAround(t *testing.T) {
	c, timer, log := newClock(t, 4, 120)
	c.Start()
	assert.True(t, c.Playing())
	assert.Equal(t, -1, c.Step())
	for range 6 {
		d, ok := timer.fire()
		require.True(t, ok)
		assert.Equal(t, 125*time.Millisecond, d)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1}, log.get())
	assert.Equal(t, 1, c.Step())

	c.Stop()
	assert.Equal(t, []int{0, 1, 2, 3, 0, 1, -1}, log.get())
	assert.Equal(t, -1, c.Step())
	_, ok := timer.fire()
	assert.False(t, ok, "stop cancels the pending tick")
}

func TestClockSwingTiming(t *testing.T) {
	c, timer, _ := newClock(t, 16, 120, sequencer.WithSwing(1))
	c.Start()
	var waits []time.Duration
	for range 4 {
		d, ok := timer.fire()
		require.True(t, ok)
		waits = append(waits, d)
	}
	ms := func(f float64) time.Duration { return time.Duration(f * float64(time.Millisecond)) }
	// the wait before step 0, then the lengths of steps 0, 1 and 2
	assert.Equal(t, []time.Duration{ms(93.75), ms(93.75), ms(187.5), ms(93.75)}, waits)
}

func TestClockTempoChangeAppliesToNextTick(t *testing.T) {
	c, timer, _ := newClock(t, 16, 120)
	c.Start()
	timer.fire()
	require.NoError(t, c.SetBPM(60))
	d, _ := timer.fire()
	assert.Equal(t, 125*time.Millisecond, d, "already scheduled")
	d, _ = timer.fire()
	assert.Equal(t, 250*time.Millisecond, d)
	assert.ErrorIs(t, c.SetBPM(-1), sequencer.ErrInvalidBPM)
	assert.Equal(t, 60.0, c.BPM())
}

func TestSetStepsRestartsFromZero(t *testing.T) {
	c, timer, log := newClock(t, 16, 120)
	c.Start()
	timer.fire()
	timer.fire()
	timer.fire()
	require.NoError(t, c.SetSteps(8))
	assert.Equal(t, -1, c.Step())
	timer.fire()
	assert.Equal(t, []int{0, 1, 2, 0}, log.get())
	assert.Equal(t, 8, c.Steps())
	assert.ErrorIs(t, c.SetSteps(0), sequencer.ErrInvalidStepCount)
	assert.Equal(t, 8, c.Steps())
}

func TestStartStopAreIdempotent(t *testing.T) {
	c, timer, log := newClock(t, 4, 120)
	c.Stop()
	assert.Empty(t, log.get(), "stopping a stopped clock reports nothing")
	c.Start()
	timer.fire()
	c.Start()
	timer.fire()
	assert.Equal(t, []int{0, 1}, log.get())
	c.Stop()
	c.Stop()
	assert.Equal(t, []int{0, 1, -1}, log.get())

	c.Start()
	timer.fire()
	assert.Equal(t, []int{0, 1, -1, 0}, log.get(), "restart begins from step 0")
}

func TestSwingIsClamped(t *testing.T) {
	c, _, _ := newClock(t, 4, 120)
	c.SetSwing(2)
	assert.Equal(t, 1.0, c.Swing())
	c.SetSwing(-1)
	assert.Equal(t, 0.0, c.Swing())
	c.SetSwing(math.NaN())
	assert.Equal(t, 0.0, c.Swing())

	c, err := sequencer.New(4, 120, nil, sequencer.WithSwing(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Swing())
	assert.Equal(t, 125*time.Millisecond, c.Interval(0))
}

func TestSetBPMRejectsNonFinite(t *testing.T) {
	c, _, _ := newClock(t, 4, 120)
	for _, bpm := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, c.SetBPM(bpm), sequencer.ErrInvalidBPM, "bpm %v", bpm)
	}
	assert.Equal(t, 120.0, c.BPM(), "rejected tempos leave the clock unchanged")
}

func TestRealTimerTicks(t *testing.T) {
	steps := make(chan int, 64)
	c, err := sequencer.New(4, 1200, func(step int) { steps <- step })
	require.NoError(t, err)
	c.Start()
	timeout := time.After(5 * time.Second)
	for want := 0; want < 6; want++ {
		select {
		case got := <-steps:
			assert.Equal(t, want%4, got)
		case <-timeout:
			t.Fatal("clock did not tick")
		}
	}
	c.Stop()
	var last int
	for {
		select {
		case s := <-steps:
			last = s
			continue
		default:
		}
		break
	}
	assert.Equal(t, -1, last)
}
