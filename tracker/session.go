package tracker

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/sequencer"
)

type (
	// Session is a running drum machine: the pattern being edited and
	// played, the pattern banks, the step clock and the scheduler turning
	// clock steps into samples played by the engine. All methods are safe
	// for concurrent use. Notifications go to the broker.
	Session struct {
		engine    *Engine
		broker    *Broker
		clock     *sequencer.Clock
		scheduler *Scheduler
		logger    *slog.Logger

		mu      sync.Mutex
		pattern stepbox.Pattern
		banks   stepbox.Banks
		rng     *rand.Rand
	}

	// SessionOption configures a Session.
	SessionOption func(*sessionConfig)

	sessionConfig struct {
		logger           *slog.Logger
		rng              *rand.Rand
		clockOptions     []sequencer.Option
		schedulerOptions []SchedulerOption
	}
)

// WithSessionLogger sets the logger of the session, its clock and scheduler.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = logger }
}

// WithRand sets the random source of Randomize and Humanize.
func WithRand(rng *rand.Rand) SessionOption {
	return func(c *sessionConfig) { c.rng = rng }
}

// WithClockOptions passes options to the step clock.
func WithClockOptions(opts ...sequencer.Option) SessionOption {
	return func(c *sessionConfig) { c.clockOptions = append(c.clockOptions, opts...) }
}

// WithSchedulerOptions passes options to the scheduler.
func WithSchedulerOptions(opts ...SchedulerOption) SessionOption {
	return func(c *sessionConfig) { c.schedulerOptions = append(c.schedulerOptions, opts...) }
}

// NewSession starts a stopped session playing pattern through the engine.
// broker may be nil. The samples of the pattern are preloaded.
func NewSession(engine *Engine, broker *Broker, pattern stepbox.Pattern, opts ...SessionOption) (*Session, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	cfg := sessionConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Session{
		engine:  engine,
		broker:  broker,
		logger:  cfg.logger,
		pattern: pattern.Copy(),
		rng:     cfg.rng,
	}
	fitTracks(&s.pattern)
	s.scheduler = NewScheduler(engine, broker, append([]SchedulerOption{WithSchedulerLogger(cfg.logger)}, cfg.schedulerOptions...)...)
	clockOpts := append([]sequencer.Option{sequencer.WithSwing(pattern.Swing), sequencer.WithLogger(cfg.logger)}, cfg.clockOptions...)
	clock, err := sequencer.New(stepCount(&pattern), pattern.BPM, s.onStep, clockOpts...)
	if err != nil {
		return nil, err
	}
	s.clock = clock
	engine.PreloadSamples(samplePaths(&pattern))
	return s, nil
}

// fitTracks brings every track to the step count of the longest one.
func fitTracks(p *stepbox.Pattern) {
	n := stepCount(p)
	for i := range p.Tracks {
		p.Tracks[i].Resize(n)
	}
}

func stepCount(p *stepbox.Pattern) int {
	if n := p.StepCount(); n > 0 {
		return n
	}
	return stepbox.DefaultStepCount
}

func samplePaths(p *stepbox.Pattern) []string {
	ret := make([]string, 0, len(p.Tracks))
	for i := range p.Tracks {
		ret = append(ret, p.Tracks[i].SamplePath)
	}
	return ret
}

func (s *Session) onStep(step int) {
	if s.broker != nil {
		TrySend(s.broker.ToUI, MsgToUI{Kind: MsgStep, Step: step})
	}
	if step < 0 {
		return
	}
	s.mu.Lock()
	hits := HitsAt(&s.pattern, step)
	s.mu.Unlock()
	s.scheduler.Schedule(hits)
}

// Play starts the clock from the first step.
func (s *Session) Play() {
	s.clock.Start()
}

// Stop stops the clock and any recording.
func (s *Session) Stop() error {
	s.clock.Stop()
	return s.engine.StopRecording()
}

// StartExport starts recording the output to path and starts playback if
// stopped.
func (s *Session) StartExport(path string) error {
	if err := s.engine.StartRecording(path); err != nil {
		return err
	}
	s.clock.Start()
	return nil
}

func (s *Session) Playing() bool {
	return s.clock.Playing()
}

// Step returns the current step, -1 when stopped.
func (s *Session) Step() int {
	return s.clock.Step()
}

func (s *Session) Engine() *Engine {
	return s.engine
}

// SetBPM changes the tempo of the clock and the pattern.
func (s *Session) SetBPM(bpm float64) error {
	if err := s.clock.SetBPM(bpm); err != nil {
		return err
	}
	s.mu.Lock()
	s.pattern.BPM = bpm
	s.mu.Unlock()
	return nil
}

// SetSwing sets the swing of the clock and the pattern, clamped to 0..1.
func (s *Session) SetSwing(swing float64) {
	s.clock.SetSwing(swing)
	s.mu.Lock()
	s.pattern.Swing = s.clock.Swing()
	s.mu.Unlock()
}

// SetStepCount resizes every track and the clock loop. Existing steps that
// fit are kept; a running clock continues from step 0.
func (s *Session) SetStepCount(count int) error {
	if count <= 0 {
		return stepbox.ErrInvalidStepCount
	}
	s.mu.Lock()
	for i := range s.pattern.Tracks {
		s.pattern.Tracks[i].Resize(count)
	}
	s.mu.Unlock()
	return s.clock.SetSteps(count)
}

// StepCount returns the loop length of the clock.
func (s *Session) StepCount() int {
	return s.clock.Steps()
}

// Snapshot returns a copy of the current pattern.
func (s *Session) Snapshot() stepbox.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern.Copy()
}

// LoadPattern replaces the pattern, taking over its tempo, swing and step
// count. Hits of the old pattern still waiting for their offset are
// dropped.
func (s *Session) LoadPattern(p stepbox.Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Copy()
	fitTracks(&p)
	s.engine.PreloadSamples(samplePaths(&p))
	s.mu.Lock()
	s.pattern = p
	s.mu.Unlock()
	s.scheduler.Reset()
	s.clock.SetBPM(p.BPM)
	s.clock.SetSwing(p.Swing)
	if n := stepCount(&p); n != s.clock.Steps() {
		s.clock.SetSteps(n)
	}
	return nil
}

// UpdateTrack edits a track in place, e.g. toggling a step or changing its
// sample. The steps of the track are kept at the session's step count and a
// new sample is preloaded.
func (s *Session) UpdateTrack(index int, edit func(t *stepbox.Track)) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.pattern.Tracks) {
		s.mu.Unlock()
		return fmt.Errorf("no track %d", index)
	}
	t := &s.pattern.Tracks[index]
	oldPath := t.SamplePath
	edit(t)
	if t.Len() != s.clock.Steps() || len(t.Velocities) != t.Len() || len(t.Offsets) != t.Len() {
		t.Resize(s.clock.Steps())
	}
	newPath := t.SamplePath
	s.mu.Unlock()
	if newPath != oldPath {
		s.engine.PreloadSamples([]string{newPath})
	}
	return nil
}

// ToggleStep flips a step of a track.
func (s *Session) ToggleStep(track, step int) error {
	return s.UpdateTrack(track, func(t *stepbox.Track) {
		if step >= 0 && step < t.Len() {
			t.Steps[step] = !t.Steps[step]
		}
	})
}

// AddTrack appends a track with no active steps and returns its index.
func (s *Session) AddTrack(name, samplePath string) int {
	t := stepbox.NewTrack(name, samplePath, s.clock.Steps())
	s.engine.PreloadSamples([]string{samplePath})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern.Tracks = append(s.pattern.Tracks, t)
	return len(s.pattern.Tracks) - 1
}

// RemoveTrack deletes a track. Its pending hits still play.
func (s *Session) RemoveTrack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pattern.Tracks) {
		return fmt.Errorf("no track %d", index)
	}
	s.pattern.Tracks = append(s.pattern.Tracks[:index], s.pattern.Tracks[index+1:]...)
	return nil
}

func (s *Session) Randomize() {
	s.mu.Lock()
	s.pattern.Randomize(s.rng)
	s.mu.Unlock()
}

func (s *Session) Humanize() {
	s.mu.Lock()
	s.pattern.Humanize(s.rng)
	s.mu.Unlock()
}

// Clear deactivates every step of every track.
func (s *Session) Clear() {
	s.mu.Lock()
	s.pattern.Clear()
	s.mu.Unlock()
}

// StoreBank saves the current pattern to a bank 'A'..'D'.
func (s *Session) StoreBank(bank rune) {
	s.mu.Lock()
	s.banks.Store(bank, s.pattern)
	s.mu.Unlock()
}

// RecallBank loads the pattern of a bank; it returns false if the bank is
// empty.
func (s *Session) RecallBank(bank rune) bool {
	s.mu.Lock()
	p, ok := s.banks.Recall(bank)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := s.LoadPattern(p); err != nil {
		s.logger.Warn("could not recall bank", "bank", string(bank), "err", err)
		return false
	}
	return true
}

func (s *Session) BankFilled(bank rune) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banks.Filled(bank)
}

func (s *Session) ClearBank(bank rune) {
	s.mu.Lock()
	s.banks.Clear(bank)
	s.mu.Unlock()
}

func (s *Session) ClearAllBanks() {
	s.mu.Lock()
	s.banks.ClearAll()
	s.mu.Unlock()
}

// Close stops playback and recording and drops pending hits.
func (s *Session) Close() error {
	s.clock.Stop()
	s.scheduler.Close()
	return s.engine.StopRecording()
}
