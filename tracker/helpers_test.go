package tracker_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stepbox/stepbox/sequencer"
	"github.com/stepbox/stepbox/tracker"
	"github.com/stretchr/testify/require"
)

// writeConstWav writes a stereo 44.1 kHz file of frames frames, every value
// being 0.5.
func writeConstWav(t *testing.T, dir, name string, frames int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	data := make([]int, 2*frames)
	for i := range data {
		data[i] = 16384
	}
	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

// drain returns the messages queued for the UI.
func drain(b *tracker.Broker) []tracker.MsgToUI {
	var ret []tracker.MsgToUI
	for {
		select {
		case m := <-b.ToUI:
			ret = append(ret, m)
		default:
			return ret
		}
	}
}

func ofKind(msgs []tracker.MsgToUI, kind tracker.MsgKind) []tracker.MsgToUI {
	var ret []tracker.MsgToUI
	for _, m := range msgs {
		if m.Kind == kind {
			ret = append(ret, m)
		}
	}
	return ret
}

// manualTimer is a sequencer.Timer that only advances when fire is called.
type manualTimer struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualEntry
}

type manualEntry struct {
	at      time.Time
	f       func()
	stopped bool
}

func (e *manualEntry) Stop() bool {
	was := !e.stopped
	e.stopped = true
	return was
}

func (m *manualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTimer) AfterFunc(d time.Duration, f func()) sequencer.Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &manualEntry{at: m.now.Add(d), f: f}
	m.pending = append(m.pending, e)
	return e
}

func (m *manualTimer) fire() bool {
	m.mu.Lock()
	for len(m.pending) > 0 {
		e := m.pending[0]
		m.pending = m.pending[1:]
		if e.stopped {
			continue
		}
		m.now = e.at
		m.mu.Unlock()
		e.f()
		return true
	}
	m.mu.Unlock()
	return false
}

// deferred collects AfterFunc calls of a scheduler to be run by hand.
type deferred struct {
	mu    sync.Mutex
	delay []time.Duration
	funcs []func()
}

func (d *deferred) afterFunc(delay time.Duration, f func()) {
	d.mu.Lock()
	d.delay = append(d.delay, delay)
	d.funcs = append(d.funcs, f)
	d.mu.Unlock()
}

// runAll runs the collected functions, including those they schedule.
func (d *deferred) runAll() {
	for {
		d.mu.Lock()
		if len(d.funcs) == 0 {
			d.mu.Unlock()
			return
		}
		f := d.funcs[0]
		d.funcs = d.funcs[1:]
		d.mu.Unlock()
		f()
	}
}

func immediately(_ time.Duration, f func()) { f() }
