package mixer_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/mixer"
	"github.com/stepbox/stepbox/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constant renders value forever.
type constant float32

func (c constant) ReadAudio(buffer []float32) (int, error) {
	for i := range buffer {
		buffer[i] = float32(c)
	}
	return len(buffer), nil
}

func TestEmptyMixerIsSilent(t *testing.T) {
	m := mixer.New(2)
	buf := []float32{1, 2, 3, 4}
	n, err := m.ReadAudio(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{0, 0, 0, 0}, buf)
}

func TestMixerSumsInputs(t *testing.T) {
	m := mixer.New(2)
	m.Add(constant(0.25))
	m.Add(constant(0.5))
	buf := make([]float32, 4)
	m.ReadAudio(buf)
	assert.Equal(t, []float32{0.75, 0.75, 0.75, 0.75}, buf)
	assert.Equal(t, 2, m.Len())
}

func TestMixerRetiresShortInputs(t *testing.T) {
	m := mixer.New(2)
	s := sample.NewSound([]float32{1, 1, 1, 1, 1, 1}, 44100, 2)
	m.Add(sample.NewCursor(s, 1, -1))
	m.Add(constant(0.5))
	buf := make([]float32, 4)
	m.ReadAudio(buf)
	assert.Equal(t, []float32{1.5, 0.5, 1.5, 0.5}, buf)
	assert.Equal(t, 2, m.Len())

	m.ReadAudio(buf)
	assert.Equal(t, []float32{1.5, 0.5, 0.5, 0.5}, buf, "cursor contributes silence after its end")
	assert.Equal(t, 1, m.Len())
}

func TestMixerKeepsCursorOnOddBuffer(t *testing.T) {
	m := mixer.New(2)
	data := make([]float32, 2*1000)
	for i := range data {
		data[i] = 0.5
	}
	m.Add(sample.NewCursor(sample.NewSound(data, 44100, 2), 1, 0))
	buf := make([]float32, 5)
	n, err := m.ReadAudio(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, m.Len(), "a cursor with frames left stays in the mix")
	assert.Zero(t, buf[4], "the partial trailing frame is silent")

	for range 10 {
		m.ReadAudio(buf)
	}
	assert.Equal(t, 1, m.Len())
}

func TestMixerRetiresFinishedInputs(t *testing.T) {
	m := mixer.New(2)
	s := sample.NewSound([]float32{1, 1, 1, 1}, 44100, 2)
	m.Add(sample.NewCursor(s, 1, 0))
	buf := make([]float32, 4)
	m.ReadAudio(buf)
	assert.Equal(t, 0, m.Len(), "a cursor that exactly filled the buffer is done")
}

func TestMixerRetiresFailingInputs(t *testing.T) {
	m := mixer.New(1)
	m.Add(stepbox.AudioSourceFunc(func(buffer []float32) (int, error) {
		buffer[0] = 0.5
		return 1, errors.New("device gone")
	}))
	buf := make([]float32, 2)
	n, err := m.ReadAudio(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0.5, 0}, buf)
	assert.Equal(t, 0, m.Len())
}

func TestMixerClip(t *testing.T) {
	loud := func(opts ...mixer.Option) []float32 {
		m := mixer.New(2, opts...)
		m.Add(constant(0.8))
		m.Add(constant(0.8))
		m.Add(constant(-3))
		buf := make([]float32, 2)
		m.ReadAudio(buf)
		return buf
	}
	assert.InDelta(t, -1.4, loud()[0], 1e-6)
	assert.Equal(t, []float32{-1, -1}, loud(mixer.WithClip(true)))
}

func TestMixerClear(t *testing.T) {
	m := mixer.New(2)
	m.Add(constant(1))
	m.Clear()
	assert.Equal(t, 0, m.Len())
	buf := []float32{5, 5}
	m.ReadAudio(buf)
	assert.Equal(t, []float32{0, 0}, buf)
}

func TestMixerConcurrentAdd(t *testing.T) {
	m := mixer.New(2)
	s := sample.NewSound(make([]float32, 64), 44100, 2)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				m.Add(sample.NewCursor(s, 1, 0))
			}
		}()
	}
	buf := make([]float32, 16)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		m.ReadAudio(buf)
		select {
		case <-done:
			for m.Len() > 0 {
				m.ReadAudio(buf)
			}
			return
		default:
		}
	}
}
