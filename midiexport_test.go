package stepbox_test

import (
	"bytes"
	"testing"

	"github.com/stepbox/stepbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestDrumKey(t *testing.T) {
	assert.Equal(t, uint8(36), stepbox.DrumKey("Kick", 0))
	assert.Equal(t, uint8(38), stepbox.DrumKey("SNARE 2", 1))
	assert.Equal(t, uint8(42), stepbox.DrumKey("Closed Hat", 2))
	assert.Equal(t, uint8(63), stepbox.DrumKey("Laser", 3))
	assert.Equal(t, uint8(127), stepbox.DrumKey("Laser", 100))
}

func TestWriteMIDI(t *testing.T) {
	p := testPattern()
	var buf bytes.Buffer
	require.NoError(t, p.WriteMIDI(&buf, []uint8{35}))

	s, err := smf.ReadFrom(&buf)
	require.NoError(t, err)
	require.Len(t, s.Tracks, 3)
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	require.True(t, ok)
	assert.Equal(t, uint16(960), ticks.Resolution())

	var bpm float64
	foundTempo := false
	for _, ev := range s.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			foundTempo = true
		}
	}
	assert.True(t, foundTempo)
	assert.InDelta(t, 120, bpm, 0.01)

	type hit struct {
		tick uint32
		key  uint8
		vel  uint8
	}
	collect := func(track smf.Track) []hit {
		var hits []hit
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			var ch, key, vel uint8
			if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) {
				assert.Equal(t, uint8(9), ch)
				hits = append(hits, hit{abs, key, vel})
			}
		}
		return hits
	}
	assert.Equal(t, []hit{{0, 35, 127}, {960, 35, 127}, {1920, 35, 127}, {2880, 35, 127}}, collect(s.Tracks[1]))
	assert.Equal(t, []hit{{960, 38, 64}}, collect(s.Tracks[2]))
}
