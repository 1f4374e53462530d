package stepbox_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stepbox/stepbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigPattern(steps int) stepbox.Pattern {
	p := stepbox.Pattern{BPM: 120}
	for _, name := range []string{"Kick", "Snare", "Hat", "Clap"} {
		p.Tracks = append(p.Tracks, stepbox.NewTrack(name, "", steps))
	}
	return p
}

func TestRandomize(t *testing.T) {
	p := bigPattern(256)
	p.Randomize(rand.New(rand.NewPCG(1, 2)))
	active, total := 0, 0
	for _, track := range p.Tracks {
		for s := range track.Steps {
			total++
			if track.Steps[s] {
				active++
			}
			assert.GreaterOrEqual(t, track.Velocities[s], float32(0.6))
			assert.LessOrEqual(t, track.Velocities[s], float32(1))
		}
	}
	density := float64(active) / float64(total)
	assert.InDelta(t, 0.25, density, 0.05)
}

func TestHumanize(t *testing.T) {
	p := bigPattern(64)
	for i := range p.Tracks {
		for s := 0; s < 64; s += 2 {
			p.Tracks[i].Steps[s] = true
		}
		p.Tracks[i].Velocities[0] = 0.4
		p.Tracks[i].Offsets[1] = 3 // inactive, should be reset
	}
	p.Humanize(rand.New(rand.NewPCG(3, 4)))
	sawOffset := false
	for _, track := range p.Tracks {
		for s := range track.Steps {
			if !track.Steps[s] {
				assert.Zero(t, track.Offsets[s])
				assert.Equal(t, float32(1), track.Velocities[s])
				continue
			}
			assert.GreaterOrEqual(t, track.Velocities[s], float32(0.4))
			assert.LessOrEqual(t, track.Velocities[s], float32(1))
			assert.GreaterOrEqual(t, track.Offsets[s], 0.0)
			assert.Less(t, track.Offsets[s], 12.0)
			if track.Offsets[s] > 0 {
				sawOffset = true
			}
		}
		assert.GreaterOrEqual(t, track.Velocities[0], float32(0.4))
		assert.LessOrEqual(t, track.Velocities[0], float32(0.5))
	}
	assert.True(t, sawOffset)
}

func TestHumanizeFillsMissingOffsets(t *testing.T) {
	p := bigPattern(4)
	p.Tracks[0].Offsets = nil
	p.Tracks[0].Steps[1] = true
	p.Humanize(rand.New(rand.NewPCG(5, 6)))
	require.Len(t, p.Tracks[0].Offsets, 4)
}

func TestClear(t *testing.T) {
	p := bigPattern(16)
	rng := rand.New(rand.NewPCG(7, 8))
	p.Randomize(rng)
	p.Humanize(rng)
	p.Clear()
	for _, track := range p.Tracks {
		for s := range track.Steps {
			assert.False(t, track.Steps[s])
			assert.Equal(t, float32(1), track.Velocities[s])
			assert.Zero(t, track.Offsets[s])
		}
	}
}

func TestBanks(t *testing.T) {
	var banks stepbox.Banks
	p := testPattern()
	banks.Store('a', p)
	assert.True(t, banks.Filled('A'))
	assert.False(t, banks.Filled('B'))

	p.Tracks[0].Steps[1] = true // editing after storing must not leak into the bank
	got, ok := banks.Recall('A')
	require.True(t, ok)
	assert.False(t, got.Tracks[0].Steps[1])

	got.Tracks[0].Steps[2] = true // nor editing a recalled copy
	again, _ := banks.Recall('A')
	assert.False(t, again.Tracks[0].Steps[2])

	_, ok = banks.Recall('C')
	assert.False(t, ok)

	banks.Store('E', p)
	assert.False(t, banks.Filled('E'))
	_, ok = banks.Recall('E')
	assert.False(t, ok)

	banks.Store('D', p)
	banks.Clear('a')
	assert.False(t, banks.Filled('A'))
	assert.True(t, banks.Filled('d'))
	banks.ClearAll()
	for _, b := range "ABCD" {
		assert.False(t, banks.Filled(b))
	}
}
