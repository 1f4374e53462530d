package tracker_test

import (
	"testing"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/sample"
	"github.com/stepbox/stepbox/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bouncePattern(t *testing.T, sampleFrames int) (stepbox.Pattern, *sample.Cache) {
	t.Helper()
	path := writeConstWav(t, t.TempDir(), "click.wav", sampleFrames)
	track := stepbox.NewTrack("Click", path, 4)
	track.Steps[0] = true
	track.Steps[2] = true
	track.Pan = -1
	return stepbox.Pattern{BPM: 120, Tracks: []stepbox.Track{track}}, sample.NewCache(stepbox.SampleRate, stepbox.MixChannels)
}

// onsets returns the frames where the left channel goes from silent to
// sounding.
func onsets(out []float32) []int {
	var ret []int
	prev := float32(0)
	for i := 0; i < len(out); i += 2 {
		if out[i] != 0 && prev == 0 {
			ret = append(ret, i/2)
		}
		prev = out[i]
	}
	return ret
}

func TestBounceTiming(t *testing.T) {
	p, cache := bouncePattern(t, 10)
	out, err := tracker.Bounce(p, cache, tracker.WithBounceVolume(1))
	require.NoError(t, err)
	assert.Len(t, out, 2*22050, "4 steps of 125 ms")
	assert.Equal(t, []int{0, 11025}, onsets(out))
	assert.InDelta(t, 0.5, out[0], 1e-4)
	assert.Zero(t, out[1], "hard left")
	assert.Zero(t, out[2*10])
}

func TestBounceLoopsAndSwing(t *testing.T) {
	p, cache := bouncePattern(t, 10)
	p.Swing = 1
	p.Tracks[0].Steps[1] = true
	out, err := tracker.Bounce(p, cache, tracker.WithLoops(2))
	require.NoError(t, err)
	// steps last 93.75, 187.5, 93.75 and 187.5 ms, so a loop is 562.5 ms
	assert.Equal(t, []int{0, 4134, 12403, 24806, 28941, 37209}, onsets(out))
	assert.Len(t, out, 2*49613)
	assert.InDelta(t, 0.5*tracker.DefaultMasterVolume, out[0], 1e-4)
}

func TestBounceOffsetsAndTail(t *testing.T) {
	p, cache := bouncePattern(t, 30000)
	p.Tracks[0].Steps[2] = false
	p.Tracks[0].Offsets[0] = 10
	out, err := tracker.Bounce(p, cache, tracker.WithTail(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []int{441}, onsets(out))
	frames := len(out) / 2
	assert.GreaterOrEqual(t, frames, 441+30000, "the tail lets the sample ring out")
	assert.Less(t, frames, 441+30000+4096+1)
}

func TestBounceClipAndMissingSamples(t *testing.T) {
	p, cache := bouncePattern(t, 10)
	p.Tracks = append(p.Tracks, p.Tracks[0].Copy(), p.Tracks[0].Copy(), stepbox.NewTrack("Nothing", "nope.wav", 4))
	p.Tracks[3].Steps[0] = true
	loud, err := tracker.Bounce(p, cache, tracker.WithBounceVolume(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, loud[0], 1e-4)
	clipped, err := tracker.Bounce(p, cache, tracker.WithBounceVolume(1), tracker.WithBounceClip(true))
	require.NoError(t, err)
	assert.Equal(t, float32(1), clipped[0])

	_, err = tracker.Bounce(stepbox.Pattern{}, cache)
	assert.ErrorIs(t, err, stepbox.ErrInvalidPattern)
}
