package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestLoadPatternResolvesSamples(t *testing.T) {
	dir := t.TempDir()
	samples := filepath.Join(dir, "samples")
	touch(t, filepath.Join(dir, "patterns", "kick.wav"))
	touch(t, filepath.Join(samples, "snare.wav"))
	p := stepbox.Pattern{BPM: 100, Tracks: []stepbox.Track{
		stepbox.NewTrack("Kick", "kick.wav", 16),
		stepbox.NewTrack("Snare", "snare.wav", 16),
		stepbox.NewTrack("Tom", "tom.wav", 16),
		stepbox.NewTrack("Empty", "", 16),
	}}
	path := filepath.Join(dir, "patterns", "groove.yml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, p.Write(f, path))
	require.NoError(t, f.Close())

	got, err := LoadPattern(path, samples)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.BPM)
	assert.Equal(t, filepath.Join(dir, "patterns", "kick.wav"), got.Tracks[0].SamplePath)
	assert.Equal(t, filepath.Join(samples, "snare.wav"), got.Tracks[1].SamplePath)
	assert.Equal(t, "tom.wav", got.Tracks[2].SamplePath, "missing samples are left as they are")
	assert.Equal(t, "", got.Tracks[3].SamplePath)
}

func TestLoadPatternErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadPattern(filepath.Join(dir, "none.yml"), "")
	assert.Error(t, err)
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("bpm: -1\n"), 0o644))
	_, err = LoadPattern(bad, "")
	assert.ErrorIs(t, err, stepbox.ErrInvalidPattern)
}

func TestDrain(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	broker := tracker.NewBroker()
	broker.ToUI <- tracker.MsgToUI{Kind: tracker.MsgHitStarted, Track: 2, Step: 5}
	broker.ToUI <- tracker.MsgToUI{Kind: tracker.MsgRecording, Data: "take.wav"}
	broker.Alert("disk almost full", tracker.Warning, time.Second)
	buf := broker.GetAudioBuffer()
	*buf = append(*buf, 1, 1)
	meter := tracker.NewMeter()
	broker.ToMeter <- buf

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Drain(ctx, broker, meter, logger)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(broker.ToUI) == 0 && len(broker.ToMeter) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
	s := out.String()
	assert.Contains(t, s, "track=2")
	assert.Contains(t, s, "path=take.wav")
	assert.Contains(t, s, "level=WARN msg=\"disk almost full\"")
	assert.Greater(t, meter.Peak.Level[0], -60.0)
}
