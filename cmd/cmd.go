// Package cmd holds the setup shared by the stepbox commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/config"
	"github.com/stepbox/stepbox/tracker"
)

// Setup loads the configuration (configPath may be empty) and installs a
// stderr logger at the configured level as the slog default.
func Setup(configPath string, debug bool) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// LoadPattern reads a pattern file. Relative sample paths that do not exist
// as given are looked up next to the pattern file and then in samplesDir.
func LoadPattern(path, samplesDir string) (stepbox.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return stepbox.Pattern{}, fmt.Errorf("could not open pattern: %w", err)
	}
	defer f.Close()
	p, err := stepbox.ReadPattern(f)
	if err != nil {
		return stepbox.Pattern{}, fmt.Errorf("%s: %w", path, err)
	}
	for i := range p.Tracks {
		p.Tracks[i].SamplePath = resolve(p.Tracks[i].SamplePath, filepath.Dir(path), samplesDir)
	}
	return p, nil
}

func resolve(sample string, dirs ...string) string {
	if sample == "" || filepath.IsAbs(sample) || exists(sample) {
		return sample
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if c := filepath.Join(d, sample); exists(c) {
			return c
		}
	}
	return sample
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Drain consumes the broker until ctx is done, logging alerts, recording
// changes and, at debug level, steps with the output level and hits. Meter
// buffers update meter and are returned to the pool.
func Drain(ctx context.Context, broker *tracker.Broker, meter *tracker.Meter, logger *slog.Logger) {
	nanReported := false
	for {
		select {
		case <-ctx.Done():
			return
		case buf := <-broker.ToMeter:
			if err := meter.Update(*buf); err != nil && !nanReported {
				logger.Warn("bad output", "err", err)
				nanReported = true
			}
			broker.PutAudioBuffer(buf)
		case msg := <-broker.ToUI:
			logMessage(logger, meter, msg)
		}
	}
}

func logMessage(logger *slog.Logger, meter *tracker.Meter, msg tracker.MsgToUI) {
	switch msg.Kind {
	case tracker.MsgStep:
		logger.Debug("step", "step", msg.Step, "peak", fmt.Sprintf("%.1f/%.1f dB", meter.Peak.Level[0], meter.Peak.Level[1]))
	case tracker.MsgHitStarted:
		logger.Debug("hit", "track", msg.Track, "step", msg.Step)
	case tracker.MsgAlert:
		level := slog.LevelInfo
		switch msg.Alert.Type {
		case tracker.Warning:
			level = slog.LevelWarn
		case tracker.Error:
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, msg.Alert.Message)
	case tracker.MsgRecording:
		if path, _ := msg.Data.(string); path != "" {
			logger.Info("recording started", "path", path)
		} else {
			logger.Info("recording stopped")
		}
	}
}
