// Package config loads the settings shared by the stepbox commands.
//
// Settings come from, in increasing priority: built-in defaults, an
// optional YAML (or JSON, TOML) file and environment variables named
// STEPBOX_<SECTION>_<KEY>, e.g. STEPBOX_CLOCK_BPM=96.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stepbox/stepbox/synth"
)

type (
	Config struct {
		Samples   Samples   `mapstructure:"samples"`
		Recording Recording `mapstructure:"recording"`
		Mixer     Mixer     `mapstructure:"mixer"`
		Synth     Synth     `mapstructure:"synth"`
		Clock     Clock     `mapstructure:"clock"`
		Output    Output    `mapstructure:"output"`
		Log       Log       `mapstructure:"log"`
	}

	Samples struct {
		Dir string `mapstructure:"dir"`
	}

	Recording struct {
		Dir        string  `mapstructure:"dir"`
		MaxSeconds float64 `mapstructure:"maxseconds"` // length limit of synth sample recordings
	}

	Mixer struct {
		MasterVolume float32 `mapstructure:"mastervolume"`
		Clip         bool    `mapstructure:"clip"`
	}

	Synth struct {
		MasterVolume float32 `mapstructure:"mastervolume"`
		Waveform     string  `mapstructure:"waveform"`
		Attack       float64 `mapstructure:"attack"`
		Decay        float64 `mapstructure:"decay"`
		Sustain      float64 `mapstructure:"sustain"`
		Release      float64 `mapstructure:"release"`
	}

	Clock struct {
		BPM   float64 `mapstructure:"bpm"`
		Swing float64 `mapstructure:"swing"`
		Steps int     `mapstructure:"steps"`
	}

	Output struct {
		Buffer time.Duration `mapstructure:"buffer"`
		PCM16  bool          `mapstructure:"pcm16"`
	}

	Log struct {
		Level string `mapstructure:"level"`
	}
)

const EnvPrefix = "STEPBOX"

var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("samples.dir", "samples")
	v.SetDefault("recording.dir", "recordings")
	v.SetDefault("recording.maxseconds", 10.0)
	v.SetDefault("mixer.mastervolume", 0.8)
	v.SetDefault("mixer.clip", false)
	v.SetDefault("synth.mastervolume", synth.DefaultMasterVolume)
	v.SetDefault("synth.waveform", synth.Sine.String())
	v.SetDefault("synth.attack", synth.DefaultADSR.Attack)
	v.SetDefault("synth.decay", synth.DefaultADSR.Decay)
	v.SetDefault("synth.sustain", synth.DefaultADSR.Sustain)
	v.SetDefault("synth.release", synth.DefaultADSR.Release)
	v.SetDefault("clock.bpm", 120.0)
	v.SetDefault("clock.swing", 0.0)
	v.SetDefault("clock.steps", 16)
	v.SetDefault("output.buffer", 100*time.Millisecond)
	v.SetDefault("output.pcm16", false)
	v.SetDefault("log.level", "info")
}

// Default returns the built-in configuration.
func Default() Config {
	c, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return c
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the values that would make the engine fail later on.
func (c *Config) Validate() error {
	var errs []error
	if !(c.Clock.BPM > 0) {
		errs = append(errs, fmt.Errorf("clock.bpm must be > 0, got %v", c.Clock.BPM))
	}
	if c.Clock.Steps <= 0 {
		errs = append(errs, fmt.Errorf("clock.steps must be > 0, got %v", c.Clock.Steps))
	}
	if c.Clock.Swing < 0 || c.Clock.Swing > 1 {
		errs = append(errs, fmt.Errorf("clock.swing must be within 0..1, got %v", c.Clock.Swing))
	}
	if c.Synth.Sustain < 0 || c.Synth.Sustain > 1 {
		errs = append(errs, fmt.Errorf("synth.sustain must be within 0..1, got %v", c.Synth.Sustain))
	}
	if _, err := synth.ParseWaveform(c.Synth.Waveform); err != nil {
		errs = append(errs, fmt.Errorf("synth.waveform: %w", err))
	}
	if c.Recording.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("recording.maxseconds must be > 0, got %v", c.Recording.MaxSeconds))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ADSR returns the synth envelope settings.
func (c *Config) ADSR() synth.ADSR {
	return synth.ADSR{Attack: c.Synth.Attack, Decay: c.Synth.Decay, Sustain: c.Synth.Sustain, Release: c.Synth.Release}
}

// Waveform returns the synth oscillator; an invalid name gives synth.Sine.
func (c *Config) Waveform() synth.Waveform {
	w, err := synth.ParseWaveform(c.Synth.Waveform)
	if err != nil {
		return synth.Sine
	}
	return w
}

// LogLevel parses log.level: debug, info, warn or error.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
