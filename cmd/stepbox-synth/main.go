package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/cmd"
	"github.com/stepbox/stepbox/oto"
	"github.com/stepbox/stepbox/record"
	"github.com/stepbox/stepbox/synth"
	"github.com/stepbox/stepbox/version"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (yaml, json or toml). Environment variables STEPBOX_* override it.")
	hold := flag.Duration("hold", 400*time.Millisecond, "How long each note is held.")
	gap := flag.Duration("gap", 100*time.Millisecond, "Silence between the release of a note and the next one.")
	velocity := flag.Float64("velocity", 1, "Note velocity, 0..1.")
	waveform := flag.String("waveform", "", "Override the waveform: sine, square, saw or triangle.")
	rec := flag.Bool("record", false, "Record the notes as a sample into the recording directory.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("stepbox-synth"))
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Args(), *configPath, *waveform, *hold, *gap, float32(*velocity), *rec); err != nil {
		fmt.Fprintf(os.Stderr, "stepbox-synth: %v\n", err)
		os.Exit(1)
	}
}

func run(notes []string, configPath, waveform string, hold, gap time.Duration, velocity float32, rec bool) error {
	cfg, logger, err := cmd.Setup(configPath, false)
	if err != nil {
		return err
	}
	if waveform != "" {
		cfg.Synth.Waveform = waveform
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	for _, n := range notes {
		if _, err := stepbox.ParseNote(n); err != nil {
			return err
		}
	}
	engine := synth.NewEngine(stepbox.SampleRate)
	engine.SetWaveform(cfg.Waveform())
	engine.SetADSR(cfg.ADSR())
	engine.SetMasterVolume(cfg.Synth.MasterVolume)

	var (
		source   stepbox.AudioSource = engine
		recorder *record.Recorder
		mu       sync.Mutex
		takes    []record.Metadata
	)
	if rec {
		recorder, err = record.NewRecorder(cfg.Recording.Dir, stepbox.SampleRate, stepbox.SynthChannels, cfg.Recording.MaxSeconds,
			record.WithLogger(logger),
			record.WithCompletion(func(m record.Metadata) {
				mu.Lock()
				takes = append(takes, m)
				mu.Unlock()
			}))
		if err != nil {
			return err
		}
		source = record.NewRecorderTap(engine, recorder)
	}

	audioContext, err := oto.NewContext(stepbox.SampleRate, stepbox.SynthChannels, cfg.Output.Buffer, oto.With16Bit(cfg.Output.PCM16))
	if err != nil {
		return fmt.Errorf("could not acquire oto AudioContext: %w", err)
	}
	defer audioContext.Close()
	player, err := audioContext.Play(source)
	if err != nil {
		return err
	}
	defer player.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if recorder != nil {
		if err := recorder.Start(); err != nil {
			return err
		}
	}
	err = playNotes(ctx, engine, notes, velocity, hold, gap)
	if err == nil {
		// let the last release ring out
		wait(ctx, time.Duration(cfg.Synth.Release*float64(time.Second))+gap)
	}
	if recorder != nil {
		if m, ok := recorder.Stop(); ok {
			mu.Lock()
			takes = append(takes, m)
			mu.Unlock()
		}
		mu.Lock()
		defer mu.Unlock()
		if len(takes) > 0 {
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			if err := enc.Encode(takes); err != nil {
				return err
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func playNotes(ctx context.Context, engine *synth.Engine, notes []string, velocity float32, hold, gap time.Duration) error {
	for _, n := range notes {
		if err := engine.NoteOnName(n, velocity); err != nil {
			return err
		}
		interrupted := !wait(ctx, hold)
		engine.NoteOffName(n)
		if interrupted || !wait(ctx, gap) {
			return ctx.Err()
		}
	}
	return nil
}

// wait sleeps for d and reports false if ctx was cancelled first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Stepbox command line utility for playing notes on the synthesizer, e.g. C4 E4 G4.\nUsage: %s [flags] note ...\n", os.Args[0])
	flag.PrintDefaults()
}
