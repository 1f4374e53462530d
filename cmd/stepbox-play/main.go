package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/cmd"
	"github.com/stepbox/stepbox/oto"
	"github.com/stepbox/stepbox/sample"
	"github.com/stepbox/stepbox/tracker"
	"github.com/stepbox/stepbox/version"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (yaml, json or toml). Environment variables STEPBOX_* override it.")
	record := flag.String("record", "", "Record the output to this .wav file while playing.")
	duration := flag.Duration("duration", 0, "Stop after this long. By default, play until interrupted.")
	bpm := flag.Float64("bpm", 0, "Override the tempo of the pattern.")
	swing := flag.Float64("swing", -1, "Override the swing of the pattern, 0..1.")
	debug := flag.Bool("debug", false, "Log every step and hit.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("stepbox-play"))
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *configPath, *record, *duration, *bpm, *swing, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "stepbox-play: %v\n", err)
		os.Exit(1)
	}
}

func run(patternPath, configPath, record string, duration time.Duration, bpm, swing float64, debug bool) error {
	cfg, logger, err := cmd.Setup(configPath, debug)
	if err != nil {
		return err
	}
	pattern, err := cmd.LoadPattern(patternPath, cfg.Samples.Dir)
	if err != nil {
		return err
	}
	if bpm > 0 {
		pattern.BPM = bpm
	}
	if swing >= 0 {
		pattern.Swing = min(swing, 1)
	}
	broker := tracker.NewBroker()
	cache := sample.NewCache(stepbox.SampleRate, stepbox.MixChannels, sample.WithLogger(logger))
	engine := tracker.NewEngine(cache,
		tracker.WithBroker(broker),
		tracker.WithEngineLogger(logger),
		tracker.WithMasterVolume(cfg.Mixer.MasterVolume),
		tracker.WithClip(cfg.Mixer.Clip))
	session, err := tracker.NewSession(engine, broker, pattern, tracker.WithSessionLogger(logger))
	if err != nil {
		return err
	}
	defer session.Close()

	audioContext, err := oto.NewContext(stepbox.SampleRate, stepbox.MixChannels, cfg.Output.Buffer, oto.With16Bit(cfg.Output.PCM16))
	if err != nil {
		return fmt.Errorf("could not acquire oto AudioContext: %w", err)
	}
	defer audioContext.Close()
	player, err := audioContext.Play(engine)
	if err != nil {
		return err
	}
	defer player.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	go cmd.Drain(ctx, broker, tracker.NewMeter(), logger)

	if record != "" {
		if err := session.StartExport(record); err != nil {
			return err
		}
	} else {
		session.Play()
	}
	logger.Info("playing", "pattern", patternPath, "bpm", pattern.BPM, "swing", pattern.Swing, "steps", session.StepCount())
	<-ctx.Done()
	if err := session.Stop(); err != nil {
		return fmt.Errorf("recording failed: %w", err)
	}
	if err := engine.RecordingErr(); err != nil {
		return fmt.Errorf("recording failed: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Stepbox command line utility for playing .yml/.json drum patterns.\nUsage: %s [flags] pattern\n", os.Args[0])
	flag.PrintDefaults()
}
