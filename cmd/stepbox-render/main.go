package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stepbox/stepbox"
	"github.com/stepbox/stepbox/cmd"
	"github.com/stepbox/stepbox/sample"
	"github.com/stepbox/stepbox/tracker"
	"github.com/stepbox/stepbox/version"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (yaml, json or toml). Environment variables STEPBOX_* override it.")
	out := flag.String("o", "", "Output file, .wav or .mid. By default, the pattern file name with the extension .wav.")
	loops := flag.Int("loops", 1, "How many times the pattern is played.")
	tail := flag.Duration("tail", 5*time.Second, "Maximum time sounds may ring after the last loop.")
	pcm := flag.Bool("pcm16", false, "Write 16-bit signed PCM instead of 32-bit float.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("stepbox-render"))
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *out != "" && flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "stepbox-render: -o can only be used with a single pattern")
		os.Exit(2)
	}
	cfg, logger, err := cmd.Setup(*configPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stepbox-render: %v\n", err)
		os.Exit(1)
	}
	cache := sample.NewCache(stepbox.SampleRate, stepbox.MixChannels, sample.WithLogger(logger))
	retval := 0
	for _, param := range flag.Args() {
		target := *out
		if target == "" {
			target = strings.TrimSuffix(param, filepath.Ext(param)) + ".wav"
		}
		pattern, err := cmd.LoadPattern(param, cfg.Samples.Dir)
		if err == nil {
			err = render(pattern, cache, target, *pcm,
				tracker.WithLoops(*loops),
				tracker.WithTail(*tail),
				tracker.WithBounceVolume(cfg.Mixer.MasterVolume),
				tracker.WithBounceClip(cfg.Mixer.Clip),
				tracker.WithBounceLogger(logger))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
			continue
		}
		logger.Info("rendered", "pattern", param, "output", target)
	}
	os.Exit(retval)
}

func render(p stepbox.Pattern, cache *sample.Cache, target string, pcm16 bool, opts ...tracker.BounceOption) error {
	ext := strings.ToLower(filepath.Ext(target))
	if ext != ".wav" && ext != ".mid" && ext != ".midi" {
		return fmt.Errorf("unknown output format %q", filepath.Ext(target))
	}
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %w", dir, err)
		}
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()
	if ext != ".wav" {
		return p.WriteMIDI(f, nil)
	}
	buffer, err := tracker.Bounce(p, cache, opts...)
	if err != nil {
		return err
	}
	if pcm16 {
		return stepbox.WritePCM16Wav(f, buffer, stepbox.SampleRate, stepbox.MixChannels)
	}
	wav, err := stepbox.Wav(buffer, stepbox.WavFormat{SampleRate: stepbox.SampleRate, Channels: stepbox.MixChannels})
	if err != nil {
		return fmt.Errorf("could not generate .wav file: %w", err)
	}
	if _, err := f.Write(wav); err != nil {
		return fmt.Errorf("could not write file %v: %w", target, err)
	}
	return f.Close()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Stepbox command line utility for rendering .yml/.json drum patterns to .wav or .mid files.\nUsage: %s [flags] [pattern ...]\n", os.Args[0])
	flag.PrintDefaults()
}
