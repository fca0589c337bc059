package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-midi2wav/analysis"
	"github.com/cwbudde/algo-midi2wav/internal/audioio"
	"github.com/cwbudde/algo-midi2wav/irsynth"
)

func main() {
	cfg := irsynth.DefaultConfig()

	output := flag.String("output", "room.wav", "Output WAV path")
	room := flag.Float64("room", 0, "Room length in seconds; sets duration and decay times together")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.PreDelayS, "pre-delay", cfg.PreDelayS, "Delay before the first reflection (s)")
	flag.Float64Var(&cfg.Brightness, "brightness", cfg.Brightness, "Spectral brightness control (>0)")
	flag.Float64Var(&cfg.StereoWidth, "stereo-width", cfg.StereoWidth, "Stereo decorrelation width")
	flag.IntVar(&cfg.EarlyCount, "early", cfg.EarlyCount, "Number of early reflections")
	flag.Float64Var(&cfg.LateLevel, "late", cfg.LateLevel, "Diffuse late-tail level")
	flag.Float64Var(&cfg.LowDecayS, "low-decay", cfg.LowDecayS, "Low-frequency decay time (s)")
	flag.Float64Var(&cfg.HighDecayS, "high-decay", cfg.HighDecayS, "High-frequency decay time (s)")
	flag.Float64Var(&cfg.NormalizePeak, "normalize", cfg.NormalizePeak, "Peak normalization target")
	flag.Parse()

	if *room > 0 {
		scaled := irsynth.ForRoom(cfg.SampleRate, *room)
		cfg.DurationS, cfg.LowDecayS, cfg.HighDecayS = scaled.DurationS, scaled.LowDecayS, scaled.HighDecayS
	}

	left, right, err := irsynth.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ir-synth error: %v\n", err)
		os.Exit(1)
	}

	if err := audioio.WriteStereoWAV(*output, left, right, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	interleaved := make([]float64, 2*len(left))
	for i := range left {
		interleaved[2*i] = float64(left[i])
		interleaved[2*i+1] = float64(right[i])
	}
	l := analysis.Measure(interleaved, 2)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", l.Peak, l.RMS)
}
