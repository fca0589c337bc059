package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-midi2wav/analysis"
	"github.com/cwbudde/algo-midi2wav/config"
	"github.com/cwbudde/algo-midi2wav/midifile"
	"github.com/cwbudde/algo-midi2wav/render"
	"github.com/cwbudde/algo-midi2wav/sf2"
	"github.com/cwbudde/algo-midi2wav/synth"
	"github.com/cwbudde/algo-midi2wav/wavenc"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	midiPath   string
	sf2Path    string
	outputPath string
	configPath string
	sampleRate int
	bitDepth   int
	polyphony  int
	tail       float64
	gain       float64
	interp     string
	steal      string
	irPath     string
	noEffects  bool
	strict     bool
	workers    int
	quiet      bool
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("midi2wav", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.midiPath, "midi-file", "", "Input MIDI file")
	fs.StringVar(&o.midiPath, "i", "", "Shorthand for -midi-file")
	fs.StringVar(&o.sf2Path, "soundfont-file", "", "SoundFont (.sf2) bank")
	fs.StringVar(&o.sf2Path, "s", "", "Shorthand for -soundfont-file")
	fs.StringVar(&o.outputPath, "output-file", "", "Output WAV file (default: MIDI path with .wav)")
	fs.StringVar(&o.outputPath, "o", "", "Shorthand for -output-file")
	fs.IntVar(&o.sampleRate, "sample-rate", 44100, "Output sample rate in Hz")
	fs.IntVar(&o.sampleRate, "r", 44100, "Shorthand for -sample-rate")
	fs.IntVar(&o.bitDepth, "bit-depth", 16, "Output bit depth: 8, 16, 24 or 32")
	fs.IntVar(&o.bitDepth, "d", 16, "Shorthand for -bit-depth")
	fs.StringVar(&o.configPath, "config", "", "Render settings JSON file (flags override it)")
	fs.IntVar(&o.polyphony, "polyphony", 64, "Maximum simultaneous voices")
	fs.Float64Var(&o.tail, "tail", 0, "Seconds to keep rendering after the last event while sound decays")
	fs.Float64Var(&o.gain, "gain", 0.5, "Master gain")
	fs.StringVar(&o.interp, "interp", "cubic", "Sample interpolation: cubic or linear")
	fs.StringVar(&o.steal, "steal", "quietest", "Voice stealing policy: quietest or oldest")
	fs.StringVar(&o.irPath, "ir", "", "Reverb impulse response WAV (default: synthetic room)")
	fs.BoolVar(&o.noEffects, "no-effects", false, "Disable reverb and chorus")
	fs.BoolVar(&o.strict, "strict", false, "Reject unknown MIDI chunks")
	fs.IntVar(&o.workers, "j", 0, "Parallel renders for batch input (default: CPU count)")
	fs.BoolVar(&o.quiet, "q", false, "Only print errors")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: midi2wav -i song.mid -s bank.sf2 [-o out.wav] [flags]\n")
		fmt.Fprintf(stderr, "       midi2wav -s bank.sf2 [flags] a.mid b.mid ...\n\n")
		fs.PrintDefaults()
	}
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet(&o, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	inputs := fs.Args()
	if o.midiPath != "" {
		inputs = append([]string{o.midiPath}, inputs...)
	}
	if len(inputs) == 0 || o.sf2Path == "" {
		fmt.Fprintln(stderr, "midi2wav: a MIDI file and a SoundFont file are required")
		fs.Usage()
		return exitUsage
	}
	if o.outputPath != "" && len(inputs) > 1 {
		fmt.Fprintln(stderr, "midi2wav: -o cannot be used with several input files")
		return exitUsage
	}

	settings, err := buildSettings(&o, set)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	logf := func(format string, args ...any) {
		if !o.quiet {
			fmt.Fprintf(stdout, format, args...)
		}
	}

	logf("Reading SoundFont file %s\n", o.sf2Path)
	bank, err := sf2.LoadFile(o.sf2Path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading SoundFont: %v\n", err)
		return exitError
	}
	logf("Bank %q: %d presets, %d instruments, %d samples\n", bank.Info.Name, len(bank.Presets), len(bank.Instruments), len(bank.Samples))

	if len(inputs) == 1 {
		out := o.outputPath
		if out == "" {
			out = defaultOutput(inputs[0])
		}
		if err := renderOne(bank, inputs[0], out, settings, logf); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	jobs := make([]render.Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = render.Job{Input: in, Output: defaultOutput(in)}
	}
	logf("Rendering %d files\n", len(jobs))
	results, err := render.Batch(context.Background(), bank, jobs, settings.Render, render.BatchOptions{
		Workers:  o.workers,
		BitDepth: settings.BitDepth,
		MIDI:     settings.MIDIOptions(),
	})
	for _, res := range results {
		if res.Job.Output != "" {
			logf("Wrote %s (%s)\n", res.Job.Output, summary(res.Stats, res.Levels, settings.Render.Synth.SampleRate))
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// buildSettings layers the config file and explicitly set flags over the
// defaults. The bit depth is checked before anything is loaded.
func buildSettings(o *options, set map[string]bool) (*config.Settings, error) {
	if set["bit-depth"] || set["d"] {
		if err := wavenc.ValidateBitDepth(o.bitDepth); err != nil {
			return nil, err
		}
	}
	s := config.Default()
	if o.configPath != "" {
		var err error
		if s, err = config.LoadJSON(o.configPath); err != nil {
			return nil, err
		}
	}
	syn := &s.Render.Synth
	if set["sample-rate"] || set["r"] {
		syn.SampleRate = o.sampleRate
	}
	if set["bit-depth"] || set["d"] {
		s.BitDepth = o.bitDepth
	}
	if set["polyphony"] {
		syn.Polyphony = o.polyphony
	}
	if set["tail"] {
		s.Render.MaxTail = o.tail
	}
	if set["gain"] {
		syn.MasterGain = o.gain
	}
	if set["interp"] {
		interp, err := synth.ParseInterpolation(o.interp)
		if err != nil {
			return nil, err
		}
		syn.Interpolation = interp
	}
	if set["steal"] {
		steal, err := synth.ParseStealPolicy(o.steal)
		if err != nil {
			return nil, err
		}
		syn.Steal = steal
	}
	if o.irPath != "" {
		syn.Reverb.IRPath = o.irPath
	}
	if o.noEffects {
		syn.Reverb.Enabled = false
		syn.Chorus.Enabled = false
	}
	if o.strict {
		s.StrictMIDI = true
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func renderOne(bank *sf2.Bank, in, out string, s *config.Settings, logf func(string, ...any)) error {
	logf("Reading MIDI file %s\n", in)
	seq, err := midifile.LoadFile(in, s.MIDIOptions()...)
	if err != nil {
		return err
	}
	logf("%d events over %.3fs (format %d, %d tracks)\n", len(seq.Events), seq.Length, seq.Format, seq.Tracks)

	logf("Rendering to buffer at %d Hz\n", s.Render.Synth.SampleRate)
	buf, err := render.Render(bank, seq, s.Render)
	if err != nil {
		return err
	}
	if err := wavenc.WriteFile(out, buf, buf.SampleRate(), s.BitDepth); err != nil {
		return err
	}
	levels := analysis.Measure(buf.Interleaved(), buf.NumChannels())
	logf("Wrote %s (%s)\n", out, summary(buf.Stats, levels, buf.SampleRate()))
	return nil
}

func summary(st render.Stats, l analysis.Levels, sampleRate int) string {
	return fmt.Sprintf("%d frames, %.3fs, tail %.3fs, peak %.1f dBFS, rms %.1f dBFS, clipped %d, peak voices %d",
		st.Frames, float64(st.Frames)/float64(sampleRate), float64(st.TailFrames)/float64(sampleRate),
		l.PeakDB, l.RMSDB, l.Clipped, st.PeakVoices)
}

func defaultOutput(midiPath string) string {
	return strings.TrimSuffix(midiPath, filepath.Ext(midiPath)) + ".wav"
}
