package render

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-midi2wav/analysis"
	"github.com/cwbudde/algo-midi2wav/midifile"
	"github.com/cwbudde/algo-midi2wav/sf2"
	"github.com/cwbudde/algo-midi2wav/synth"
	"github.com/cwbudde/algo-midi2wav/wavenc"
)

// Job renders one MIDI file to one WAV file.
type Job struct {
	Input  string
	Output string
}

// Result is the outcome of a finished Job.
type Result struct {
	Job    Job
	Stats  Stats
	Levels analysis.Levels
}

// BatchOptions controls Batch.
type BatchOptions struct {
	Workers  int // <= 0 means GOMAXPROCS
	BitDepth int
	MIDI     []midifile.Option
}

// Batch renders jobs concurrently against the shared, read-only bank. A
// running job owns its synthesizer; finished synthesizers are Reset and
// handed to later jobs. The first failure cancels jobs not yet started;
// results of completed jobs are returned in job order with the zero Result
// in unfinished slots.
func Batch(ctx context.Context, bank *sf2.Bank, jobs []Job, settings Settings, opts BatchOptions) ([]Result, error) {
	if err := wavenc.ValidateBitDepth(opts.BitDepth); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if settings.MaxTail < 0 || math.IsNaN(settings.MaxTail) {
		return nil, fmt.Errorf("render: max tail must be >= 0, got %g", settings.MaxTail)
	}

	// At most workers jobs run at once, so returning a synthesizer to the
	// pool never blocks.
	pool := make(chan *synth.Synthesizer, workers)
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var s *synth.Synthesizer
			select {
			case s = <-pool:
				s.Reset()
			default:
				var err error
				if s, err = synth.New(bank, settings.Synth); err != nil {
					return fmt.Errorf("render: %w", err)
				}
			}
			defer func() { pool <- s }()

			res, err := runJob(s, job, settings.MaxTail, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func runJob(s *synth.Synthesizer, job Job, maxTail float64, opts BatchOptions) (Result, error) {
	seq, err := midifile.LoadFile(job.Input, opts.MIDI...)
	if err != nil {
		return Result{}, err
	}
	buf, err := play(s, seq, maxTail)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", job.Input, err)
	}
	if err := wavenc.WriteFile(job.Output, buf, buf.SampleRate(), opts.BitDepth); err != nil {
		return Result{}, err
	}
	return Result{
		Job:    job,
		Stats:  buf.Stats,
		Levels: analysis.Measure(buf.Interleaved(), buf.NumChannels()),
	}, nil
}
