package synth

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-midi2wav/analysis"
	"github.com/cwbudde/algo-midi2wav/internal/testbank"
	"github.com/cwbudde/algo-midi2wav/sf2"
)

// drySettings disables the send effects so output is the voice mix only.
func drySettings() Settings {
	s := DefaultSettings()
	s.Reverb.Enabled = false
	s.Chorus.Enabled = false
	s.MasterGain = 1
	return s
}

func loadBank(t *testing.T, opts testbank.Options) *sf2.Bank {
	t.Helper()
	b, err := sf2.Load(testbank.Build(opts))
	if err != nil {
		t.Fatalf("load test bank: %v", err)
	}
	return b
}

func newSynth(t *testing.T, opts testbank.Options, settings Settings) *Synthesizer {
	t.Helper()
	s, err := New(loadBank(t, opts), settings)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// sineRootHz is the actual pitch of the test bank's root-key sine, whose
// period is rounded to whole samples.
func sineRootHz() float64 {
	return 44100 / math.Round(44100/(440*math.Pow(2, -9.0/12)))
}

func stereoRMS(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(x)))
}

func measureFrequency(t *testing.T, x []float64, sampleRate int) float64 {
	t.Helper()
	f, err := analysis.DominantFrequency(analysis.Channel(x, 2, 0), sampleRate)
	if err != nil {
		t.Fatalf("DominantFrequency: %v", err)
	}
	return f
}

func activeKeys(s *Synthesizer) map[int]int {
	keys := map[int]int{}
	for i := range s.voices {
		if s.voices[i].active {
			keys[s.voices[i].key]++
		}
	}
	return keys
}

func gens(pairs ...int) []testbank.Generator {
	out := make([]testbank.Generator, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, testbank.Generator{Op: uint16(pairs[i]), Amount: int16(pairs[i+1])})
	}
	return out
}
