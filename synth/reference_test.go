package synth

import (
	"bytes"
	"math"
	"testing"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cwbudde/algo-midi2wav/analysis"
	"github.com/cwbudde/algo-midi2wav/internal/testbank"
)

// TestPitchAgreesWithMeltySynth plays the same bank through meltysynth and
// checks both engines land on the same pitch.
func TestPitchAgreesWithMeltySynth(t *testing.T) {
	const sampleRate = 44100
	opts := testbank.Options{}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(testbank.Build(opts)))
	if err != nil {
		t.Fatalf("meltysynth rejected the test bank: %v", err)
	}

	for _, key := range []int{48, 60, 67, 72} {
		settings := meltysynth.NewSynthesizerSettings(sampleRate)
		settings.EnableReverbAndChorus = false
		ref, err := meltysynth.NewSynthesizer(sf, settings)
		if err != nil {
			t.Fatalf("meltysynth.NewSynthesizer: %v", err)
		}
		ref.NoteOn(0, int32(key), 100)
		left := make([]float32, 20000)
		right := make([]float32, 20000)
		ref.Render(left, right)
		refLeft := make([]float64, len(left))
		for i, v := range left {
			refLeft[i] = float64(v)
		}
		want, err := analysis.DominantFrequency(refLeft, sampleRate)
		if err != nil {
			t.Fatalf("DominantFrequency: %v", err)
		}

		s := newSynth(t, opts, drySettings())
		s.NoteOn(0, key, 100)
		got := measureFrequency(t, s.RenderBlock(20000), sampleRate)
		if math.Abs(got-want)/want > 0.005 {
			t.Fatalf("key %d: meltysynth %.2f Hz, synth %.2f Hz", key, want, got)
		}
	}
}
