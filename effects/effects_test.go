package effects

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
)

func TestReverbIdentityIRDelaysByOnePartition(t *testing.T) {
	r, err := NewReverb([]float32{1}, []float32{0.5}, 0.8)
	if err != nil {
		t.Fatalf("NewReverb: %v", err)
	}
	frames := 3 * PartSize
	send := make([]float64, frames)
	send[10] = 1
	dst := make([]float64, 2*frames)
	// Feed in uneven chunks to exercise partition buffering.
	for start := 0; start < frames; {
		end := min(start+37, frames)
		r.Process(send[start:end], dst[2*start:2*end])
		start = end
	}
	for i := 0; i < frames; i++ {
		wantL, wantR := 0.0, 0.0
		if i == 10+PartSize {
			wantL, wantR = 0.8, 0.4
		}
		if math.Abs(dst[2*i]-wantL) > 1e-5 || math.Abs(dst[2*i+1]-wantR) > 1e-5 {
			t.Fatalf("frame %d: expected (%f,%f) got (%f,%f)", i, wantL, wantR, dst[2*i], dst[2*i+1])
		}
	}
	if r.Err() != nil {
		t.Fatalf("unexpected convolution error: %v", r.Err())
	}
}

func TestReverbMatchesDirectConvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	irL := make([]float32, 3*PartSize+41)
	irR := make([]float32, 2*PartSize+5)
	for i := range irL {
		irL[i] = float32(rng.NormFloat64() * math.Exp(-float64(i)/100))
	}
	for i := range irR {
		irR[i] = float32(rng.NormFloat64() * math.Exp(-float64(i)/80))
	}
	r, err := NewReverb(irL, irR, 1)
	if err != nil {
		t.Fatalf("NewReverb: %v", err)
	}

	frames := 8 * PartSize
	send := make([]float64, frames)
	for i := range 5 * PartSize {
		send[i] = rng.Float64()*2 - 1
	}
	dst := make([]float64, 2*frames)
	for start := 0; start < frames; {
		end := min(start+100, frames)
		r.Process(send[start:end], dst[2*start:2*end])
		start = end
	}

	for ch, ir := range [][]float32{irL, irR} {
		kernel := make([]float64, len(ir))
		for i, v := range ir {
			kernel[i] = float64(v)
		}
		want, err := dspconv.Direct(send, kernel)
		if err != nil {
			t.Fatalf("Direct: %v", err)
		}
		for i := PartSize; i < frames; i++ {
			if got := dst[2*i+ch]; math.Abs(got-want[i-PartSize]) > 1e-9 {
				t.Fatalf("channel %d frame %d: expected %g, got %g", ch, i, want[i-PartSize], got)
			}
		}
	}
}

func TestReverbReportsConvolutionError(t *testing.T) {
	r, err := NewReverb([]float32{1}, []float32{1}, 1)
	if err != nil {
		t.Fatalf("NewReverb: %v", err)
	}
	// A plan of the wrong size makes every transform fail.
	if r.plan, err = algofft.NewPlan64(PartSize); err != nil {
		t.Fatalf("NewPlan64: %v", err)
	}
	send := make([]float64, 3*PartSize)
	send[0] = 1
	dst := make([]float64, 2*len(send))
	r.Process(send, dst)
	if !errors.Is(r.Err(), algofft.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch error, got %v", r.Err())
	}
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("expected silent wet signal after error, got %g at %d", v, i)
		}
	}

	r.Reset()
	if r.Err() != nil {
		t.Fatalf("expected Reset to clear the error")
	}
}

func TestReverbSilenceStaysExactlyZero(t *testing.T) {
	r, err := NewReverbFromSettings(44100, ReverbSettings{Enabled: true, RoomSeconds: 0.3, Level: 1})
	if err != nil {
		t.Fatalf("NewReverbFromSettings: %v", err)
	}
	dst := make([]float64, 2*4096)
	r.Process(make([]float64, 4096), dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("expected exact silence, got %g at %d", v, i)
		}
	}
	if r.TailFrames() != int(0.3*44100)+PartSize {
		t.Fatalf("unexpected tail length %d", r.TailFrames())
	}
}

func TestReverbRejectsBadInputs(t *testing.T) {
	if _, err := NewReverb(nil, []float32{1}, 1); err == nil {
		t.Fatalf("expected error for empty IR")
	}
	_, err := NewReverbFromSettings(44100, ReverbSettings{IRPath: filepath.Join(t.TempDir(), "missing.wav")})
	var ioErr *audioio.IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped IOError, got %v", err)
	}
}

func TestReverbLoadsIRFromWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.wav")
	ir := make([]float32, 256)
	ir[0] = 0.5
	if err := audioio.WriteStereoWAV(path, ir, ir, 44100); err != nil {
		t.Fatalf("WriteStereoWAV: %v", err)
	}
	r, err := NewReverbFromSettings(44100, ReverbSettings{IRPath: path, Level: 1})
	if err != nil {
		t.Fatalf("NewReverbFromSettings: %v", err)
	}
	if r.TailFrames() != 256+PartSize {
		t.Fatalf("expected IR length 256, got tail %d", r.TailFrames())
	}
}

func TestChorusDelaysAroundBaseDelay(t *testing.T) {
	const sr = 44100
	// A zero rate pins the left tap at the base delay.
	c := NewChorus(sr, ChorusSettings{Enabled: true, DepthMs: 2, RateHz: 0, Level: 1})
	frames := 2048
	send := make([]float64, frames)
	send[0] = 1
	dst := make([]float64, 2*frames)
	c.Process(send, dst)

	peakAt := 0
	for i := range frames {
		if math.Abs(dst[2*i]) > math.Abs(dst[2*peakAt]) {
			peakAt = i
		}
	}
	base := chorusBaseDelayMs * sr / 1000
	if math.Abs(float64(peakAt)-base) > 2 {
		t.Fatalf("expected left echo near %f frames, got %d", base, peakAt)
	}

	c.Reset()
	clear(dst)
	c.Process(make([]float64, frames), dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("expected silence after reset, got %g at %d", v, i)
		}
	}
}
