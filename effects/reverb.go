// Package effects implements the send effects fed by the synthesizer's
// reverb and chorus buses.
package effects

import (
	"fmt"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
	"github.com/cwbudde/algo-midi2wav/irsynth"
)

// ReverbSettings configures the reverb send.
type ReverbSettings struct {
	Enabled bool
	// IRPath points at a mono or stereo WAV impulse response. When empty a
	// synthetic room of RoomSeconds is generated.
	IRPath      string
	RoomSeconds float64
	Level       float64
}

// Reverb convolves a mono send bus with a stereo impulse response using
// uniformly partitioned overlap-save convolution. Input is buffered into
// fixed partitions, so output lags input by PartSize frames.
type Reverb struct {
	partSize int
	irLen    int
	level    float64

	plan *algofft.Plan[complex128]
	irL  [][]complex128 // IR partition spectra
	irR  [][]complex128
	fdl  [][]complex128 // input spectra, fdl[head] is the newest
	head int

	prev  []float64
	in    []float64
	frame []complex128
	acc   []complex128
	outL  []float64
	outR  []float64
	pos   int
	err   error
}

// PartSize is the convolution partition length in frames.
const PartSize = 128

// NewReverb builds a reverb from stereo IR channels.
func NewReverb(left, right []float32, level float64) (*Reverb, error) {
	if len(left) == 0 || len(right) == 0 {
		return nil, fmt.Errorf("reverb: empty impulse response")
	}
	plan, err := algofft.NewPlan64(2 * PartSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: fft plan: %w", err)
	}
	irLen := max(len(left), len(right))
	parts := (irLen + PartSize - 1) / PartSize
	irL, err := partitionSpectra(plan, left, parts)
	if err != nil {
		return nil, fmt.Errorf("reverb: left partitions: %w", err)
	}
	irR, err := partitionSpectra(plan, right, parts)
	if err != nil {
		return nil, fmt.Errorf("reverb: right partitions: %w", err)
	}
	fdl := make([][]complex128, parts)
	for k := range fdl {
		fdl[k] = make([]complex128, 2*PartSize)
	}
	return &Reverb{
		partSize: PartSize,
		irLen:    irLen,
		level:    level,
		plan:     plan,
		irL:      irL,
		irR:      irR,
		fdl:      fdl,
		prev:     make([]float64, PartSize),
		in:       make([]float64, PartSize),
		frame:    make([]complex128, 2*PartSize),
		acc:      make([]complex128, 2*PartSize),
		outL:     make([]float64, PartSize),
		outR:     make([]float64, PartSize),
	}, nil
}

// partitionSpectra splits ir into parts zero-padded partitions and
// transforms each one.
func partitionSpectra(plan *algofft.Plan[complex128], ir []float32, parts int) ([][]complex128, error) {
	buf := make([]complex128, 2*PartSize)
	spectra := make([][]complex128, parts)
	for k := range spectra {
		clear(buf)
		for i := 0; i < PartSize && k*PartSize+i < len(ir); i++ {
			buf[i] = complex(float64(ir[k*PartSize+i]), 0)
		}
		spectra[k] = make([]complex128, 2*PartSize)
		if err := plan.Forward(spectra[k], buf); err != nil {
			return nil, err
		}
	}
	return spectra, nil
}

// NewReverbFromSettings loads or synthesizes the impulse response described
// by s at sampleRate.
func NewReverbFromSettings(sampleRate int, s ReverbSettings) (*Reverb, error) {
	var left, right []float32
	var err error
	if s.IRPath != "" {
		left, right, err = audioio.ReadStereoWAV(s.IRPath, sampleRate)
	} else {
		left, right, err = irsynth.Generate(irsynth.ForRoom(sampleRate, s.RoomSeconds))
	}
	if err != nil {
		return nil, fmt.Errorf("reverb impulse response: %w", err)
	}
	return NewReverb(left, right, s.Level)
}

// Process convolves send and adds the wet signal into dst, which holds
// len(send) interleaved stereo frames. After a convolution error the wet
// signal is silent and Err reports the error.
func (r *Reverb) Process(send []float64, dst []float64) {
	for i, x := range send {
		dst[2*i] += r.level * r.outL[r.pos]
		dst[2*i+1] += r.level * r.outR[r.pos]
		r.in[r.pos] = x
		r.pos++
		if r.pos == r.partSize {
			r.pos = 0
			r.flush()
		}
	}
}

func (r *Reverb) flush() {
	if r.err != nil {
		return
	}
	p := r.partSize
	for i := 0; i < p; i++ {
		r.frame[i] = complex(r.prev[i], 0)
		r.frame[p+i] = complex(r.in[i], 0)
	}
	copy(r.prev, r.in)
	r.head = (r.head + len(r.fdl) - 1) % len(r.fdl)
	if err := r.plan.Forward(r.fdl[r.head], r.frame); err != nil {
		r.fail(err)
		return
	}
	if err := r.convolve(r.irL, r.outL); err != nil {
		r.fail(err)
		return
	}
	if err := r.convolve(r.irR, r.outR); err != nil {
		r.fail(err)
	}
}

// convolve accumulates the partition products for one channel and keeps
// the second half of the inverse transform. Real signals have conjugate
// symmetric spectra, so only bins 0..N/2 are accumulated.
func (r *Reverb) convolve(ir [][]complex128, out []float64) error {
	n := len(r.acc)
	half := r.acc[:n/2+1]
	clear(half)
	for k, h := range ir {
		x := r.fdl[(r.head+k)%len(r.fdl)]
		for i := range half {
			half[i] += h[i] * x[i]
		}
	}
	for i := 1; i < n/2; i++ {
		r.acc[n-i] = cmplx.Conj(r.acc[i])
	}
	if err := r.plan.Inverse(r.frame, r.acc); err != nil {
		return err
	}
	for i := range out {
		out[i] = real(r.frame[r.partSize+i])
	}
	return nil
}

func (r *Reverb) fail(err error) {
	r.err = fmt.Errorf("reverb: convolution: %w", err)
	clear(r.outL)
	clear(r.outR)
}

// TailFrames is the number of frames the reverb keeps ringing after its
// input goes silent.
func (r *Reverb) TailFrames() int { return r.irLen + r.partSize }

// Err returns the first convolution error, if any.
func (r *Reverb) Err() error { return r.err }

// Reset clears the input history, buffered partitions and any error.
func (r *Reverb) Reset() {
	for _, x := range r.fdl {
		clear(x)
	}
	clear(r.prev)
	clear(r.in)
	clear(r.outL)
	clear(r.outR)
	r.head, r.pos = 0, 0
	r.err = nil
}
