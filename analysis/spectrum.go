package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// DominantFrequency returns the frequency in Hz of the strongest spectral
// peak of x, refined by parabolic interpolation over log magnitudes. Only
// the first power-of-two window of x (at most 65536 points) is analysed.
func DominantFrequency(x []float64, sampleRate int) (float64, error) {
	n := 1
	for n*2 <= len(x) && n < 1<<16 {
		n *= 2
	}
	if n < 256 {
		return 0, fmt.Errorf("analysis: need at least 256 samples, got %d", len(x))
	}
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return 0, fmt.Errorf("analysis: fft plan: %w", err)
	}

	buf := make([]float64, n)
	for i := range buf {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = x[i] * w
	}
	bins := make([]complex128, n/2+1)
	plan.Forward(bins, buf)

	best := 1
	mags := make([]float64, len(bins))
	for k := range bins {
		mags[k] = cmplx.Abs(bins[k])
		if k > 0 && mags[k] > mags[best] {
			best = k
		}
	}
	if mags[best] == 0 {
		return 0, fmt.Errorf("analysis: silent input")
	}

	offset := 0.0
	if best > 0 && best < len(mags)-1 {
		a := math.Log(mags[best-1] + 1e-300)
		b := math.Log(mags[best] + 1e-300)
		c := math.Log(mags[best+1] + 1e-300)
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * float64(sampleRate) / float64(n), nil
}
