package synth

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Reclaim threshold: a voice below this envelope amplitude (about -100 dB)
// is inaudible and gets freed.
const silenceEpsilon = 1e-5

// timecentsToSeconds converts SoundFont timecents to seconds.
func timecentsToSeconds(tc float64) float64 {
	return math.Exp2(tc / 1200)
}

// absCentsToHz converts absolute cents (8.176 Hz = 0 cents) to Hz.
func absCentsToHz(cents float64) float64 {
	return 8.176 * math.Exp2(cents/1200)
}

func centsToRatio(cents float64) float64 {
	return math.Exp2(cents / 1200)
}

// centibelsToGain converts an attenuation in centibels to linear gain.
func centibelsToGain(cb float64) float64 {
	if cb <= 0 {
		return math.Pow(10, -cb/200)
	}
	return expApprox(-cb * math.Ln10 / 200)
}

// expApprox is a fast exp for envelope and gain curves where a small
// relative error is inaudible.
func expApprox(x float64) float64 {
	if x < -87 {
		return 0
	}
	return float64(approx.FastExp(float32(x)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
