// Package analysis measures rendered audio: levels for the command line
// summary, dominant frequency and envelope decay rate for verification.
package analysis

import "math"

// Levels summarizes an interleaved buffer.
type Levels struct {
	Frames  int     `json:"frames"`
	Peak    float64 `json:"peak"`
	RMS     float64 `json:"rms"`
	PeakDB  float64 `json:"peak_dbfs"`
	RMSDB   float64 `json:"rms_dbfs"`
	Clipped int     `json:"clipped"` // samples with |x| > 1
	NonZero bool    `json:"non_zero"`
}

// Measure computes Levels for interleaved samples with channels channels.
func Measure(samples []float64, channels int) Levels {
	if channels < 1 {
		channels = 1
	}
	l := Levels{Frames: len(samples) / channels}
	var sum float64
	for _, v := range samples {
		a := math.Abs(v)
		if a > l.Peak {
			l.Peak = a
		}
		if a > 1 {
			l.Clipped++
		}
		if v != 0 {
			l.NonZero = true
		}
		sum += v * v
	}
	if len(samples) > 0 {
		l.RMS = math.Sqrt(sum / float64(len(samples)))
	}
	l.PeakDB = linToDB(l.Peak)
	l.RMSDB = linToDB(l.RMS)
	return l
}

// Channel extracts channel ch from interleaved samples.
func Channel(samples []float64, channels, ch int) []float64 {
	out := make([]float64, 0, len(samples)/channels)
	for i := ch; i < len(samples); i += channels {
		out = append(out, samples[i])
	}
	return out
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
