package analysis

import "math"

// DecayDBPerS measures how fast x fades, in dB per second. x should start
// where the decay starts, such as a note captured from its note-off. The
// RMS level of half-overlapping 256-point frames is fitted with a line
// while it stays within 60 dB of the opening frame. NaN means x is too
// short to measure.
func DecayDBPerS(x []float64, sampleRate int) float64 {
	const frame = 256
	if sampleRate <= 0 {
		return math.NaN()
	}
	var ts, levels []float64
	for start := 0; start+frame <= len(x); start += frame / 2 {
		db := linToDB(rms1(x[start : start+frame]))
		if len(levels) > 0 && db < levels[0]-60 {
			break
		}
		ts = append(ts, float64(start)/float64(sampleRate))
		levels = append(levels, db)
	}
	if len(levels) < 8 {
		return math.NaN()
	}
	return slope(ts, levels)
}

// slope is the least-squares gradient of ys over xs.
func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n
	var num, den float64
	for i := range xs {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
