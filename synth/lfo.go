package synth

// lfo is a delayed triangle oscillator in [-1, 1] starting at zero and
// rising.
type lfo struct {
	delay float64 // seconds
	freq  float64 // Hz
	t     float64
	phase float64
	value float64
}

func (l *lfo) start(delayTc, freqCents float64) {
	*l = lfo{
		delay: timecentsToSeconds(delayTc),
		freq:  absCentsToHz(freqCents),
	}
}

func (l *lfo) advance(dt float64) {
	if l.t < l.delay {
		l.t += dt
		if l.t <= l.delay {
			return
		}
		dt = l.t - l.delay
	}
	l.phase += l.freq * dt
	l.phase -= float64(int(l.phase))
	l.value = triangle(l.phase)
}

func triangle(p float64) float64 {
	switch {
	case p < 0.25:
		return 4 * p
	case p < 0.75:
		return 2 - 4*p
	default:
		return 4*p - 4
	}
}
