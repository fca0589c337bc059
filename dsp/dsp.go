package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float64
	a1, a2     float64

	// State (previous samples)
	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// NewLowpass creates a resonant lowpass biquad filter
func NewLowpass(cutoff, sampleRate, q float64) *Biquad {
	b := &Biquad{}
	b.SetLowpass(cutoff, sampleRate, q)
	return b
}

// SetLowpass recomputes lowpass coefficients in place. Filter state is kept
// so the cutoff can move between blocks without clicks.
func (b *Biquad) SetLowpass(cutoff, sampleRate, q float64) {
	w0 := 2.0 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)

	a0 := 1.0 + alpha
	b.b0 = (1.0 - cosw0) / 2.0 / a0
	b.b1 = (1.0 - cosw0) / a0
	b.b2 = b.b0
	b.a1 = -2.0 * cosw0 / a0
	b.a2 = (1.0 - alpha) / a0
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float64) float64 {
	// Direct Form I
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = dspcore.FlushDenormals(output)

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// DelayLine implements a circular buffer for delay
type DelayLine struct {
	buffer   []float64
	writePos int
	size     int
}

// NewDelayLine creates a new delay line with the given size
func NewDelayLine(size int) *DelayLine {
	if size < 2 {
		size = 2
	}
	return &DelayLine{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Write writes a sample to the delay line
func (d *DelayLine) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos = (d.writePos + 1) % d.size
}

// Read reads a sample from the delay line at the given delay (in samples).
// A delay of 1 returns the most recent write.
func (d *DelayLine) Read(delay int) float64 {
	readPos := (d.writePos - delay + d.size) % d.size
	return d.buffer[readPos]
}

// ReadFractional reads with fractional delay using linear interpolation
func (d *DelayLine) ReadFractional(delay float64) float64 {
	intDelay := int(delay)
	frac := delay - float64(intDelay)

	sample1 := d.Read(intDelay)
	sample2 := d.Read(intDelay + 1)

	return sample1 + frac*(sample2-sample1)
}

// Size returns the capacity in samples.
func (d *DelayLine) Size() int { return d.size }

// Reset clears the delay line
func (d *DelayLine) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}

// Linear interpolates between x0 and x1 at frac in [0, 1).
func Linear(x0, x1 float32, frac float64) float64 {
	return float64(x0) + frac*float64(x1-x0)
}

// Cubic performs 3rd order Lagrange interpolation between x0 and x1 using
// the neighbours xm1 and x2.
func Cubic(xm1, x0, x1, x2 float32, frac float64) float64 {
	a, b, c, d := float64(xm1), float64(x0), float64(x1), float64(x2)
	c0 := b
	c1 := c - a/3.0 - b/2.0 - d/6.0
	c2 := a/2.0 - b + c/2.0
	c3 := b/2.0 - c/2.0 + (d-a)/6.0
	return c0 + frac*(c1+frac*(c2+frac*c3))
}
