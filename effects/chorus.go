package effects

import (
	"math"

	"github.com/cwbudde/algo-midi2wav/dsp"
)

// ChorusSettings configures the chorus send.
type ChorusSettings struct {
	Enabled bool
	DepthMs float64
	RateHz  float64
	Level   float64
}

const chorusBaseDelayMs = 15.0

// Chorus is a stereo chorus: two delay lines read at a slowly modulated
// fractional delay, with the right LFO a quarter period ahead of the left.
type Chorus struct {
	left, right *dsp.DelayLine
	base        float64 // samples
	depth       float64 // samples
	phase       float64
	inc         float64
	level       float64
}

// NewChorus creates a chorus for sampleRate.
func NewChorus(sampleRate int, s ChorusSettings) *Chorus {
	sr := float64(sampleRate)
	base := chorusBaseDelayMs * sr / 1000
	depth := math.Max(0, s.DepthMs) * sr / 1000
	if depth > base-1 {
		depth = base - 1
	}
	size := int(base+depth) + 3
	return &Chorus{
		left:  dsp.NewDelayLine(size),
		right: dsp.NewDelayLine(size),
		base:  base,
		depth: depth,
		inc:   math.Max(0, s.RateHz) / sr,
		level: s.Level,
	}
}

// Process adds the chorused send into dst, which holds len(send)
// interleaved stereo frames.
func (c *Chorus) Process(send []float64, dst []float64) {
	for i, x := range send {
		c.left.Write(x)
		c.right.Write(x)
		w := 2 * math.Pi * c.phase
		dst[2*i] += c.level * c.left.ReadFractional(c.base+c.depth*math.Sin(w))
		dst[2*i+1] += c.level * c.right.ReadFractional(c.base+c.depth*math.Cos(w))
		c.phase += c.inc
		if c.phase >= 1 {
			c.phase--
		}
	}
}

// TailFrames is the longest delay the chorus can apply.
func (c *Chorus) TailFrames() int { return c.left.Size() }

// Reset clears the delay lines and LFO phase.
func (c *Chorus) Reset() {
	c.left.Reset()
	c.right.Reset()
	c.phase = 0
}
