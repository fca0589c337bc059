// Package irsynth synthesizes deterministic stereo room impulse responses
// used by the reverb send.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls room IR generation.
type Config struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	PreDelayS   float64
	EarlyCount  int
	EarlyLevel  float64
	LateLevel   float64
	StereoWidth float64
	Brightness  float64

	LowDecayS  float64
	HighDecayS float64
	FadeOutS   float64 // cosine fade at the end; 0 = none

	NormalizePeak float64
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		DurationS:     1.2,
		Seed:          1,
		PreDelayS:     0.008,
		EarlyCount:    24,
		EarlyLevel:    1.0,
		LateLevel:     0.06,
		StereoWidth:   0.6,
		Brightness:    0.8,
		LowDecayS:     1.2,
		HighDecayS:    0.2,
		FadeOutS:      0.02,
		NormalizePeak: 0.5,
	}
}

// ForRoom returns the default config scaled to a room whose low-frequency
// tail lasts roughly roomSeconds.
func ForRoom(sampleRate int, roomSeconds float64) Config {
	cfg := DefaultConfig()
	cfg.SampleRate = sampleRate
	if roomSeconds > 0 {
		cfg.DurationS = roomSeconds
		cfg.LowDecayS = roomSeconds
		cfg.HighDecayS = roomSeconds / 6
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.PreDelayS < 0 || c.PreDelayS >= c.DurationS {
		return fmt.Errorf("pre-delay must be in [0, duration)")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.EarlyLevel < 0 || c.LateLevel < 0 {
		return fmt.Errorf("levels must be >= 0")
	}
	if c.StereoWidth < 0 {
		return fmt.Errorf("stereo width must be >= 0")
	}
	if c.Brightness <= 0 {
		return fmt.Errorf("brightness must be > 0")
	}
	if c.LowDecayS <= 0 || c.HighDecayS <= 0 {
		return fmt.Errorf("decay seconds must be > 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// Generate synthesizes a stereo room IR: sparse early reflections followed
// by a two-band diffuse tail.
func Generate(cfg Config) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	left := make([]float64, n)
	right := make([]float64, n)
	sr := float64(cfg.SampleRate)
	pre := int(cfg.PreDelayS * sr)

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Early reflections, 1-50ms after the pre-delay.
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := pre + int(t*sr)
		if idx <= 0 || idx >= n {
			continue
		}
		amp := cfg.EarlyLevel * (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1.0/cfg.Brightness)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	if cfg.LateLevel > 0 {
		brightness := 0.3 * (cfg.Brightness - 0.3)
		if brightness < 0 {
			brightness = 0
		}
		var lpL, lpR, hpL, hpR float64
		for i := pre; i < n; i++ {
			t := float64(i-pre) / sr
			lowEnv := math.Exp(-t / (0.75 * cfg.LowDecayS))
			highEnv := math.Exp(-t / (0.75 * cfg.HighDecayS))

			nL := rng.NormFloat64()
			nR := rng.NormFloat64()
			lpL = 0.985*lpL + 0.015*nL
			lpR = 0.985*lpR + 0.015*nR
			hpL = 0.15*nL - 0.15*hpL
			hpR = 0.15*nR - 0.15*hpR

			left[i] += cfg.LateLevel * (lowEnv*lpL + brightness*highEnv*hpL)
			right[i] += cfg.LateLevel * (lowEnv*lpR + brightness*highEnv*hpR)
		}
	}

	highpassDC(left, 0.995)
	highpassDC(right, 0.995)
	applyFadeOut(left, cfg.FadeOutS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeOutS, cfg.SampleRate)

	peak := math.Max(maxAbs(left), maxAbs(right))
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := cfg.NormalizePeak / peak
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := 0; i < n; i++ {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

func highpassDC(x []float64, r float64) {
	prevIn := 0.0
	prevOut := 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// applyFadeOut applies a cosine fade to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(buf) {
		fadeSamples = len(buf)
	}
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}
