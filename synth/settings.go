package synth

import (
	"fmt"

	"github.com/cwbudde/algo-midi2wav/effects"
)

// Interpolation selects how voices read between sample points.
type Interpolation int

const (
	InterpCubic Interpolation = iota
	InterpLinear
)

func (i Interpolation) String() string {
	if i == InterpLinear {
		return "linear"
	}
	return "cubic"
}

// ParseInterpolation maps "linear" or "cubic" to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "cubic":
		return InterpCubic, nil
	case "linear":
		return InterpLinear, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q (want linear or cubic)", s)
}

// StealPolicy selects the victim when every voice slot is busy.
type StealPolicy int

const (
	// StealQuietest prefers released voices, then the lowest envelope
	// amplitude, then the oldest start, then the lowest slot.
	StealQuietest StealPolicy = iota
	// StealOldest takes the oldest start, then the lowest slot.
	StealOldest
)

func (p StealPolicy) String() string {
	if p == StealOldest {
		return "oldest"
	}
	return "quietest"
}

// ParseStealPolicy maps "quietest" or "oldest" to a StealPolicy.
func ParseStealPolicy(s string) (StealPolicy, error) {
	switch s {
	case "quietest":
		return StealQuietest, nil
	case "oldest":
		return StealOldest, nil
	}
	return 0, fmt.Errorf("unknown steal policy %q (want quietest or oldest)", s)
}

// Settings configures a Synthesizer.
type Settings struct {
	SampleRate    int
	Polyphony     int
	BlockSize     int
	MasterGain    float64
	Interpolation Interpolation
	Steal         StealPolicy
	Reverb        effects.ReverbSettings
	Chorus        effects.ChorusSettings
}

// DefaultSettings returns the defaults used by the command line tools.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:    44100,
		Polyphony:     64,
		BlockSize:     64,
		MasterGain:    0.5,
		Interpolation: InterpCubic,
		Steal:         StealQuietest,
		Reverb: effects.ReverbSettings{
			Enabled:     true,
			RoomSeconds: 1.2,
			Level:       0.25,
		},
		Chorus: effects.ChorusSettings{
			Enabled: true,
			DepthMs: 2,
			RateHz:  0.4,
			Level:   0.5,
		},
	}
}

// Validate reports the first out-of-range setting.
func (s Settings) Validate() error {
	if s.SampleRate < 8000 || s.SampleRate > 384000 {
		return fmt.Errorf("sample rate %d out of range [8000, 384000]", s.SampleRate)
	}
	if s.Polyphony < 1 {
		return fmt.Errorf("polyphony must be >= 1, got %d", s.Polyphony)
	}
	if s.BlockSize < 1 {
		return fmt.Errorf("block size must be >= 1, got %d", s.BlockSize)
	}
	if s.MasterGain < 0 {
		return fmt.Errorf("master gain must be >= 0, got %g", s.MasterGain)
	}
	if s.Reverb.Level < 0 || s.Chorus.Level < 0 {
		return fmt.Errorf("effect levels must be >= 0")
	}
	return nil
}
