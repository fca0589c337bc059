// Package render drives a synthesizer from a MIDI sequence into a stereo
// master buffer with sample-accurate event timing.
package render

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-midi2wav/midifile"
	"github.com/cwbudde/algo-midi2wav/sf2"
	"github.com/cwbudde/algo-midi2wav/synth"
)

const (
	// tailChunk is the tail rendering granularity in frames.
	tailChunk = 1024
	// tailSilence is the peak below which a tail chunk counts as silent
	// (about -100 dBFS).
	tailSilence = 1e-5
)

// Settings configures Render.
type Settings struct {
	Synth synth.Settings
	// MaxTail is the longest time in seconds rendered after the last
	// event while voices or effects still sound. Zero stops at the end of
	// the sequence.
	MaxTail float64
}

// DefaultSettings returns synth defaults and no tail.
func DefaultSettings() Settings {
	return Settings{Synth: synth.DefaultSettings()}
}

// Stats summarizes a render.
type Stats struct {
	Frames     int
	TailFrames int
	Events     int
	PeakVoices int
}

// MasterBuffer is the interleaved stereo result of a render. It only grows
// while rendering and is read-only once returned.
type MasterBuffer struct {
	sampleRate int
	data       []float64
	Stats      Stats
}

func (b *MasterBuffer) Interleaved() []float64 { return b.data }
func (b *MasterBuffer) NumChannels() int       { return 2 }
func (b *MasterBuffer) SampleRate() int        { return b.sampleRate }
func (b *MasterBuffer) Frames() int            { return len(b.data) / 2 }

// Duration is the buffer length in seconds.
func (b *MasterBuffer) Duration() float64 {
	return float64(b.Frames()) / float64(b.sampleRate)
}

// extend appends frames of audio rendered by s and returns the new part.
func (b *MasterBuffer) extend(s *synth.Synthesizer, frames int) []float64 {
	start := len(b.data)
	b.data = append(b.data, make([]float64, 2*frames)...)
	part := b.data[start:]
	s.Process(part)
	return part
}

// Render plays seq through a new synthesizer for bank. Every event is
// applied before frame floor(Time*SampleRate) is rendered.
func Render(bank *sf2.Bank, seq *midifile.Sequence, settings Settings) (*MasterBuffer, error) {
	if seq == nil {
		return nil, fmt.Errorf("render: nil sequence")
	}
	if settings.MaxTail < 0 || math.IsNaN(settings.MaxTail) {
		return nil, fmt.Errorf("render: max tail must be >= 0, got %g", settings.MaxTail)
	}
	s, err := synth.New(bank, settings.Synth)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return play(s, seq, settings.MaxTail)
}

// play renders seq through s, which must be freshly built or Reset.
func play(s *synth.Synthesizer, seq *midifile.Sequence, maxTailSecs float64) (*MasterBuffer, error) {
	settings := s.Settings()
	sr := float64(settings.SampleRate)
	mainFrames := int(seq.Length * sr)
	buf := &MasterBuffer{
		sampleRate: settings.SampleRate,
		data:       make([]float64, 0, 2*mainFrames),
	}

	pos := 0
	for _, ev := range seq.Events {
		if frame := int(math.Floor(ev.Time * sr)); frame > pos {
			buf.extend(s, frame-pos)
			pos = frame
		}
		if dispatch(s, ev) {
			buf.Stats.Events++
		}
	}
	if mainFrames > pos {
		buf.extend(s, mainFrames-pos)
	}

	maxTail := int(maxTailSecs * sr)
	quiet := peak(buf.data[max(0, len(buf.data)-2*tailChunk):]) < tailSilence
	for buf.Stats.TailFrames < maxTail {
		if s.ActiveVoices() == 0 && (quiet || s.EffectTailFrames() == 0) {
			break
		}
		n := min(tailChunk, maxTail-buf.Stats.TailFrames)
		quiet = peak(buf.extend(s, n)) < tailSilence
		buf.Stats.TailFrames += n
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	buf.Stats.Frames = buf.Frames()
	buf.Stats.PeakVoices = s.PeakVoices()
	return buf, nil
}

// dispatch forwards a channel event and reports whether it was one.
func dispatch(s *synth.Synthesizer, ev midifile.Event) bool {
	ch := int(ev.Channel)
	switch ev.Kind {
	case midifile.NoteOn:
		s.NoteOn(ch, int(ev.Data1), int(ev.Data2))
	case midifile.NoteOff:
		s.NoteOff(ch, int(ev.Data1))
	case midifile.ControlChange:
		s.ControlChange(ch, int(ev.Data1), int(ev.Data2))
	case midifile.ProgramChange:
		s.ProgramChange(ch, int(ev.Data1))
	case midifile.PitchBend:
		s.PitchBend(ch, ev.Value)
	default:
		return false
	}
	return true
}

func peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = max(p, math.Abs(v))
	}
	return p
}
