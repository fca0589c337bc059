// Package synth is a SoundFont wavetable synthesizer: a fixed pool of voices
// driven by MIDI channel messages, mixed to stereo with reverb and chorus
// sends.
package synth

import (
	"fmt"

	"github.com/cwbudde/algo-midi2wav/effects"
	"github.com/cwbudde/algo-midi2wav/sf2"
)

// Synthesizer renders MIDI channel messages against a bank. It is not safe
// for concurrent use; the bank may be shared between synthesizers.
type Synthesizer struct {
	bank       *sf2.Bank
	settings   Settings
	sampleRate float64

	voices   []voice
	channels [numChannels]channel
	order    uint64
	active   int
	peak     int

	reverb *effects.Reverb
	chorus *effects.Chorus
	revBus []float64
	choBus []float64
}

// New creates a synthesizer for bank.
func New(bank *sf2.Bank, settings Settings) (*Synthesizer, error) {
	if bank == nil {
		return nil, fmt.Errorf("synth: nil bank")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	s := &Synthesizer{
		bank:       bank,
		settings:   settings,
		sampleRate: float64(settings.SampleRate),
		voices:     make([]voice, settings.Polyphony),
		revBus:     make([]float64, settings.BlockSize),
		choBus:     make([]float64, settings.BlockSize),
	}
	for i := range s.voices {
		s.voices[i].slot = i
	}
	for i := range s.channels {
		s.channels[i] = newChannel()
	}
	if settings.Reverb.Enabled {
		r, err := effects.NewReverbFromSettings(settings.SampleRate, settings.Reverb)
		if err != nil {
			return nil, fmt.Errorf("synth: %w", err)
		}
		s.reverb = r
	}
	if settings.Chorus.Enabled {
		s.chorus = effects.NewChorus(settings.SampleRate, settings.Chorus)
	}
	return s, nil
}

// Err reports the first send effect failure. Output after a failure has no
// reverb.
func (s *Synthesizer) Err() error {
	if s.reverb != nil {
		return s.reverb.Err()
	}
	return nil
}

// Settings returns the settings the synthesizer was built with.
func (s *Synthesizer) Settings() Settings { return s.settings }

// ActiveVoices returns the number of sounding voices.
func (s *Synthesizer) ActiveVoices() int { return s.active }

// PeakVoices returns the highest ActiveVoices value seen so far.
func (s *Synthesizer) PeakVoices() int { return s.peak }

// EffectTailFrames is how long the send effects can ring after the last
// voice stops.
func (s *Synthesizer) EffectTailFrames() int {
	n := 0
	if s.reverb != nil {
		n = max(n, s.reverb.TailFrames())
	}
	if s.chorus != nil {
		n = max(n, s.chorus.TailFrames())
	}
	return n
}

func validChannel(ch int) bool { return ch >= 0 && ch < numChannels }
func validData(v int) bool     { return v >= 0 && v <= 127 }

// NoteOn starts one voice per matching region. Velocity 0 is a note-off.
func (s *Synthesizer) NoteOn(ch, key, velocity int) {
	if !validChannel(ch) || !validData(key) || !validData(velocity) {
		return
	}
	if velocity == 0 {
		s.NoteOff(ch, key)
		return
	}
	c := &s.channels[ch]
	preset := s.bank.FindPreset(c.bank(ch), c.program)
	regions := s.bank.Regions(preset, key, velocity)
	if len(regions) == 0 {
		return
	}
	// Silence the exclusive class before starting so layered regions of
	// this note do not cut each other.
	for i := range regions {
		if ec := regions[i].Gen(sf2.GenExclusiveClass); ec != 0 {
			s.killExclusive(ch, ec)
		}
	}
	for i := range regions {
		// ROM samples are not in the file; they stay silent.
		if regions[i].Sample.IsROM() {
			continue
		}
		v := &s.voices[s.allocate()]
		s.order++
		v.noteOn(&regions[i], s.bank.Data, ch, key, velocity, s.order, s.sampleRate)
		s.active++
	}
	s.peak = max(s.peak, s.active)
}

// NoteOff releases the voices of key on ch, or marks them sustained while
// the pedal is down.
func (s *Synthesizer) NoteOff(ch, key int) {
	if !validChannel(ch) {
		return
	}
	sustain := s.channels[ch].sustain
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active || v.channel != ch || v.key != key || v.released || v.sustained {
			continue
		}
		if sustain {
			v.sustained = true
		} else {
			v.noteOff()
		}
	}
}

// ProgramChange selects the preset for subsequent notes on ch.
func (s *Synthesizer) ProgramChange(ch, program int) {
	if validChannel(ch) && validData(program) {
		s.channels[ch].program = program
	}
}

// PitchBend sets the channel bend, -8192..8191.
func (s *Synthesizer) PitchBend(ch, value int) {
	if !validChannel(ch) {
		return
	}
	s.channels[ch].bend = max(-8192, min(8191, value))
}

// ControlChange applies a controller message.
func (s *Synthesizer) ControlChange(ch, ctrl, value int) {
	if !validChannel(ch) || !validData(value) {
		return
	}
	c := &s.channels[ch]
	switch ctrl {
	case 0:
		c.bankMSB = value
	case 32:
		c.bankLSB = value
	case 1:
		c.modWheel = value
	case 6:
		if c.pitchBendRPN() {
			c.bendSemis = value
		}
	case 38:
		if c.pitchBendRPN() {
			c.bendCents = value
		}
	case 7:
		c.volume = value
	case 10:
		c.pan = value
	case 11:
		c.expression = value
	case 64:
		down := value >= 64
		if c.sustain && !down {
			s.releaseSustained(ch)
		}
		c.sustain = down
	case 91:
		c.reverbSend = value
	case 93:
		c.chorusSend = value
	case 98, 99:
		// NRPN selection deselects the RPN.
		c.rpnMSB, c.rpnLSB = rpnNull, rpnNull
	case 100:
		c.rpnLSB = value
	case 101:
		c.rpnMSB = value
	case 120:
		s.allSoundOff(ch)
	case 121:
		if c.sustain {
			s.releaseSustained(ch)
		}
		c.resetControllers()
	case 123:
		s.allNotesOff(ch)
	}
}

func (s *Synthesizer) releaseSustained(ch int) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == ch && v.sustained {
			v.noteOff()
		}
	}
}

func (s *Synthesizer) allNotesOff(ch int) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == ch {
			s.NoteOff(ch, v.key)
		}
	}
}

func (s *Synthesizer) allSoundOff(ch int) {
	for i := range s.voices {
		if s.voices[i].active && s.voices[i].channel == ch {
			s.free(&s.voices[i])
		}
	}
}

func (s *Synthesizer) killExclusive(ch int, class int32) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == ch && v.exclusiveClass == class {
			s.free(v)
		}
	}
}

func (s *Synthesizer) free(v *voice) {
	v.active = false
	s.active--
}

// allocate returns a free slot, stealing one when the pool is full.
func (s *Synthesizer) allocate() int {
	for i := range s.voices {
		if !s.voices[i].active {
			return i
		}
	}
	victim := &s.voices[0]
	for i := 1; i < len(s.voices); i++ {
		if s.betterVictim(&s.voices[i], victim) {
			victim = &s.voices[i]
		}
	}
	s.free(victim)
	return victim.slot
}

// betterVictim reports whether a should be stolen before b.
func (s *Synthesizer) betterVictim(a, b *voice) bool {
	if s.settings.Steal == StealQuietest {
		if a.released != b.released {
			return a.released
		}
		if a.amplitude() != b.amplitude() {
			return a.amplitude() < b.amplitude()
		}
	}
	if a.order != b.order {
		return a.order < b.order
	}
	return a.slot < b.slot
}

// Process renders len(dst)/2 interleaved stereo frames into dst,
// overwriting it.
func (s *Synthesizer) Process(dst []float64) {
	clear(dst)
	frames := len(dst) / 2
	bs := s.settings.BlockSize
	for off := 0; off < frames; off += bs {
		n := min(bs, frames-off)
		block := dst[2*off : 2*(off+n)]
		rev := s.revBus[:n]
		cho := s.choBus[:n]
		clear(rev)
		clear(cho)

		for i := range s.voices {
			v := &s.voices[i]
			if !v.active {
				continue
			}
			v.render(&s.channels[v.channel], block, rev, cho, s.sampleRate, s.settings.Interpolation)
			if v.done() {
				s.free(v)
			}
		}

		if s.reverb != nil {
			s.reverb.Process(rev, block)
		}
		if s.chorus != nil {
			s.chorus.Process(cho, block)
		}
		if g := s.settings.MasterGain; g != 1 {
			for i := range block {
				block[i] *= g
			}
		}
	}
}

// RenderBlock is the allocating form of Process.
func (s *Synthesizer) RenderBlock(frames int) []float64 {
	out := make([]float64, 2*frames)
	s.Process(out)
	return out
}

// Reset returns the synthesizer to its freshly built state: voices are
// silenced, channels take their defaults and effect history is cleared.
func (s *Synthesizer) Reset() {
	for i := range s.voices {
		s.voices[i].active = false
	}
	s.active, s.peak, s.order = 0, 0, 0
	for i := range s.channels {
		s.channels[i] = newChannel()
	}
	if s.reverb != nil {
		s.reverb.Reset()
	}
	if s.chorus != nil {
		s.chorus.Reset()
	}
}
