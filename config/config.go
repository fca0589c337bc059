// Package config loads render settings from JSON files. Fields left out of
// a file keep their defaults.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
	"github.com/cwbudde/algo-midi2wav/midifile"
	"github.com/cwbudde/algo-midi2wav/render"
	"github.com/cwbudde/algo-midi2wav/synth"
	"github.com/cwbudde/algo-midi2wav/wavenc"
)

// Settings is everything needed to turn one MIDI file into one WAV file.
type Settings struct {
	Render     render.Settings
	BitDepth   int
	StrictMIDI bool
}

// Default returns 44.1 kHz, 16-bit output with the synth defaults.
func Default() *Settings {
	return &Settings{
		Render:   render.DefaultSettings(),
		BitDepth: 16,
	}
}

// MIDIOptions returns the reader options implied by s.
func (s *Settings) MIDIOptions() []midifile.Option {
	if s.StrictMIDI {
		return []midifile.Option{midifile.Strict()}
	}
	return nil
}

// Validate checks the combined settings.
func (s *Settings) Validate() error {
	if err := wavenc.ValidateBitDepth(s.BitDepth); err != nil {
		return err
	}
	if s.Render.MaxTail < 0 {
		return fmt.Errorf("max tail must be >= 0, got %g", s.Render.MaxTail)
	}
	return s.Render.Synth.Validate()
}

// File is the JSON schema for settings files.
type File struct {
	SampleRate     *int        `json:"sample_rate"`
	BitDepth       *int        `json:"bit_depth"`
	Polyphony      *int        `json:"polyphony"`
	BlockSize      *int        `json:"block_size"`
	MasterGain     *float64    `json:"master_gain"`
	MaxTailSeconds *float64    `json:"max_tail_seconds"`
	Interpolation  string      `json:"interpolation"`
	Steal          string      `json:"steal"`
	StrictMIDI     *bool       `json:"strict_midi"`
	Reverb         *ReverbFile `json:"reverb"`
	Chorus         *ChorusFile `json:"chorus"`
}

// ReverbFile is the reverb section of a settings file.
type ReverbFile struct {
	Enabled     *bool    `json:"enabled"`
	IRWavPath   string   `json:"ir_wav_path"`
	RoomSeconds *float64 `json:"room_seconds"`
	Level       *float64 `json:"level"`
}

// ChorusFile is the chorus section of a settings file.
type ChorusFile struct {
	Enabled *bool    `json:"enabled"`
	DepthMs *float64 `json:"depth_ms"`
	RateHz  *float64 `json:"rate_hz"`
	Level   *float64 `json:"level"`
}

// LoadJSON loads a settings file and applies it on top of Default. A
// relative IR path is resolved against the file's directory.
func LoadJSON(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &audioio.IOError{Op: "read config", Path: path, Err: err}
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := Default()
	if err := ApplyFile(s, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rev := &s.Render.Synth.Reverb
	if rev.IRPath != "" && !filepath.IsAbs(rev.IRPath) {
		rev.IRPath = filepath.Clean(filepath.Join(filepath.Dir(path), rev.IRPath))
	}
	return s, nil
}

// ApplyFile applies a parsed settings file onto dst.
func ApplyFile(dst *Settings, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination settings")
	}
	if f == nil {
		return nil
	}
	syn := &dst.Render.Synth

	if f.SampleRate != nil {
		if *f.SampleRate < 8000 || *f.SampleRate > 384000 {
			return fmt.Errorf("sample_rate must be in [8000, 384000]")
		}
		syn.SampleRate = *f.SampleRate
	}
	if f.BitDepth != nil {
		if err := wavenc.ValidateBitDepth(*f.BitDepth); err != nil {
			return err
		}
		dst.BitDepth = *f.BitDepth
	}
	if f.Polyphony != nil {
		if *f.Polyphony < 1 {
			return fmt.Errorf("polyphony must be >= 1")
		}
		syn.Polyphony = *f.Polyphony
	}
	if f.BlockSize != nil {
		if *f.BlockSize < 1 || *f.BlockSize > 8192 {
			return fmt.Errorf("block_size must be in [1, 8192]")
		}
		syn.BlockSize = *f.BlockSize
	}
	if f.MasterGain != nil {
		if *f.MasterGain <= 0 {
			return fmt.Errorf("master_gain must be > 0")
		}
		syn.MasterGain = *f.MasterGain
	}
	if f.MaxTailSeconds != nil {
		if *f.MaxTailSeconds < 0 {
			return fmt.Errorf("max_tail_seconds must be >= 0")
		}
		dst.Render.MaxTail = *f.MaxTailSeconds
	}
	if f.Interpolation != "" {
		interp, err := synth.ParseInterpolation(strings.TrimSpace(f.Interpolation))
		if err != nil {
			return err
		}
		syn.Interpolation = interp
	}
	if f.Steal != "" {
		steal, err := synth.ParseStealPolicy(strings.TrimSpace(f.Steal))
		if err != nil {
			return err
		}
		syn.Steal = steal
	}
	if f.StrictMIDI != nil {
		dst.StrictMIDI = *f.StrictMIDI
	}

	if r := f.Reverb; r != nil {
		if r.Enabled != nil {
			syn.Reverb.Enabled = *r.Enabled
		}
		if r.IRWavPath != "" {
			syn.Reverb.IRPath = strings.TrimSpace(r.IRWavPath)
		}
		if r.RoomSeconds != nil {
			if *r.RoomSeconds <= 0 || *r.RoomSeconds > 20 {
				return fmt.Errorf("reverb.room_seconds must be in (0, 20]")
			}
			syn.Reverb.RoomSeconds = *r.RoomSeconds
		}
		if r.Level != nil {
			if *r.Level < 0 {
				return fmt.Errorf("reverb.level must be >= 0")
			}
			syn.Reverb.Level = *r.Level
		}
	}
	if c := f.Chorus; c != nil {
		if c.Enabled != nil {
			syn.Chorus.Enabled = *c.Enabled
		}
		if c.DepthMs != nil {
			if *c.DepthMs < 0 || *c.DepthMs > 10 {
				return fmt.Errorf("chorus.depth_ms must be in [0, 10]")
			}
			syn.Chorus.DepthMs = *c.DepthMs
		}
		if c.RateHz != nil {
			if *c.RateHz < 0 || *c.RateHz > 20 {
				return fmt.Errorf("chorus.rate_hz must be in [0, 20]")
			}
			syn.Chorus.RateHz = *c.RateHz
		}
		if c.Level != nil {
			if *c.Level < 0 {
				return fmt.Errorf("chorus.level must be >= 0")
			}
			syn.Chorus.Level = *c.Level
		}
	}
	return nil
}
