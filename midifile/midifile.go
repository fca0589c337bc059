// Package midifile reads Standard MIDI Files into a single time-ordered,
// tempo-resolved event sequence.
package midifile

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
)

// Kind is the variant of an Event.
type Kind uint8

const (
	NoteOff Kind = iota + 1
	NoteOn
	ControlChange
	ProgramChange
	PitchBend
	TempoChange
	EndOfTrack
)

var kindNames = map[Kind]string{
	NoteOff:       "note-off",
	NoteOn:        "note-on",
	ControlChange: "control-change",
	ProgramChange: "program-change",
	PitchBend:     "pitch-bend",
	TempoChange:   "tempo-change",
	EndOfTrack:    "end-of-track",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one timestamped sequence event.
type Event struct {
	Tick    int64
	Time    float64 // seconds
	Track   int
	Kind    Kind
	Channel uint8
	// Data1/Data2 hold key and velocity, controller and value, or program.
	Data1 uint8
	Data2 uint8
	// Value holds the signed pitch-bend amount (-8192..8191) or the tempo
	// in microseconds per quarter note.
	Value int
}

// Sequence is a parsed MIDI file. It is immutable.
type Sequence struct {
	Format   int
	Tracks   int
	Division int // ticks per quarter note; 0 for SMPTE files
	Events   []Event
	// Length is the time of the last event in seconds.
	Length float64
	Tempo  *TempoMap
}

// FormatError reports a malformed MIDI file.
type FormatError struct {
	Track  int // -1 for the header or chunk level
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Track < 0 {
		return fmt.Sprintf("midi: offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("midi: track %d offset %d: %s", e.Track, e.Offset, e.Msg)
}

type options struct {
	strict bool
}

// Option configures Load.
type Option func(*options)

// Strict makes Load reject unknown chunk types instead of skipping them.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// LoadFile reads path fully and parses it.
func LoadFile(path string, opts ...Option) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &audioio.IOError{Op: "read midi", Path: path, Err: err}
	}
	seq, err := Load(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Load parses a complete Standard MIDI File.
func Load(data []byte, opts ...Option) (*Sequence, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id, hdr, pos, err := nextChunk(data, 0)
	if err != nil {
		return nil, err
	}
	if id != "MThd" {
		return nil, &FormatError{Track: -1, Msg: fmt.Sprintf("expected MThd header, found %q", id)}
	}
	if len(hdr) < 6 {
		return nil, &FormatError{Track: -1, Offset: 8, Msg: fmt.Sprintf("header length %d, want at least 6", len(hdr))}
	}
	seq := &Sequence{
		Format: int(binary.BigEndian.Uint16(hdr[0:2])),
		Tracks: int(binary.BigEndian.Uint16(hdr[2:4])),
	}
	if seq.Format > 2 {
		return nil, &FormatError{Track: -1, Offset: 8, Msg: fmt.Sprintf("unsupported format %d", seq.Format)}
	}
	division := binary.BigEndian.Uint16(hdr[4:6])

	var events []Event
	var tempos []tempoChange
	track := 0
	for track < seq.Tracks && pos < len(data) {
		start := pos
		var body []byte
		id, body, pos, err = nextChunk(data, pos)
		if err != nil {
			return nil, err
		}
		if id != "MTrk" {
			if o.strict {
				return nil, &FormatError{Track: -1, Offset: int64(start), Msg: fmt.Sprintf("unknown chunk type %q", id)}
			}
			continue
		}
		tr := &trackReader{data: body, track: track, base: int64(start + 8)}
		evs, err := tr.read()
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			if ev.Kind == TempoChange {
				tempos = append(tempos, tempoChange{tick: ev.Tick, microsPerQuarter: ev.Value})
			}
		}
		events = append(events, evs...)
		track++
	}
	if track < seq.Tracks {
		return nil, &FormatError{Track: -1, Offset: int64(len(data)), Msg: fmt.Sprintf("header declares %d tracks, found %d", seq.Tracks, track)}
	}

	// Tracks were appended in order, so a stable sort by tick keeps
	// track order and in-track order for simultaneous events.
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })

	if division&0x8000 != 0 {
		fps := -int(int8(division >> 8))
		ticksPerFrame := int(division & 0xff)
		rate := float64(fps)
		if fps == 29 {
			rate = 29.97
		}
		if fps <= 0 || ticksPerFrame == 0 {
			return nil, &FormatError{Track: -1, Offset: 12, Msg: fmt.Sprintf("invalid SMPTE division 0x%04x", division)}
		}
		seq.Tempo = newFixedRateMap(rate * float64(ticksPerFrame))
	} else {
		if division == 0 {
			return nil, &FormatError{Track: -1, Offset: 12, Msg: "zero ticks per quarter note"}
		}
		seq.Division = int(division)
		seq.Tempo = newTempoMap(int(division), tempos)
	}

	for i := range events {
		events[i].Time = seq.Tempo.Seconds(events[i].Tick)
	}
	seq.Events = events
	if n := len(events); n > 0 {
		seq.Length = events[n-1].Time
	}
	return seq, nil
}

// nextChunk reads the chunk header at pos and returns its id, payload and
// the position after it.
func nextChunk(data []byte, pos int) (string, []byte, int, error) {
	if len(data)-pos < 8 {
		return "", nil, 0, &FormatError{Track: -1, Offset: int64(pos), Msg: "truncated chunk header"}
	}
	id := string(data[pos : pos+4])
	size := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
	start := pos + 8
	if size < 0 || size > len(data)-start {
		return "", nil, 0, &FormatError{Track: -1, Offset: int64(pos), Msg: fmt.Sprintf("chunk %q length %d exceeds file", id, size)}
	}
	return id, data[start : start+size], start + size, nil
}
