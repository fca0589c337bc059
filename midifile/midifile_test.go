package midifile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
)

func header(format, tracks, division uint16) []byte {
	b := []byte("MThd")
	b = binary.BigEndian.AppendUint32(b, 6)
	b = binary.BigEndian.AppendUint16(b, format)
	b = binary.BigEndian.AppendUint16(b, tracks)
	return binary.BigEndian.AppendUint16(b, division)
}

func trackChunk(body ...byte) []byte {
	b := []byte("MTrk")
	b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
	return append(b, body...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func writeSMF(t *testing.T, tracks ...smf.Track) []byte {
	t.Helper()
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(480)
	for _, tr := range tracks {
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLoadResolvesTempoChanges(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, smf.MetaTempo(60))
	tr.Add(480, midi.NoteOn(0, 62, 90))

	seq, err := Load(writeSMF(t, tr))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if seq.Division != 480 {
		t.Fatalf("expected division 480, got %d", seq.Division)
	}

	var notes []Event
	for _, ev := range seq.Events {
		if ev.Kind == NoteOn || ev.Kind == NoteOff {
			notes = append(notes, ev)
		}
	}
	if len(notes) != 3 {
		t.Fatalf("expected 3 note events, got %d", len(notes))
	}
	want := []struct {
		kind Kind
		key  uint8
		time float64
	}{
		{NoteOn, 60, 0},
		{NoteOff, 60, 1.0},
		{NoteOn, 62, 2.0},
	}
	for i, w := range want {
		got := notes[i]
		if got.Kind != w.kind || got.Data1 != w.key || !almostEqual(got.Time, w.time) {
			t.Fatalf("note %d: expected %v key %d at %.3fs, got %v key %d at %.6fs", i, w.kind, w.key, w.time, got.Kind, got.Data1, got.Time)
		}
	}
	if !almostEqual(seq.Length, 2.0) {
		t.Fatalf("expected length 2.0s, got %f", seq.Length)
	}
}

func TestLoadMergesTracksInTimeOrder(t *testing.T) {
	var conductor, a, b smf.Track
	conductor.Add(0, smf.MetaTempo(120))
	a.Add(0, midi.ProgramChange(0, 5))
	a.Add(480, midi.NoteOn(0, 60, 100))
	a.Add(480, midi.NoteOff(0, 60))
	b.Add(240, midi.NoteOn(1, 64, 100))
	b.Add(240, midi.NoteOn(1, 67, 100))
	b.Add(480, midi.NoteOff(1, 64))

	seq, err := Load(writeSMF(t, conductor, a, b))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if seq.Format != 1 || seq.Tracks != 3 {
		t.Fatalf("expected format 1 with 3 tracks, got %d/%d", seq.Format, seq.Tracks)
	}
	for i := 1; i < len(seq.Events); i++ {
		prev, cur := seq.Events[i-1], seq.Events[i]
		if cur.Tick < prev.Tick || cur.Time < prev.Time {
			t.Fatalf("events out of order at %d: %+v then %+v", i, prev, cur)
		}
		if cur.Tick == prev.Tick && cur.Track < prev.Track {
			t.Fatalf("simultaneous events not in track order at %d: %+v then %+v", i, prev, cur)
		}
	}
	// Track a's note-on and track b's second note-on share tick 480.
	var at480 []Event
	for _, ev := range seq.Events {
		if ev.Tick == 480 && ev.Kind == NoteOn {
			at480 = append(at480, ev)
		}
	}
	if len(at480) != 2 || at480[0].Track != 1 || at480[1].Track != 2 {
		t.Fatalf("expected track 1 before track 2 at tick 480, got %+v", at480)
	}
	if !almostEqual(seq.Length, 1.0) {
		t.Fatalf("expected length 1.0s, got %f", seq.Length)
	}
}

func TestLoadChannelMessages(t *testing.T) {
	data := concat(header(0, 1, 96), trackChunk(
		0x00, 0x90, 0x3c, 0x64, // note on
		0x00, 0x40, 0x50, // running status note on
		0x10, 0x3c, 0x00, // running status velocity 0
		0x00, 0xb3, 0x07, 0x7f, // CC7
		0x00, 0xc9, 0x10, // program change, one data byte
		0x00, 0xd0, 0x20, // channel pressure, ignored
		0x00, 0xe2, 0x00, 0x40, // pitch bend center
		0x00, 0xe2, 0x7f, 0x7f, // pitch bend max
		0x00, 0xe2, 0x00, 0x00, // pitch bend min
		0x00, 0xff, 0x2f, 0x00,
	))
	seq, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []Event{
		{Kind: NoteOn, Data1: 60, Data2: 100},
		{Kind: NoteOn, Data1: 64, Data2: 80},
		{Kind: NoteOff, Data1: 60, Tick: 16},
		{Kind: ControlChange, Channel: 3, Data1: 7, Data2: 127, Tick: 16},
		{Kind: ProgramChange, Channel: 9, Data1: 16, Tick: 16},
		{Kind: PitchBend, Channel: 2, Value: 0, Tick: 16},
		{Kind: PitchBend, Channel: 2, Value: 8191, Tick: 16},
		{Kind: PitchBend, Channel: 2, Value: -8192, Tick: 16},
		{Kind: EndOfTrack, Tick: 16},
	}
	if len(seq.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(seq.Events), seq.Events)
	}
	for i, w := range want {
		got := seq.Events[i]
		got.Time = 0
		if got != w {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, got)
		}
	}
}

func TestLoadMetaAndSysExCancelRunningStatus(t *testing.T) {
	data := concat(header(0, 1, 96), trackChunk(
		0x00, 0x90, 0x3c, 0x64,
		0x00, 0xf0, 0x02, 0x7e, 0xf7, // sysex
		0x00, 0x3c, 0x00, // data byte without status
	))
	_, err := Load(data)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if fe.Track != 0 {
		t.Fatalf("expected track 0, got %d", fe.Track)
	}
	if fe.Offset != 22+10 {
		t.Fatalf("expected offset %d, got %d", 22+10, fe.Offset)
	}
}

func TestLoadRejectsMalformedFiles(t *testing.T) {
	cases := []struct {
		name  string
		data  []byte
		opts  []Option
		track int
	}{
		{"empty", nil, nil, -1},
		{"not a midi file", []byte("RIFF\x00\x00\x00\x00"), nil, -1},
		{"short header", concat([]byte("MThd\x00\x00\x00\x02\x00\x00")), nil, -1},
		{"format 3", header(3, 0, 96), nil, -1},
		{"zero division", concat(header(0, 1, 0), trackChunk(0x00, 0xff, 0x2f, 0x00)), nil, -1},
		{"missing track", header(1, 2, 96), nil, -1},
		{"track overruns file", concat(header(0, 1, 96), []byte("MTrk\x00\x00\x01\x00\x00")), nil, -1},
		{"vlq too long", concat(header(0, 1, 96), trackChunk(0x81, 0x81, 0x81, 0x81, 0x00, 0x90, 0x3c, 0x64)), nil, 0},
		{"truncated event", concat(header(0, 1, 96), trackChunk(0x00, 0x90, 0x3c)), nil, 0},
		{"meta overruns track", concat(header(0, 1, 96), trackChunk(0x00, 0xff, 0x01, 0x10, 'a')), nil, 0},
		{"system realtime byte", concat(header(0, 1, 96), trackChunk(0x00, 0xf8)), nil, 0},
		{"strict unknown chunk", concat(header(0, 1, 96), []byte("XFIH\x00\x00\x00\x00"), trackChunk(0x00, 0xff, 0x2f, 0x00)), []Option{Strict()}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.data, tc.opts...)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %T: %v", err, err)
			}
			if fe.Track != tc.track {
				t.Fatalf("expected track %d, got %d (%v)", tc.track, fe.Track, fe)
			}
		})
	}
}

func TestLoadSkipsUnknownChunksByDefault(t *testing.T) {
	data := concat(header(0, 1, 96), []byte("XFIH\x00\x00\x00\x02ab"), trackChunk(0x00, 0x90, 0x3c, 0x64, 0x00, 0xff, 0x2f, 0x00))
	seq, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seq.Events) != 2 || seq.Events[0].Kind != NoteOn {
		t.Fatalf("unexpected events: %+v", seq.Events)
	}
}

func TestLoadClosesTrackWithoutEndOfTrack(t *testing.T) {
	data := concat(header(0, 1, 96), trackChunk(0x00, 0x90, 0x3c, 0x64, 0x60, 0x80, 0x3c, 0x00))
	seq, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	last := seq.Events[len(seq.Events)-1]
	if last.Kind != EndOfTrack || last.Tick != 96 {
		t.Fatalf("expected synthesized end-of-track at tick 96, got %+v", last)
	}
	if !almostEqual(seq.Length, 0.5) {
		t.Fatalf("expected length 0.5s, got %f", seq.Length)
	}
}

func TestLoadSMPTEDivision(t *testing.T) {
	// -25 fps, 40 ticks per frame: 1000 ticks per second.
	division := uint16(0xe7)<<8 | 40
	data := concat(header(0, 1, division), trackChunk(
		0x00, 0xff, 0x51, 0x03, 0x0f, 0x42, 0x40, // tempo has no effect
		0x87, 0x68, 0x90, 0x3c, 0x64, // delta 1000
		0x00, 0xff, 0x2f, 0x00,
	))
	seq, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if seq.Division != 0 {
		t.Fatalf("expected no metric division, got %d", seq.Division)
	}
	if !almostEqual(seq.Length, 1.0) {
		t.Fatalf("expected length 1.0s, got %f", seq.Length)
	}
}

func TestTempoMapIsPiecewiseLinear(t *testing.T) {
	m := newTempoMap(100, []tempoChange{
		{tick: 0, microsPerQuarter: 1000000},
		{tick: 100, microsPerQuarter: 500000},
		{tick: 300, microsPerQuarter: 2000000},
	})
	if m.Len() != 3 {
		t.Fatalf("expected 3 segments, got %d", m.Len())
	}
	cases := []struct {
		tick int64
		want float64
	}{
		{0, 0},
		{50, 0.5},
		{100, 1.0},
		{200, 1.5},
		{300, 2.0},
		{350, 3.0},
	}
	for _, tc := range cases {
		if got := m.Seconds(tc.tick); !almostEqual(got, tc.want) {
			t.Fatalf("Seconds(%d) = %f, want %f", tc.tick, got, tc.want)
		}
	}
	prev := -1.0
	for tick := int64(0); tick < 1000; tick += 7 {
		s := m.Seconds(tick)
		if s < prev {
			t.Fatalf("tempo map not monotonic at tick %d", tick)
		}
		prev = s
	}
}

func TestLoadFileWrapsIOError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.mid"))
	var ioErr *audioio.IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}
