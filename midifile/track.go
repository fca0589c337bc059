package midifile

import "fmt"

type trackReader struct {
	data       []byte
	pos        int
	track      int
	base       int64 // file offset of data[0]
	tick       int64
	lastStatus byte
}

func (r *trackReader) errorf(format string, args ...any) error {
	return &FormatError{Track: r.track, Offset: r.base + int64(r.pos), Msg: fmt.Sprintf(format, args...)}
}

func (r *trackReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.errorf("unexpected end of track")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// readVLQ reads a variable-length quantity of at most four bytes.
func (r *trackReader) readVLQ() (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if r.pos >= len(r.data) {
			return 0, r.errorf("truncated variable-length quantity")
		}
		b := r.data[r.pos]
		r.pos++
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, r.errorf("variable-length quantity longer than 4 bytes")
}

func (r *trackReader) skip(n int) error {
	if n > len(r.data)-r.pos {
		return r.errorf("length %d overruns track", n)
	}
	r.pos += n
	return nil
}

func (r *trackReader) read() ([]Event, error) {
	var out []Event
	for r.pos < len(r.data) {
		delta, err := r.readVLQ()
		if err != nil {
			return nil, err
		}
		r.tick += int64(delta)

		ev, ok, err := r.readEvent()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ev.Tick = r.tick
		ev.Track = r.track
		out = append(out, ev)
		if ev.Kind == EndOfTrack {
			return out, nil
		}
	}
	// Missing end-of-track meta event; close the track at the last tick.
	out = append(out, Event{Tick: r.tick, Track: r.track, Kind: EndOfTrack})
	return out, nil
}

// readEvent reads one event after its delta time. ok is false for events
// the sequence does not carry (other meta events, SysEx, pressure).
func (r *trackReader) readEvent() (Event, bool, error) {
	status, err := r.readByte()
	if err != nil {
		return Event{}, false, err
	}

	switch {
	case status == 0xff:
		r.lastStatus = 0
		return r.readMeta()
	case status == 0xf0 || status == 0xf7:
		r.lastStatus = 0
		n, err := r.readVLQ()
		if err != nil {
			return Event{}, false, err
		}
		return Event{}, false, r.skip(int(n))
	case status >= 0xf0:
		r.pos--
		return Event{}, false, r.errorf("unexpected system status byte 0x%02x", status)
	}

	var data1 byte
	if status < 0x80 {
		if r.lastStatus == 0 {
			r.pos--
			return Event{}, false, r.errorf("running status byte 0x%02x without a previous status", status)
		}
		data1 = status
		status = r.lastStatus
	} else {
		r.lastStatus = status
		if data1, err = r.readByte(); err != nil {
			return Event{}, false, err
		}
	}
	data1 &= 0x7f

	ev := Event{Channel: status & 0x0f}
	kind := status >> 4
	var data2 byte
	if kind != 0xc && kind != 0xd {
		if data2, err = r.readByte(); err != nil {
			return Event{}, false, err
		}
		data2 &= 0x7f
	}

	switch kind {
	case 0x8:
		ev.Kind, ev.Data1, ev.Data2 = NoteOff, data1, data2
	case 0x9:
		ev.Kind, ev.Data1, ev.Data2 = NoteOn, data1, data2
		if data2 == 0 {
			ev.Kind = NoteOff
		}
	case 0xb:
		ev.Kind, ev.Data1, ev.Data2 = ControlChange, data1, data2
	case 0xc:
		ev.Kind, ev.Data1 = ProgramChange, data1
	case 0xe:
		ev.Kind = PitchBend
		ev.Value = (int(data2)<<7 | int(data1)) - 8192
	default:
		// Polyphonic key pressure and channel pressure.
		return Event{}, false, nil
	}
	return ev, true, nil
}

func (r *trackReader) readMeta() (Event, bool, error) {
	typ, err := r.readByte()
	if err != nil {
		return Event{}, false, err
	}
	n, err := r.readVLQ()
	if err != nil {
		return Event{}, false, err
	}
	start := r.pos
	if err := r.skip(int(n)); err != nil {
		return Event{}, false, err
	}
	payload := r.data[start:r.pos]

	switch typ {
	case 0x2f:
		return Event{Kind: EndOfTrack}, true, nil
	case 0x51:
		if len(payload) != 3 {
			return Event{}, false, nil
		}
		us := int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2])
		if us == 0 {
			return Event{}, false, nil
		}
		return Event{Kind: TempoChange, Value: us}, true, nil
	}
	return Event{}, false, nil
}
