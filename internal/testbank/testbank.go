// Package testbank builds small in-memory SoundFont files for tests.
package testbank

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Generator is a raw generator record.
type Generator struct {
	Op     uint16
	Amount int16
}

// Range packs a key or velocity range into a generator amount.
func Range(lo, hi uint8) int16 {
	return int16(uint16(lo) | uint16(hi)<<8)
}

// Program names a preset pointing at the bank's single instrument.
type Program struct {
	Name    string
	Bank    uint16
	Program uint16
}

// Options controls the generated bank. The zero value yields a bank with
// one looping sine preset at bank 0, program 0 covering every key.
type Options struct {
	VersionMajor   uint16 // 0 means 2
	SampleRate     int    // 0 means 44100
	RootKey        int    // 0 means 60
	Frames         int    // approximate sample length; 0 means 4410
	NoLoop         bool
	Sm24           bool
	KeyLo, KeyHi   uint8 // both zero means 0..127
	InstrumentGens []Generator
	PresetGens     []Generator
	Programs       []Program // nil means a single bank 0 program 0 preset
	Omit           string    // chunk id (or LIST type) to leave out
}

// Generator operators used by Build.
const (
	opKeyRange    = 43
	opInstrument  = 41
	opSampleID    = 53
	opSampleModes = 54
)

// Build renders opts into SoundFont bytes.
func Build(opts Options) []byte {
	if opts.VersionMajor == 0 {
		opts.VersionMajor = 2
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.RootKey == 0 {
		opts.RootKey = 60
	}
	if opts.Frames == 0 {
		opts.Frames = 4410
	}
	if opts.Programs == nil {
		opts.Programs = []Program{{Name: "Test Sine"}}
	}

	samples := SineCycles(opts.SampleRate, opts.RootKey, opts.Frames)
	frames := len(samples)

	var smpl bytes.Buffer
	var sm24 bytes.Buffer
	for _, v := range samples {
		q := int32(math.Round(v * 8388607))
		_ = binary.Write(&smpl, binary.LittleEndian, int16(q>>8))
		sm24.WriteByte(byte(q))
	}
	// SoundFont requires 46 zero points after each sample.
	for i := 0; i < 46; i++ {
		_ = binary.Write(&smpl, binary.LittleEndian, int16(0))
		sm24.WriteByte(0)
	}

	info := [][]byte{
		chunk("ifil", le16(opts.VersionMajor, 1)),
		chunk("isng", zpad("EMU8000", 8)),
		chunk("INAM", zpad("Test Bank", 10)),
	}
	sdta := [][]byte{chunk("smpl", smpl.Bytes())}
	if opts.Sm24 {
		sdta = append(sdta, chunk("sm24", sm24.Bytes()))
	}

	var phdr, pbag, pgen bytes.Buffer
	for i, p := range opts.Programs {
		phdr.Write(zpad(p.Name, 20))
		phdr.Write(le16(p.Program, p.Bank, uint16(i)))
		phdr.Write(make([]byte, 12))
		pbag.Write(le16(uint16(i*(len(opts.PresetGens)+1)), 0))
		for _, g := range opts.PresetGens {
			pgen.Write(gen(g.Op, g.Amount))
		}
		pgen.Write(gen(opInstrument, 0))
	}
	phdr.Write(zpad("EOP", 20))
	phdr.Write(le16(0, 0, uint16(len(opts.Programs))))
	phdr.Write(make([]byte, 12))
	pbag.Write(le16(uint16(len(opts.Programs)*(len(opts.PresetGens)+1)), 0))
	pgen.Write(gen(0, 0))

	var igen bytes.Buffer
	if opts.KeyLo != 0 || opts.KeyHi != 0 {
		igen.Write(gen(opKeyRange, Range(opts.KeyLo, opts.KeyHi)))
	}
	for _, g := range opts.InstrumentGens {
		igen.Write(gen(g.Op, g.Amount))
	}
	if !opts.NoLoop {
		igen.Write(gen(opSampleModes, 1))
	}
	igen.Write(gen(opSampleID, 0))
	igenCount := uint16(igen.Len() / 4)
	igen.Write(gen(0, 0))

	var inst bytes.Buffer
	inst.Write(zpad("Sine", 20))
	inst.Write(le16(0))
	inst.Write(zpad("EOI", 20))
	inst.Write(le16(1))

	var shdr bytes.Buffer
	shdr.Write(zpad("Sine", 20))
	shdr.Write(le32(0, uint32(frames), 0, uint32(frames), uint32(opts.SampleRate)))
	shdr.Write([]byte{byte(opts.RootKey), 0})
	shdr.Write(le16(0, 1))
	shdr.Write(zpad("EOS", 20))
	shdr.Write(make([]byte, 26))

	pdta := [][]byte{
		chunk("phdr", phdr.Bytes()),
		chunk("pbag", pbag.Bytes()),
		chunk("pmod", make([]byte, 10)),
		chunk("pgen", pgen.Bytes()),
		chunk("inst", inst.Bytes()),
		chunk("ibag", append(le16(0, 0), le16(igenCount, 0)...)),
		chunk("imod", make([]byte, 10)),
		chunk("igen", igen.Bytes()),
		chunk("shdr", shdr.Bytes()),
	}

	body := []byte("sfbk")
	body = append(body, list("INFO", omit(info, opts.Omit), opts.Omit)...)
	body = append(body, list("sdta", omit(sdta, opts.Omit), opts.Omit)...)
	body = append(body, list("pdta", omit(pdta, opts.Omit), opts.Omit)...)
	return chunk("RIFF", body)
}

// SineCycles returns a sine at the pitch of rootKey with a whole number of
// cycles, close to frames points long.
func SineCycles(sampleRate int, rootKey int, frames int) []float64 {
	freq := 440 * math.Pow(2, float64(rootKey-69)/12)
	period := int(math.Round(float64(sampleRate) / freq))
	if period < 2 {
		period = 2
	}
	cycles := frames / period
	if cycles < 1 {
		cycles = 1
	}
	out := make([]float64, cycles*period)
	for i := range out {
		out[i] = 0.8 * math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return out
}

func omit(chunks [][]byte, id string) [][]byte {
	if id == "" {
		return chunks
	}
	out := chunks[:0:0]
	for _, c := range chunks {
		if string(c[:4]) == id {
			continue
		}
		out = append(out, c)
	}
	return out
}

func chunk(id string, data []byte) []byte {
	out := make([]byte, 0, 8+len(data)+1)
	out = append(out, id...)
	out = append(out, le32(uint32(len(data)))...)
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func list(typ string, subs [][]byte, omitID string) []byte {
	if typ == omitID {
		return nil
	}
	data := []byte(typ)
	for _, s := range subs {
		data = append(data, s...)
	}
	return chunk("LIST", data)
}

func gen(op uint16, amount int16) []byte {
	return le16(op, uint16(amount))
}

func le16(vs ...uint16) []byte {
	out := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(out[2*i:], v)
	}
	return out
}

func le32(vs ...uint32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}

func zpad(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	return out
}
