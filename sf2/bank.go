// Package sf2 loads SoundFont 2 instrument banks into read-only in-memory
// presets, instruments and normalized sample data.
package sf2

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
)

// Info holds the bank's INFO-list metadata.
type Info struct {
	VersionMajor int
	VersionMinor int
	SoundEngine  string
	Name         string
	Engineers    string
	Copyright    string
	Comment      string
	Software     string
}

// Sample is a sample header pointing into Bank.Data.
type Sample struct {
	Name            string
	Start           int
	End             int
	LoopStart       int
	LoopEnd         int
	SampleRate      int
	OriginalPitch   int
	PitchCorrection int
	Link            int
	Type            uint16
}

// IsROM reports whether the sample lives in synthesizer ROM rather than the file.
func (s *Sample) IsROM() bool { return s.Type&0x8000 != 0 }

// Modulator is a raw modulator record from pmod/imod.
type Modulator struct {
	Source       uint16
	Destination  Gen
	Amount       int16
	AmountSource uint16
	Transform    uint16
}

// Zone maps key/velocity ranges to an instrument (preset zones) or a sample
// (instrument zones) plus its own generator layer.
type Zone struct {
	Generators Layer
	Modulators []Modulator
	Instrument int // preset zones; -1 otherwise
	Sample     int // instrument zones; -1 otherwise
}

// Instrument is a named set of sample zones.
type Instrument struct {
	Name   string
	Global *Zone
	Zones  []Zone
}

// Preset is a bank/program addressable set of instrument zones.
type Preset struct {
	Name    string
	Bank    int
	Program int
	Global  *Zone
	Zones   []Zone
}

// Bank is a loaded SoundFont. It is never mutated after Load and is safe
// for concurrent use.
type Bank struct {
	Info        Info
	Presets     []Preset
	Instruments []Instrument
	Samples     []Sample
	// Data holds every sample point normalized to [-1, 1).
	Data []float32
}

// LoadFile reads path fully and parses it.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &audioio.IOError{Op: "read soundfont", Path: path, Err: err}
	}
	b, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Load parses a complete SoundFont 2 file.
func Load(data []byte) (*Bank, error) {
	root, _, err := readChunk(data, 0, 0, "")
	if err != nil {
		return nil, err
	}
	if root.id != "RIFF" || root.listType() != "sfbk" {
		return nil, &FormatError{Msg: "not a RIFF sfbk file"}
	}
	lists, err := root.children(4)
	if err != nil {
		return nil, err
	}

	var info, sdta, pdta *chunk
	for i := range lists {
		c := &lists[i]
		if c.id != "LIST" {
			continue
		}
		switch c.listType() {
		case "INFO":
			info = c
		case "sdta":
			sdta = c
		case "pdta":
			pdta = c
		}
	}
	for _, m := range []struct {
		name string
		c    *chunk
	}{{"INFO", info}, {"sdta", sdta}, {"pdta", pdta}} {
		if m.c == nil {
			return nil, &FormatError{Chunk: m.name, Msg: "missing mandatory chunk"}
		}
	}

	b := &Bank{}
	if err := b.readInfo(*info); err != nil {
		return nil, err
	}
	if err := b.readSampleData(*sdta); err != nil {
		return nil, err
	}
	if err := b.readPresetData(*pdta); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bank) readInfo(list chunk) error {
	subs, err := list.children(4)
	if err != nil {
		return err
	}
	haveVersion := false
	for _, c := range subs {
		switch c.id {
		case "ifil":
			if len(c.data) != 4 {
				return formatErrorf(c, "version chunk has %d bytes, want 4", len(c.data))
			}
			b.Info.VersionMajor = int(binary.LittleEndian.Uint16(c.data[0:2]))
			b.Info.VersionMinor = int(binary.LittleEndian.Uint16(c.data[2:4]))
			if b.Info.VersionMajor != 2 {
				return formatErrorf(c, "unsupported format version %d.%02d", b.Info.VersionMajor, b.Info.VersionMinor)
			}
			haveVersion = true
		case "isng":
			b.Info.SoundEngine = zstring(c.data)
		case "INAM":
			b.Info.Name = zstring(c.data)
		case "IENG":
			b.Info.Engineers = zstring(c.data)
		case "ICOP":
			b.Info.Copyright = zstring(c.data)
		case "ICMT":
			b.Info.Comment = zstring(c.data)
		case "ISFT":
			b.Info.Software = zstring(c.data)
		}
	}
	if !haveVersion {
		return &FormatError{Chunk: "ifil", Offset: list.offset, Msg: "missing mandatory chunk"}
	}
	return nil
}

func (b *Bank) readSampleData(list chunk) error {
	subs, err := list.children(4)
	if err != nil {
		return err
	}
	var smpl, sm24 *chunk
	for i := range subs {
		switch subs[i].id {
		case "smpl":
			smpl = &subs[i]
		case "sm24":
			sm24 = &subs[i]
		}
	}
	if smpl == nil {
		return &FormatError{Chunk: "smpl", Offset: list.offset, Msg: "missing mandatory chunk"}
	}
	if len(smpl.data)%2 != 0 {
		return formatErrorf(*smpl, "odd sample data length %d", len(smpl.data))
	}
	n := len(smpl.data) / 2
	// sm24 is only valid when it carries exactly one byte per sample
	// (plus a pad byte); otherwise it is ignored.
	if sm24 != nil && len(sm24.data) != n && len(sm24.data) != n+1 {
		sm24 = nil
	}

	b.Data = make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(smpl.data[2*i:]))
		if sm24 != nil {
			v := int32(s)<<8 | int32(sm24.data[i])
			b.Data[i] = float32(v) / 8388608
			continue
		}
		b.Data[i] = float32(s) / 32768
	}
	return nil
}

// Record sizes of the pdta sub-chunks.
var hydraRecordSize = map[string]int{
	"phdr": 38,
	"pbag": 4,
	"pmod": 10,
	"pgen": 4,
	"inst": 22,
	"ibag": 4,
	"imod": 10,
	"igen": 4,
	"shdr": 46,
}

var hydraOrder = []string{"phdr", "pbag", "pmod", "pgen", "inst", "ibag", "imod", "igen", "shdr"}

type bag struct {
	gen int
	mod int
}

type generatorRecord struct {
	op     uint16
	amount int16
}

func (b *Bank) readPresetData(list chunk) error {
	subs, err := list.children(4)
	if err != nil {
		return err
	}
	hydra := make(map[string]chunk, len(subs))
	for _, c := range subs {
		if _, ok := hydraRecordSize[c.id]; ok {
			hydra[c.id] = c
		}
	}
	for _, id := range hydraOrder {
		c, ok := hydra[id]
		if !ok {
			return &FormatError{Chunk: id, Offset: list.offset, Msg: "missing mandatory chunk"}
		}
		size := hydraRecordSize[id]
		if len(c.data)%size != 0 {
			return formatErrorf(c, "length %d is not a multiple of record size %d", len(c.data), size)
		}
		// Modulator lists may legitimately be empty; every other list
		// ends with a terminal record.
		if len(c.data) == 0 && id != "pmod" && id != "imod" {
			return formatErrorf(c, "missing terminal record")
		}
	}

	samples, err := readSampleHeaders(hydra["shdr"], len(b.Data))
	if err != nil {
		return err
	}
	b.Samples = samples

	igen, err := readGenerators(hydra["igen"])
	if err != nil {
		return err
	}
	imod := readModulators(hydra["imod"])
	ibag, err := readBags(hydra["ibag"], len(igen), len(imod))
	if err != nil {
		return err
	}
	if err := b.readInstruments(hydra["inst"], ibag, igen, imod); err != nil {
		return err
	}

	pgen, err := readGenerators(hydra["pgen"])
	if err != nil {
		return err
	}
	pmod := readModulators(hydra["pmod"])
	pbag, err := readBags(hydra["pbag"], len(pgen), len(pmod))
	if err != nil {
		return err
	}
	return b.readPresets(hydra["phdr"], pbag, pgen, pmod)
}

func readSampleHeaders(c chunk, dataLen int) ([]Sample, error) {
	const size = 46
	n := len(c.data)/size - 1 // drop terminal EOS record
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		r := c.data[i*size : (i+1)*size]
		s := Sample{
			Name:            zstring(r[0:20]),
			Start:           int(binary.LittleEndian.Uint32(r[20:24])),
			End:             int(binary.LittleEndian.Uint32(r[24:28])),
			LoopStart:       int(binary.LittleEndian.Uint32(r[28:32])),
			LoopEnd:         int(binary.LittleEndian.Uint32(r[32:36])),
			SampleRate:      int(binary.LittleEndian.Uint32(r[36:40])),
			OriginalPitch:   int(r[40]),
			PitchCorrection: int(int8(r[41])),
			Link:            int(binary.LittleEndian.Uint16(r[42:44])),
			Type:            binary.LittleEndian.Uint16(r[44:46]),
		}
		if !s.IsROM() {
			if s.Start > s.End || s.End > dataLen {
				return nil, formatErrorf(c, "sample %q range [%d,%d) outside %d sample points", s.Name, s.Start, s.End, dataLen)
			}
			if s.SampleRate <= 0 {
				return nil, formatErrorf(c, "sample %q has sample rate %d", s.Name, s.SampleRate)
			}
		}
		s.LoopStart = clampInt(s.LoopStart, s.Start, s.End)
		s.LoopEnd = clampInt(s.LoopEnd, s.LoopStart, s.End)
		if s.OriginalPitch > 127 {
			s.OriginalPitch = 60
		}
		out = append(out, s)
	}
	return out, nil
}

func readGenerators(c chunk) ([]generatorRecord, error) {
	n := len(c.data) / 4
	out := make([]generatorRecord, n)
	for i := 0; i < n; i++ {
		r := c.data[i*4 : i*4+4]
		op := binary.LittleEndian.Uint16(r[0:2])
		if int(op) >= GenCount {
			return nil, formatErrorf(c, "out-of-range generator index %d in record %d", op, i)
		}
		out[i] = generatorRecord{op: op, amount: int16(binary.LittleEndian.Uint16(r[2:4]))}
	}
	return out, nil
}

func readModulators(c chunk) []Modulator {
	n := len(c.data) / 10
	out := make([]Modulator, n)
	for i := 0; i < n; i++ {
		r := c.data[i*10 : i*10+10]
		out[i] = Modulator{
			Source:       binary.LittleEndian.Uint16(r[0:2]),
			Destination:  Gen(binary.LittleEndian.Uint16(r[2:4])),
			Amount:       int16(binary.LittleEndian.Uint16(r[4:6])),
			AmountSource: binary.LittleEndian.Uint16(r[6:8]),
			Transform:    binary.LittleEndian.Uint16(r[8:10]),
		}
	}
	return out
}

func readBags(c chunk, genCount, modCount int) ([]bag, error) {
	n := len(c.data) / 4
	out := make([]bag, n)
	for i := 0; i < n; i++ {
		out[i] = bag{
			gen: int(binary.LittleEndian.Uint16(c.data[i*4:])),
			mod: int(binary.LittleEndian.Uint16(c.data[i*4+2:])),
		}
		if out[i].gen > genCount || out[i].mod > modCount {
			return nil, formatErrorf(c, "bag %d references generator %d/modulator %d past list end", i, out[i].gen, out[i].mod)
		}
		if i > 0 && (out[i].gen < out[i-1].gen || out[i].mod < out[i-1].mod) {
			return nil, formatErrorf(c, "bag %d indices are not monotonic", i)
		}
	}
	return out, nil
}

// buildZones turns bags [from, to) into zones. terminal is the generator
// that ends a zone and selects its target (instrument or sampleID); count
// is the number of valid targets.
func buildZones(c chunk, bags []bag, from, to int, gens []generatorRecord, mods []Modulator, terminal Gen, count int) (*Zone, []Zone, error) {
	if from > to || to >= len(bags) {
		return nil, nil, formatErrorf(c, "zone bag range [%d,%d) outside %d bags", from, to, len(bags)-1)
	}
	var global *Zone
	var zones []Zone
	for i := from; i < to; i++ {
		z := Zone{Instrument: -1, Sample: -1}
		target := -1
		for _, g := range gens[bags[i].gen:bags[i+1].gen] {
			op := Gen(g.op)
			if op == terminal {
				target = int(uint16(g.amount))
				break
			}
			z.Generators.Set(op, g.amount)
		}
		z.Modulators = append([]Modulator(nil), mods[bags[i].mod:bags[i+1].mod]...)
		for _, rg := range []Gen{GenKeyRange, GenVelRange} {
			if lo, hi, ok := z.Generators.Range(rg); ok && (lo > hi || hi > 127) {
				return nil, nil, formatErrorf(c, "zone %d has ill-ordered range %d-%d", i-from, lo, hi)
			}
		}
		if target < 0 {
			// Only the first zone may be global; other target-less zones are ignored.
			if i == from && global == nil {
				gz := z
				global = &gz
			}
			continue
		}
		if target >= count {
			return nil, nil, formatErrorf(c, "zone %d references index %d, only %d defined", i-from, target, count)
		}
		if terminal == GenInstrument {
			z.Instrument = target
		} else {
			z.Sample = target
		}
		zones = append(zones, z)
	}
	return global, zones, nil
}

func (b *Bank) readInstruments(c chunk, bags []bag, gens []generatorRecord, mods []Modulator) error {
	const size = 22
	n := len(c.data)/size - 1
	b.Instruments = make([]Instrument, 0, n)
	for i := 0; i < n; i++ {
		r := c.data[i*size : (i+1)*size]
		from := int(binary.LittleEndian.Uint16(r[20:22]))
		to := int(binary.LittleEndian.Uint16(c.data[(i+1)*size+20:]))
		global, zones, err := buildZones(c, bags, from, to, gens, mods, GenSampleID, len(b.Samples))
		if err != nil {
			return err
		}
		b.Instruments = append(b.Instruments, Instrument{Name: zstring(r[0:20]), Global: global, Zones: zones})
	}
	return nil
}

func (b *Bank) readPresets(c chunk, bags []bag, gens []generatorRecord, mods []Modulator) error {
	const size = 38
	n := len(c.data)/size - 1
	b.Presets = make([]Preset, 0, n)
	for i := 0; i < n; i++ {
		r := c.data[i*size : (i+1)*size]
		from := int(binary.LittleEndian.Uint16(r[24:26]))
		to := int(binary.LittleEndian.Uint16(c.data[(i+1)*size+24:]))
		global, zones, err := buildZones(c, bags, from, to, gens, mods, GenInstrument, len(b.Instruments))
		if err != nil {
			return err
		}
		b.Presets = append(b.Presets, Preset{
			Name:    zstring(r[0:20]),
			Program: int(binary.LittleEndian.Uint16(r[20:22])),
			Bank:    int(binary.LittleEndian.Uint16(r[22:24])),
			Global:  global,
			Zones:   zones,
		})
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
