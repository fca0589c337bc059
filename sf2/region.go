package sf2

// PercussionBank is the bank number General MIDI drum kits live in.
const PercussionBank = 128

// Region is one playable preset-zone/instrument-zone pair with its final
// generator values.
type Region struct {
	Sample *Sample
	values [GenCount]int32
}

// Gen returns the resolved value of g.
func (r *Region) Gen(g Gen) int32 {
	if int(g) >= GenCount {
		return 0
	}
	return r.values[g]
}

// KeyRange returns the effective key range (intersection of both levels).
func (r *Region) KeyRange() (lo, hi uint8) { return unpackRange(int16(r.values[GenKeyRange])) }

// VelRange returns the effective velocity range.
func (r *Region) VelRange() (lo, hi uint8) { return unpackRange(int16(r.values[GenVelRange])) }

// FindPreset returns the preset for bank/program, following General MIDI
// fallbacks: drum banks fall back to program 0 of the percussion bank,
// melodic banks to bank 0. The first preset is the last resort. It returns
// nil only for a bank without presets.
func (b *Bank) FindPreset(bank, program int) *Preset {
	if p := b.preset(bank, program); p != nil {
		return p
	}
	if bank == PercussionBank {
		if p := b.preset(PercussionBank, 0); p != nil {
			return p
		}
	} else if p := b.preset(0, program); p != nil {
		return p
	}
	if len(b.Presets) == 0 {
		return nil
	}
	return &b.Presets[0]
}

func (b *Bank) preset(bank, program int) *Preset {
	for i := range b.Presets {
		if b.Presets[i].Bank == bank && b.Presets[i].Program == program {
			return &b.Presets[i]
		}
	}
	return nil
}

// Regions resolves every region of p that sounds for key at velocity.
func (b *Bank) Regions(p *Preset, key, velocity int) []Region {
	if p == nil {
		return nil
	}
	var out []Region
	for pi := range p.Zones {
		pz := &p.Zones[pi]
		if !inRange(key, GenKeyRange, &pz.Generators, globalLayer(p.Global)) ||
			!inRange(velocity, GenVelRange, &pz.Generators, globalLayer(p.Global)) {
			continue
		}
		inst := &b.Instruments[pz.Instrument]
		for ii := range inst.Zones {
			iz := &inst.Zones[ii]
			if !inRange(key, GenKeyRange, &iz.Generators, globalLayer(inst.Global)) ||
				!inRange(velocity, GenVelRange, &iz.Generators, globalLayer(inst.Global)) {
				continue
			}
			out = append(out, b.resolve(iz, inst.Global, pz, p.Global))
		}
	}
	return out
}

func globalLayer(z *Zone) *Layer {
	if z == nil {
		return nil
	}
	return &z.Generators
}

func inRange(v int, g Gen, layers ...*Layer) bool {
	raw, ok := lookup(g, layers...)
	if !ok {
		return true
	}
	lo, hi := unpackRange(raw)
	return v >= int(lo) && v <= int(hi)
}

// resolve applies the layered lookup: defaults < instrument global <
// instrument local for absolute values, then preset global < preset local
// as offsets. Summed values are clamped to their valid ranges.
func (b *Bank) resolve(iz *Zone, ig *Zone, pz *Zone, pg *Zone) Region {
	r := Region{Sample: &b.Samples[iz.Sample]}
	inst := []*Layer{&iz.Generators, globalLayer(ig)}
	pre := []*Layer{&pz.Generators, globalLayer(pg)}
	for g := Gen(0); int(g) < GenCount; g++ {
		v, ok := lookup(g, inst...)
		if !ok {
			v = Default(g)
		}
		val := int32(v)
		if presetAdditive(g) {
			if pv, ok := lookup(g, pre...); ok {
				val += int32(pv)
			}
		}
		r.values[g] = clampGen(g, val)
	}
	r.values[GenKeyRange] = int32(intersect(int16(r.values[GenKeyRange]), GenKeyRange, pre))
	r.values[GenVelRange] = int32(intersect(int16(r.values[GenVelRange]), GenVelRange, pre))
	r.values[GenSampleID] = int32(iz.Sample)
	return r
}

func intersect(v int16, g Gen, layers []*Layer) int16 {
	pv, ok := lookup(g, layers...)
	if !ok {
		return v
	}
	lo, hi := unpackRange(v)
	plo, phi := unpackRange(pv)
	if plo > lo {
		lo = plo
	}
	if phi < hi {
		hi = phi
	}
	return packRange(lo, hi)
}
