package sf2

// Gen is a SoundFont generator operator.
type Gen uint16

// Generator operators as numbered by SoundFont 2.01, section 8.1.2.
const (
	GenStartAddrsOffset Gen = iota
	GenEndAddrsOffset
	GenStartloopAddrsOffset
	GenEndloopAddrsOffset
	GenStartAddrsCoarseOffset
	GenModLfoToPitch
	GenVibLfoToPitch
	GenModEnvToPitch
	GenInitialFilterFc
	GenInitialFilterQ
	GenModLfoToFilterFc
	GenModEnvToFilterFc
	GenEndAddrsCoarseOffset
	GenModLfoToVolume
	genUnused1
	GenChorusEffectsSend
	GenReverbEffectsSend
	GenPan
	genUnused2
	genUnused3
	genUnused4
	GenDelayModLFO
	GenFreqModLFO
	GenDelayVibLFO
	GenFreqVibLFO
	GenDelayModEnv
	GenAttackModEnv
	GenHoldModEnv
	GenDecayModEnv
	GenSustainModEnv
	GenReleaseModEnv
	GenKeynumToModEnvHold
	GenKeynumToModEnvDecay
	GenDelayVolEnv
	GenAttackVolEnv
	GenHoldVolEnv
	GenDecayVolEnv
	GenSustainVolEnv
	GenReleaseVolEnv
	GenKeynumToVolEnvHold
	GenKeynumToVolEnvDecay
	GenInstrument
	genReserved1
	GenKeyRange
	GenVelRange
	GenStartloopAddrsCoarseOffset
	GenKeynum
	GenVelocity
	GenInitialAttenuation
	genReserved2
	GenEndloopAddrsCoarseOffset
	GenCoarseTune
	GenFineTune
	GenSampleID
	GenSampleModes
	genReserved3
	GenScaleTuning
	GenExclusiveClass
	GenOverridingRootKey
	genUnused5
	GenEndOper

	// GenCount is the number of defined generator operators.
	GenCount = int(GenEndOper) + 1
)

var genDefaults = func() [GenCount]int16 {
	var d [GenCount]int16
	d[GenInitialFilterFc] = 13500
	for _, g := range []Gen{
		GenDelayModLFO, GenDelayVibLFO,
		GenDelayModEnv, GenAttackModEnv, GenHoldModEnv, GenDecayModEnv, GenReleaseModEnv,
		GenDelayVolEnv, GenAttackVolEnv, GenHoldVolEnv, GenDecayVolEnv, GenReleaseVolEnv,
	} {
		d[g] = -12000
	}
	d[GenKeyRange] = packRange(0, 127)
	d[GenVelRange] = packRange(0, 127)
	d[GenKeynum] = -1
	d[GenVelocity] = -1
	d[GenScaleTuning] = 100
	d[GenOverridingRootKey] = -1
	return d
}()

// genLimits holds the valid [min, max] of each ranged generator, SoundFont
// 2.01 section 8.1.3. Fixed key, velocity and root key keep -1 as "unset".
var genLimits = map[Gen][2]int32{
	GenModLfoToPitch:       {-12000, 12000},
	GenVibLfoToPitch:       {-12000, 12000},
	GenModEnvToPitch:       {-12000, 12000},
	GenInitialFilterFc:     {1500, 13500},
	GenInitialFilterQ:      {0, 960},
	GenModLfoToFilterFc:    {-12000, 12000},
	GenModEnvToFilterFc:    {-12000, 12000},
	GenModLfoToVolume:      {-960, 960},
	GenChorusEffectsSend:   {0, 1000},
	GenReverbEffectsSend:   {0, 1000},
	GenPan:                 {-500, 500},
	GenDelayModLFO:         {-12000, 5000},
	GenFreqModLFO:          {-16000, 4500},
	GenDelayVibLFO:         {-12000, 5000},
	GenFreqVibLFO:          {-16000, 4500},
	GenDelayModEnv:         {-12000, 5000},
	GenAttackModEnv:        {-12000, 8000},
	GenHoldModEnv:          {-12000, 5000},
	GenDecayModEnv:         {-12000, 8000},
	GenSustainModEnv:       {0, 1000},
	GenReleaseModEnv:       {-12000, 8000},
	GenKeynumToModEnvHold:  {-1200, 1200},
	GenKeynumToModEnvDecay: {-1200, 1200},
	GenDelayVolEnv:         {-12000, 5000},
	GenAttackVolEnv:        {-12000, 8000},
	GenHoldVolEnv:          {-12000, 5000},
	GenDecayVolEnv:         {-12000, 8000},
	GenSustainVolEnv:       {0, 1440},
	GenReleaseVolEnv:       {-12000, 8000},
	GenKeynumToVolEnvHold:  {-1200, 1200},
	GenKeynumToVolEnvDecay: {-1200, 1200},
	GenKeynum:              {-1, 127},
	GenVelocity:            {-1, 127},
	GenInitialAttenuation:  {0, 1440},
	GenCoarseTune:          {-120, 120},
	GenFineTune:            {-99, 99},
	GenSampleModes:         {0, 3},
	GenScaleTuning:         {0, 1200},
	GenExclusiveClass:      {0, 127},
	GenOverridingRootKey:   {-1, 127},
}

// clampGen limits v to the valid range of g. Generators without a range
// are returned unchanged.
func clampGen(g Gen, v int32) int32 {
	lim, ok := genLimits[g]
	if !ok {
		return v
	}
	return max(lim[0], min(lim[1], v))
}

// Default returns the SoundFont default value of g.
func Default(g Gen) int16 {
	if int(g) >= GenCount {
		return 0
	}
	return genDefaults[g]
}

// presetAdditive reports whether a preset-level value of g is applied as an
// offset on top of the instrument value. Ranges, indices, sample modes,
// exclusive class, root key, fixed key/velocity and sample address offsets
// are instrument-only.
func presetAdditive(g Gen) bool {
	switch g {
	case GenStartAddrsOffset, GenEndAddrsOffset, GenStartloopAddrsOffset, GenEndloopAddrsOffset,
		GenStartAddrsCoarseOffset, GenEndAddrsCoarseOffset, GenStartloopAddrsCoarseOffset,
		GenEndloopAddrsCoarseOffset, GenInstrument, GenKeyRange, GenVelRange, GenKeynum,
		GenVelocity, GenSampleID, GenSampleModes, GenExclusiveClass, GenOverridingRootKey,
		genUnused1, genUnused2, genUnused3, genUnused4, genUnused5,
		genReserved1, genReserved2, genReserved3, GenEndOper:
		return false
	}
	return true
}

func packRange(lo, hi uint8) int16 {
	return int16(uint16(lo) | uint16(hi)<<8)
}

func unpackRange(v int16) (lo, hi uint8) {
	return uint8(uint16(v)), uint8(uint16(v) >> 8)
}

// Layer is one level of generator values: a zone's own generators.
// Resolution queries layers from most to least specific instead of
// copying values into a shared structure.
type Layer struct {
	set    [GenCount]bool
	values [GenCount]int16
}

// Get returns the value of g if the layer defines it.
func (l *Layer) Get(g Gen) (int16, bool) {
	if l == nil || int(g) >= GenCount || !l.set[g] {
		return 0, false
	}
	return l.values[g], true
}

// Has reports whether the layer defines g.
func (l *Layer) Has(g Gen) bool {
	_, ok := l.Get(g)
	return ok
}

// Range returns a key or velocity range defined by the layer.
func (l *Layer) Range(g Gen) (lo, hi uint8, ok bool) {
	v, ok := l.Get(g)
	if !ok {
		return 0, 127, false
	}
	lo, hi = unpackRange(v)
	return lo, hi, true
}

// Set defines g in the layer.
func (l *Layer) Set(g Gen, v int16) {
	l.set[g] = true
	l.values[g] = v
}

// lookup returns the value of g from the first layer that defines it.
func lookup(g Gen, layers ...*Layer) (int16, bool) {
	for _, l := range layers {
		if v, ok := l.Get(g); ok {
			return v, true
		}
	}
	return 0, false
}
