package synth

import (
	"math"

	"github.com/cwbudde/algo-midi2wav/dsp"
	"github.com/cwbudde/algo-midi2wav/sf2"
)

const (
	loopNone       = 0
	loopContinuous = 1
	loopUntilOff   = 3
)

// voice is one sounding region. Voices live in the synthesizer's fixed
// arena and are reused in place.
type voice struct {
	slot     int
	active   bool
	channel  int
	key      int
	velocity int
	order    uint64 // start order, lower is older

	exclusiveClass int32
	released       bool // note-off applied, envelopes releasing
	sustained      bool // note-off deferred by the sustain pedal

	data      []float32
	pos       float64
	start     int
	end       int
	loopStart int
	loopEnd   int
	loopMode  int
	finished  bool

	pitchCents float64 // static pitch relative to the sample's root
	rateRatio  float64 // sample rate / output rate

	volEnv envelope
	modEnv envelope
	modLFO lfo
	vibLFO lfo

	filter   dsp.Biquad
	filterOn bool
	fcCents  float64
	filterQ  float64

	staticGain float64
	pan        float64

	modLfoToPitch   float64
	vibLfoToPitch   float64
	modEnvToPitch   float64
	modLfoToFc      float64
	modEnvToFc      float64
	modLfoToVolume  float64
	reverbSend      float64
	chorusSend      float64
	prevGain        float64
	prevLeftWeight  float64
	prevRightWeight float64
}

// noteOn initializes v from region r. data is the bank's sample pool.
func (v *voice) noteOn(r *sf2.Region, data []float32, ch, key, velocity int, order uint64, sampleRate float64) {
	gen := func(g sf2.Gen) float64 { return float64(r.Gen(g)) }
	s := r.Sample

	*v = voice{
		slot:           v.slot,
		active:         true,
		channel:        ch,
		key:            key,
		velocity:       velocity,
		order:          order,
		exclusiveClass: r.Gen(sf2.GenExclusiveClass),
		data:           data,
		loopMode:       int(r.Gen(sf2.GenSampleModes)),
	}

	clampIdx := func(i int) int { return max(0, min(i, len(data))) }
	v.start = clampIdx(s.Start + int(r.Gen(sf2.GenStartAddrsOffset)) + 32768*int(r.Gen(sf2.GenStartAddrsCoarseOffset)))
	v.end = clampIdx(s.End + int(r.Gen(sf2.GenEndAddrsOffset)) + 32768*int(r.Gen(sf2.GenEndAddrsCoarseOffset)))
	v.loopStart = clampIdx(s.LoopStart + int(r.Gen(sf2.GenStartloopAddrsOffset)) + 32768*int(r.Gen(sf2.GenStartloopAddrsCoarseOffset)))
	v.loopEnd = clampIdx(s.LoopEnd + int(r.Gen(sf2.GenEndloopAddrsOffset)) + 32768*int(r.Gen(sf2.GenEndloopAddrsCoarseOffset)))
	if v.end < v.start {
		v.end = v.start
	}
	if v.loopStart < v.start || v.loopEnd > v.end || v.loopEnd-v.loopStart < 2 {
		v.loopMode = loopNone
	}
	v.pos = float64(v.start)

	pitchKey := key
	if k := r.Gen(sf2.GenKeynum); k >= 0 {
		pitchKey = int(k)
	}
	vel := velocity
	if vv := r.Gen(sf2.GenVelocity); vv > 0 {
		vel = int(vv)
	}
	root := s.OriginalPitch
	if rk := r.Gen(sf2.GenOverridingRootKey); rk >= 0 {
		root = int(rk)
	}
	v.pitchCents = gen(sf2.GenScaleTuning)*float64(pitchKey-root) +
		gen(sf2.GenCoarseTune)*100 + gen(sf2.GenFineTune) + float64(s.PitchCorrection)
	v.rateRatio = float64(s.SampleRate) / sampleRate

	v.volEnv.start(envParams{
		delay: gen(sf2.GenDelayVolEnv), attack: gen(sf2.GenAttackVolEnv),
		hold: gen(sf2.GenHoldVolEnv), decay: gen(sf2.GenDecayVolEnv),
		release: gen(sf2.GenReleaseVolEnv), sustain: gen(sf2.GenSustainVolEnv),
		keyToHold: gen(sf2.GenKeynumToVolEnvHold), keyToDecay: gen(sf2.GenKeynumToVolEnvDecay),
	}, pitchKey, true)
	v.modEnv.start(envParams{
		delay: gen(sf2.GenDelayModEnv), attack: gen(sf2.GenAttackModEnv),
		hold: gen(sf2.GenHoldModEnv), decay: gen(sf2.GenDecayModEnv),
		release: gen(sf2.GenReleaseModEnv), sustain: gen(sf2.GenSustainModEnv),
		keyToHold: gen(sf2.GenKeynumToModEnvHold), keyToDecay: gen(sf2.GenKeynumToModEnvDecay),
	}, pitchKey, false)
	v.modLFO.start(gen(sf2.GenDelayModLFO), gen(sf2.GenFreqModLFO))
	v.vibLFO.start(gen(sf2.GenDelayVibLFO), gen(sf2.GenFreqVibLFO))

	v.modLfoToPitch = gen(sf2.GenModLfoToPitch)
	v.vibLfoToPitch = gen(sf2.GenVibLfoToPitch)
	v.modEnvToPitch = gen(sf2.GenModEnvToPitch)
	v.modLfoToFc = gen(sf2.GenModLfoToFilterFc)
	v.modEnvToFc = gen(sf2.GenModEnvToFilterFc)
	v.modLfoToVolume = gen(sf2.GenModLfoToVolume)

	v.fcCents = gen(sf2.GenInitialFilterFc)
	v.filterQ = math.Sqrt2 / 2 * math.Pow(10, clamp(gen(sf2.GenInitialFilterQ), 0, 960)/200)
	v.filterOn = v.fcCents < 13500 || v.modLfoToFc != 0 || v.modEnvToFc != 0
	v.filter.Reset()

	// EMU-compatible attenuation scaling with the default velocity curve.
	velGain := float64(vel) / 127
	v.staticGain = centibelsToGain(0.4*clamp(gen(sf2.GenInitialAttenuation), 0, 1440)) * velGain * velGain
	v.pan = gen(sf2.GenPan)
	v.reverbSend = gen(sf2.GenReverbEffectsSend) / 1000
	v.chorusSend = gen(sf2.GenChorusEffectsSend) / 1000
}

// noteOff starts the release stage.
func (v *voice) noteOff() {
	v.released = true
	v.sustained = false
	v.volEnv.noteOff()
	v.modEnv.noteOff()
}

func (v *voice) looping() bool {
	return v.loopMode == loopContinuous || (v.loopMode == loopUntilOff && !v.released)
}

// done reports that the voice can be reclaimed.
func (v *voice) done() bool {
	return v.finished || v.volEnv.silent()
}

// amplitude is the volume envelope level used for stealing. A note still
// in its delay, attack or hold stage counts as full level.
func (v *voice) amplitude() float64 {
	if v.volEnv.stage <= envHold {
		return 1
	}
	return v.volEnv.value
}

func (v *voice) fetch(i int, looping bool) float32 {
	if looping && i >= v.loopEnd {
		i -= v.loopEnd - v.loopStart
	}
	if i < v.start {
		i = v.start
	}
	if i >= v.end && !looping {
		return 0
	}
	if i < 0 || i >= len(v.data) {
		return 0
	}
	return v.data[i]
}

// render mixes one block into dst (interleaved stereo) and the mono send
// buses. len(dst) == 2*len(reverb) == 2*len(chorus).
func (v *voice) render(c *channel, dst, reverb, chorus []float64, sampleRate float64, interp Interpolation) {
	n := len(reverb)
	dt := float64(n) / sampleRate

	modEnv := v.modEnv.value
	modLFO := v.modLFO.value
	vibLFO := v.vibLFO.value

	cents := v.pitchCents + c.bendOffset() +
		v.modLfoToPitch*modLFO +
		(v.vibLfoToPitch+c.vibratoDepth())*vibLFO +
		v.modEnvToPitch*modEnv
	step := centsToRatio(cents) * v.rateRatio

	if v.filterOn {
		fc := v.fcCents + v.modEnvToFc*modEnv + v.modLfoToFc*modLFO
		hz := clamp(absCentsToHz(fc), 20, 0.45*sampleRate)
		v.filter.SetLowpass(hz, sampleRate, v.filterQ)
	}

	v.volEnv.advance(dt)
	v.modEnv.advance(dt)
	v.modLFO.advance(dt)
	v.vibLFO.advance(dt)

	gain := v.volEnv.value * v.staticGain * c.gain() * centibelsToGain(v.modLfoToVolume*modLFO)
	pan := clamp(v.pan+c.panOffset(), -500, 500)
	angle := (pan/500 + 1) * math.Pi / 4
	left, right := math.Cos(angle), math.Sin(angle)

	g0, l0, r0 := v.prevGain, v.prevLeftWeight, v.prevRightWeight
	if g0 == 0 && l0 == 0 && r0 == 0 {
		l0, r0 = left, right
	}
	dg := (gain - g0) / float64(n)
	dl := (left - l0) / float64(n)
	dr := (right - r0) / float64(n)
	revSend := clamp(v.reverbSend+float64(c.reverbSend)/127, 0, 1)
	choSend := clamp(v.chorusSend+float64(c.chorusSend)/127, 0, 1)

	for i := 0; i < n; i++ {
		looping := v.looping()
		idx := int(v.pos)
		frac := v.pos - float64(idx)
		var x float64
		if interp == InterpLinear {
			x = dsp.Linear(v.fetch(idx, looping), v.fetch(idx+1, looping), frac)
		} else {
			x = dsp.Cubic(v.fetch(idx-1, looping), v.fetch(idx, looping), v.fetch(idx+1, looping), v.fetch(idx+2, looping), frac)
		}
		if v.filterOn {
			x = v.filter.Process(x)
		}

		k := float64(i + 1)
		y := x * (g0 + dg*k)
		dst[2*i] += y * (l0 + dl*k)
		dst[2*i+1] += y * (r0 + dr*k)
		reverb[i] += y * revSend
		chorus[i] += y * choSend

		v.pos += step
		if looping && v.pos >= float64(v.loopEnd) {
			v.pos -= float64(v.loopEnd - v.loopStart)
		} else if !looping && v.pos >= float64(v.end) {
			v.finished = true
			break
		}
	}

	v.prevGain, v.prevLeftWeight, v.prevRightWeight = gain, left, right
}
