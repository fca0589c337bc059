package synth

import "math"

type envStage int

const (
	envDelay envStage = iota
	envAttack
	envHold
	envDecay
	envSustain
	envRelease
	envDone
)

// envelope is a DAHDSR generator advanced once per block. The volume
// envelope decays and releases exponentially (linear in centibels); the
// modulation envelope is linear throughout.
type envelope struct {
	exponential bool

	delay, attack, hold, decay, release float64 // seconds
	sustain                             float64 // level in [0, 1]

	stage        envStage
	t            float64 // seconds spent in stage
	value        float64
	releaseLevel float64
}

type envParams struct {
	delay, attack, hold, decay, release float64 // timecents
	sustain                             float64 // generator units
	keyToHold, keyToDecay               float64
}

// A full decay or release covers 96 dB (960 cB) in the stage time.
const envRangeCb = 960

func (e *envelope) start(p envParams, key int, exponential bool) {
	keyOffset := float64(60 - key)
	*e = envelope{
		exponential: exponential,
		delay:       timecentsToSeconds(p.delay),
		attack:      timecentsToSeconds(p.attack),
		hold:        timecentsToSeconds(p.hold + p.keyToHold*keyOffset),
		decay:       timecentsToSeconds(p.decay + p.keyToDecay*keyOffset),
		release:     timecentsToSeconds(p.release),
	}
	if exponential {
		e.sustain = centibelsToGain(clamp(p.sustain, 0, 1440))
	} else {
		e.sustain = 1 - clamp(p.sustain, 0, 1000)/1000
	}
	e.settle()
}

// rate returns the exponential decay constant for a stage of length secs.
func rate(secs float64) float64 {
	return envRangeCb * math.Ln10 / 200 / secs
}

func (e *envelope) stageLength() float64 {
	switch e.stage {
	case envDelay:
		return e.delay
	case envAttack:
		return e.attack
	case envHold:
		return e.hold
	case envDecay:
		if e.sustain >= 1 {
			return 0
		}
		if e.exponential {
			return math.Log(1/math.Max(e.sustain, silenceEpsilon)) / rate(e.decay)
		}
		return (1 - e.sustain) * e.decay
	case envRelease:
		if e.exponential {
			if e.releaseLevel <= silenceEpsilon {
				return 0
			}
			return math.Log(e.releaseLevel/silenceEpsilon) / rate(e.release)
		}
		return e.releaseLevel * e.release
	}
	return math.Inf(1)
}

func (e *envelope) level() float64 {
	switch e.stage {
	case envAttack:
		return e.t / e.attack
	case envHold:
		return 1
	case envDecay:
		if e.exponential {
			return math.Max(e.sustain, expApprox(-rate(e.decay)*e.t))
		}
		return math.Max(e.sustain, 1-e.t/e.decay)
	case envSustain:
		return e.sustain
	case envRelease:
		if e.exponential {
			return e.releaseLevel * expApprox(-rate(e.release)*e.t)
		}
		return math.Max(0, e.releaseLevel-e.t/e.release)
	}
	return 0
}

// settle moves past finished stages and refreshes value.
func (e *envelope) settle() {
	for e.stage != envSustain && e.stage != envDone {
		d := e.stageLength()
		if e.t < d {
			break
		}
		e.t -= d
		if e.stage == envRelease {
			e.stage = envDone
		} else {
			e.stage++
		}
	}
	e.value = e.level()
}

func (e *envelope) advance(dt float64) {
	if e.stage == envDone {
		return
	}
	e.t += dt
	e.settle()
}

// noteOff enters the release stage from the current level.
func (e *envelope) noteOff() {
	if e.stage >= envRelease {
		return
	}
	e.releaseLevel = e.value
	e.stage = envRelease
	e.t = 0
	e.settle()
}

// silent reports that the envelope can no longer produce audible output.
func (e *envelope) silent() bool {
	return e.stage == envDone || (e.stage == envSustain && e.sustain < silenceEpsilon)
}
