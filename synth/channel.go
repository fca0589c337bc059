package synth

import "github.com/cwbudde/algo-midi2wav/sf2"

const (
	numChannels       = 16
	percussionChannel = 9
	rpnNull           = 127
)

// channel is the controller state of one MIDI channel.
type channel struct {
	bankMSB    int
	bankLSB    int
	program    int
	modWheel   int
	volume     int
	expression int
	pan        int
	sustain    bool
	rpnMSB     int
	rpnLSB     int
	bendSemis  int
	bendCents  int
	bend       int // -8192..8191
	reverbSend int
	chorusSend int
}

func newChannel() channel {
	c := channel{volume: 100, pan: 64, reverbSend: 40, bendSemis: 2}
	c.resetControllers()
	return c
}

// resetControllers applies CC121 semantics. Volume, pan, bank, program and
// effect sends survive.
func (c *channel) resetControllers() {
	c.modWheel = 0
	c.expression = 127
	c.sustain = false
	c.bend = 0
	c.rpnMSB, c.rpnLSB = rpnNull, rpnNull
}

func (c *channel) bank(ch int) int {
	if ch == percussionChannel {
		return sf2.PercussionBank
	}
	return c.bankMSB
}

func (c *channel) pitchBendRPN() bool { return c.rpnMSB == 0 && c.rpnLSB == 0 }

// bendOffset returns the pitch bend in cents.
func (c *channel) bendOffset() float64 {
	return float64(c.bend) / 8192 * float64(c.bendSemis*100+c.bendCents)
}

// gain is the squared-law product of volume and expression.
func (c *channel) gain() float64 {
	v := float64(c.volume) / 127
	e := float64(c.expression) / 127
	return v * v * e * e
}

// panOffset maps CC10 onto the pan generator scale of -500..500.
func (c *channel) panOffset() float64 {
	return float64(c.pan-64) / 64 * 500
}

// vibratoDepth is the mod wheel's contribution to vibrato LFO pitch depth
// in cents.
func (c *channel) vibratoDepth() float64 {
	return 50 * float64(c.modWheel) / 127
}
