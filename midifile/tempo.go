package midifile

import "sort"

// DefaultTempo is the MIDI default of 120 BPM in microseconds per quarter note.
const DefaultTempo = 500000

type tempoSegment struct {
	tick       int64
	seconds    float64 // time at tick
	secPerTick float64
}

// TempoMap converts ticks to seconds. It is a monotonic piecewise-linear
// function with one segment per tempo change, precomputed once.
type TempoMap struct {
	segments []tempoSegment
}

type tempoChange struct {
	tick             int64
	microsPerQuarter int
}

// newTempoMap builds the map for a ticks-per-quarter division. changes must
// be sorted by tick.
func newTempoMap(ticksPerQuarter int, changes []tempoChange) *TempoMap {
	spt := func(us int) float64 {
		return float64(us) / 1e6 / float64(ticksPerQuarter)
	}
	m := &TempoMap{segments: []tempoSegment{{tick: 0, seconds: 0, secPerTick: spt(DefaultTempo)}}}
	for _, c := range changes {
		last := &m.segments[len(m.segments)-1]
		if c.tick == last.tick {
			last.secPerTick = spt(c.microsPerQuarter)
			continue
		}
		m.segments = append(m.segments, tempoSegment{
			tick:       c.tick,
			seconds:    last.seconds + float64(c.tick-last.tick)*last.secPerTick,
			secPerTick: spt(c.microsPerQuarter),
		})
	}
	return m
}

// newFixedRateMap builds a tempo-independent map (SMPTE divisions).
func newFixedRateMap(ticksPerSecond float64) *TempoMap {
	return &TempoMap{segments: []tempoSegment{{secPerTick: 1 / ticksPerSecond}}}
}

// Seconds returns the time of tick in seconds.
func (m *TempoMap) Seconds(tick int64) float64 {
	i := sort.Search(len(m.segments), func(i int) bool { return m.segments[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	s := m.segments[i]
	return s.seconds + float64(tick-s.tick)*s.secPerTick
}

// Len returns the number of constant-tempo segments.
func (m *TempoMap) Len() int { return len(m.segments) }
