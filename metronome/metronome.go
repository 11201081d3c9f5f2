// Package metronome implements the click generator described in spec.md
// §4.5: it consumes scheduler windows and emits click buffer plays aligned
// to beats, plus a metronome:tick event per click.
package metronome

import (
	"math"

	"github.com/overtone-labs/corestage/event"
	"github.com/overtone-labs/corestage/hostaudio"
	"github.com/overtone-labs/corestage/hostaudio/simrender"
	"github.com/overtone-labs/corestage/scheduler"
	"github.com/overtone-labs/corestage/tempo"
)

// TickEvent is the payload of a "metronome:tick" emission.
type TickEvent struct {
	Bar  int
	Beat int
	Time float64
}

// Metronome owns a gain node feeding the master bus and a short
// exponential-decay click buffer played back once per beat.
type Metronome struct {
	ctx    hostaudio.Context
	sched  *scheduler.Scheduler
	events *event.Emitter
	gain   hostaudio.Gain

	sig      tempo.Signature
	enabled  bool
	click    hostaudio.Buffer
	accent   hostaudio.Buffer

	nextBeatNumber int
	nextBeatTime   float64
}

// New builds a Metronome, synthesizing its click buffer, and connects its
// gain node to dst (normally the TrackGraph's master bus).
func New(ctx hostaudio.Context, sched *scheduler.Scheduler, events *event.Emitter, sig tempo.Signature, dst hostaudio.Node) *Metronome {
	m := &Metronome{
		ctx:    ctx,
		sched:  sched,
		events: events,
		gain:   ctx.CreateGain(),
		sig:    sig,
	}
	m.gain.Connect(dst)
	m.click = synthesizeClick(ctx.SampleRate(), 1200)
	m.accent = synthesizeClick(ctx.SampleRate(), 1800)
	return m
}

// synthesizeClick builds a ~20ms one-channel buffer with an exponential
// decay envelope, per spec.md's "one-channel buffer ~20 ms long with
// exponential-decay envelope."
func synthesizeClick(sampleRate int, toneHz float64) hostaudio.Buffer {
	const durationSeconds = 0.02
	n := int(durationSeconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		env := math.Exp(-t / 0.004)
		samples[i] = float32(math.Sin(2*math.Pi*toneHz*t) * env)
	}
	return simrender.NewMonoBuffer(samples, sampleRate)
}

// SetEnabled toggles whether scheduleBeats emits clicks.
func (m *Metronome) SetEnabled(enabled bool) { m.enabled = enabled }

// SetLevel sets the metronome's output gain.
func (m *Metronome) SetLevel(level float64) { m.gain.SetGain(level) }

// SetSignature updates the active time signature used for bar/beat math.
func (m *Metronome) SetSignature(sig tempo.Signature) {
	if sig.Valid() {
		m.sig = sig
	}
}

// Reset aligns nextBeatNumber/nextBeatTime with the current play position,
// per spec.md's `reset(startContextTime, startPositionSeconds,
// secondsPerBeat)`.
func (m *Metronome) Reset(startContextTime, startPositionSeconds, secondsPerBeat float64) {
	if secondsPerBeat <= 0 {
		return
	}
	beatsElapsed := startPositionSeconds / secondsPerBeat
	m.nextBeatNumber = int(math.Ceil(beatsElapsed))
	positionOfNextBeat := float64(m.nextBeatNumber) * secondsPerBeat
	m.nextBeatTime = startContextTime + positionOfNextBeat
}

// ScheduleBeats emits a click for every beat time in [windowStart,
// windowEnd), per spec.md's `scheduleBeats`. It is driven by the same
// lookahead window the transport/clip scheduler use, so clicks stay
// sample-accurate with playback.
func (m *Metronome) ScheduleBeats(windowStart, windowEnd, secondsPerBeat float64) {
	if secondsPerBeat <= 0 {
		return
	}
	for m.nextBeatTime < windowEnd {
		if m.nextBeatTime >= windowStart {
			m.fireBeat(m.nextBeatNumber, m.nextBeatTime)
		}
		m.nextBeatNumber++
		m.nextBeatTime += secondsPerBeat
	}
}

func (m *Metronome) fireBeat(beatNumber int, at float64) {
	bar := beatNumber/m.sig.BeatsPerBar + 1
	beatInBar := beatNumber%m.sig.BeatsPerBar + 1

	buffer := m.click
	if beatInBar == 1 {
		buffer = m.accent
	}
	if m.enabled {
		src := m.ctx.CreateBufferSource()
		src.SetBuffer(buffer)
		src.Connect(m.gain)
		src.Start(at, 0, nil)
	}

	m.events.Emit("metronome:tick", TickEvent{Bar: bar, Beat: beatInBar, Time: at})
}
