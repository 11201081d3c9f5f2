// Package midisched implements the MIDI note scheduler of spec.md §4.7:
// per-note precompute of (startTimeSeconds, endTimeSeconds) under the
// current tempo, articulation adjustments, and arm/release bookkeeping
// driven by a processing step rather than the LookaheadScheduler directly
// (note durations are typically far longer than the scheduler's lookahead
// window, so notes are polled each step instead of one-shot scheduled).
package midisched

import (
	"time"

	"github.com/overtone-labs/corestage/tempo"
)

// Articulation adjusts a note's duration/velocity per spec.md §4.7.
type Articulation string

const (
	Normal   Articulation = "normal"
	Staccato Articulation = "staccato"
	Legato   Articulation = "legato"
	Accent   Articulation = "accent"
)

// Note is one MIDI note event within a clip.
type Note struct {
	Pitch         uint8
	Velocity      uint8
	StartBeat     float64
	DurationBeats float64
	Articulation  Articulation
}

// Instrument is the per-track sound source midisched drives, satisfied by
// both midiout.Output (hardware) and softsynth.Instrument (in-process).
type Instrument interface {
	NoteOn(pitch, velocity uint8, at float64) error
	NoteOff(pitch uint8, at float64) error
}

// scheduledNote is a precomputed note ready for arm/release polling.
type scheduledNote struct {
	clipID    string
	trackID   string
	pitch     uint8
	velocity  uint8
	startTime float64
	endTime   float64
	armed     bool
	released  bool
	releaseAt float64 // wall-clock-independent: endTime + 1s, per spec's GC rule
}

// InstrumentLookup resolves a trackId to its Instrument; a missing track
// makes note dispatch a no-op, matching the scheduler's lookup-by-id
// ownership rule.
type InstrumentLookup func(trackID string) (Instrument, bool)

// Scheduler polls armed/released state for every precomputed note each
// time Step is called.
type Scheduler struct {
	lookup InstrumentLookup
	notes  map[string][]*scheduledNote // keyed by clipID
}

// New constructs a midisched.Scheduler.
func New(lookup InstrumentLookup) *Scheduler {
	return &Scheduler{lookup: lookup, notes: make(map[string][]*scheduledNote)}
}

// ScheduleClip precomputes (startTime, endTime) for every note in a MIDI
// clip starting at clipStartBeat, under the given tempo, per spec.md
// §4.7's articulation table.
func (s *Scheduler) ScheduleClip(clipID, trackID string, clipStartBeat float64, notes []Note, bpm float64) {
	scheduled := make([]*scheduledNote, 0, len(notes))
	for _, n := range notes {
		duration := n.DurationBeats
		velocity := n.Velocity
		switch n.Articulation {
		case Staccato:
			duration *= 0.5
		case Legato:
			duration *= 1.2
		case Accent:
			velocity = clampVelocity(int(velocity) + 20)
		}
		start := tempo.BeatsToSeconds(clipStartBeat+n.StartBeat, bpm)
		end := start + tempo.BeatsToSeconds(duration, bpm)
		scheduled = append(scheduled, &scheduledNote{
			clipID: clipID, trackID: trackID,
			pitch: n.Pitch, velocity: velocity,
			startTime: start, endTime: end, releaseAt: end + 1,
		})
	}
	s.notes[clipID] = scheduled
}

// UnscheduleClip drops a clip's precomputed notes, releasing any that are
// currently sounding first.
func (s *Scheduler) UnscheduleClip(clipID string, currentTime float64) {
	for _, n := range s.notes[clipID] {
		if n.armed && !n.released {
			s.release(n, currentTime)
		}
	}
	delete(s.notes, clipID)
}

// ClearAll releases every sounding note and drops every scheduled clip.
func (s *Scheduler) ClearAll(currentTime float64) {
	for id := range s.notes {
		s.UnscheduleClip(id, currentTime)
	}
}

// Step advances every scheduled note against currentTime, firing noteOn
// when startTime <= currentTime and noteOff when endTime <= currentTime,
// and garbage-collecting notes one second past their endTime, per
// spec.md §4.7.
func (s *Scheduler) Step(currentTime float64) {
	for clipID, notes := range s.notes {
		kept := notes[:0]
		for _, n := range notes {
			if !n.armed && n.startTime <= currentTime {
				if inst, ok := s.lookup(n.trackID); ok {
					_ = inst.NoteOn(n.pitch, n.velocity, n.startTime)
				}
				n.armed = true
			}
			if n.armed && !n.released && n.endTime <= currentTime {
				s.release(n, currentTime)
			}
			if n.released && currentTime >= n.releaseAt {
				continue // eligible for GC, drop from the live list
			}
			kept = append(kept, n)
		}
		s.notes[clipID] = kept
	}
}

func (s *Scheduler) release(n *scheduledNote, currentTime float64) {
	if inst, ok := s.lookup(n.trackID); ok {
		_ = inst.NoteOff(n.pitch, n.endTime)
	}
	n.released = true
	_ = currentTime
}

// PreviewNote schedules an immediate noteOn and a noteOff 200ms later, per
// spec.md's preview path used by piano-roll interaction.
func (s *Scheduler) PreviewNote(trackID string, pitch uint8, velocity uint8, now float64) {
	if velocity == 0 {
		velocity = 100
	}
	inst, ok := s.lookup(trackID)
	if !ok {
		return
	}
	_ = inst.NoteOn(pitch, velocity, now)
	time.AfterFunc(200*time.Millisecond, func() {
		_ = inst.NoteOff(pitch, now+0.2)
	})
}

func clampVelocity(v int) uint8 {
	if v > 127 {
		return 127
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
