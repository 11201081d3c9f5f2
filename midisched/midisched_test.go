package midisched

import (
	"sync"
	"testing"
	"time"
)

type fakeInstrument struct {
	mu      sync.Mutex
	onEvts  []noteEvt
	offEvts []noteEvt
}

type noteEvt struct {
	pitch, velocity uint8
	at              float64
}

func (f *fakeInstrument) NoteOn(pitch, velocity uint8, at float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEvts = append(f.onEvts, noteEvt{pitch, velocity, at})
	return nil
}

func (f *fakeInstrument) NoteOff(pitch uint8, at float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offEvts = append(f.offEvts, noteEvt{pitch, 0, at})
	return nil
}

func (f *fakeInstrument) snapshot() (on, off []noteEvt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]noteEvt(nil), f.onEvts...), append([]noteEvt(nil), f.offEvts...)
}

func TestStepFiresNoteOnAtStartTime(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.ScheduleClip("clip-1", "track-0", 0, []Note{
		{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 1},
	}, 120) // 0.5s/beat: note spans [0, 0.5]

	s.Step(-0.1)
	if on, _ := inst.snapshot(); len(on) != 0 {
		t.Fatalf("note fired before its start time: %+v", on)
	}

	s.Step(0)
	on, _ := inst.snapshot()
	if len(on) != 1 || on[0].pitch != 60 {
		t.Fatalf("expected one noteOn for pitch 60, got %+v", on)
	}
}

func TestStepFiresNoteOffAtEndTime(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.ScheduleClip("clip-1", "track-0", 0, []Note{
		{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 1},
	}, 120)

	s.Step(0)
	if _, off := inst.snapshot(); len(off) != 0 {
		t.Fatalf("noteOff fired too early: %+v", off)
	}

	s.Step(0.5)
	_, off := inst.snapshot()
	if len(off) != 1 || off[0].pitch != 60 {
		t.Fatalf("expected one noteOff for pitch 60, got %+v", off)
	}
}

func TestStaccatoShortensDuration(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.ScheduleClip("clip-1", "track-0", 0, []Note{
		{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 1, Articulation: Staccato},
	}, 120) // full duration would be 0.5s, staccato halves it to 0.25s

	s.Step(0)
	s.Step(0.25)
	_, off := inst.snapshot()
	if len(off) != 1 {
		t.Fatalf("expected staccato note to release at 0.25s, got %+v", off)
	}
}

func TestAccentBoostsVelocityClampedTo127(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.ScheduleClip("clip-1", "track-0", 0, []Note{
		{Pitch: 60, Velocity: 120, StartBeat: 0, DurationBeats: 1, Articulation: Accent},
	}, 120)

	s.Step(0)
	on, _ := inst.snapshot()
	if len(on) != 1 || on[0].velocity != 127 {
		t.Fatalf("expected accented velocity clamped to 127, got %+v", on)
	}
}

func TestUnscheduleClipReleasesSoundingNotes(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.ScheduleClip("clip-1", "track-0", 0, []Note{
		{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 4},
	}, 120)
	s.Step(0) // arm it

	s.UnscheduleClip("clip-1", 0.1)
	_, off := inst.snapshot()
	if len(off) != 1 {
		t.Fatalf("expected UnscheduleClip to release the sounding note, got %+v", off)
	}
}

func TestUnknownTrackIsANoOp(t *testing.T) {
	s := New(func(id string) (Instrument, bool) { return nil, false })
	s.ScheduleClip("clip-1", "ghost-track", 0, []Note{
		{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 1},
	}, 120)
	s.Step(0) // must not panic despite the missing instrument
}

func TestPreviewNoteFiresImmediateOnAndDelayedOff(t *testing.T) {
	inst := &fakeInstrument{}
	s := New(func(id string) (Instrument, bool) { return inst, true })

	s.PreviewNote("track-0", 64, 0, 0)
	on, _ := inst.snapshot()
	if len(on) != 1 || on[0].velocity != 100 {
		t.Fatalf("expected velocity to default to 100 when 0 is passed, got %+v", on)
	}

	time.Sleep(250 * time.Millisecond)
	_, off := inst.snapshot()
	if len(off) != 1 {
		t.Fatalf("expected a delayed noteOff after 200ms, got %+v", off)
	}
}
