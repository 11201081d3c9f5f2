package metronome

import (
	"testing"

	"github.com/overtone-labs/corestage/event"
	"github.com/overtone-labs/corestage/hostaudio/simrender"
	"github.com/overtone-labs/corestage/tempo"
)

func newTestMetronome() (*Metronome, *event.Emitter) {
	ctx := simrender.New(48000, func() float64 { return 0 })
	events := event.NewEmitter()
	m := New(ctx, nil, events, tempo.FourFour, ctx.Destination())
	m.SetEnabled(true)
	return m, events
}

func TestResetAlignsToNextWholeBeat(t *testing.T) {
	m, _ := newTestMetronome()
	// Half a beat into bar 1 at 1 second/beat: the next beat is beat 1.
	m.Reset(0, 0.5, 1.0)
	if m.nextBeatNumber != 1 {
		t.Fatalf("nextBeatNumber = %d, want 1", m.nextBeatNumber)
	}
	if m.nextBeatTime != 1.0 {
		t.Fatalf("nextBeatTime = %v, want 1.0", m.nextBeatTime)
	}
}

func TestScheduleBeatsFiresOncePerBeatInWindow(t *testing.T) {
	m, events := newTestMetronome()
	m.Reset(0, 0, 1.0)

	var ticks []TickEvent
	events.On("metronome:tick", func(payload any) {
		ticks = append(ticks, payload.(TickEvent))
	})

	m.ScheduleBeats(0, 3.5, 1.0)

	if len(ticks) != 4 { // beats at t=0,1,2,3
		t.Fatalf("got %d ticks, want 4: %+v", len(ticks), ticks)
	}
	for i, tick := range ticks {
		if tick.Time != float64(i) {
			t.Fatalf("tick %d time = %v, want %v", i, tick.Time, i)
		}
	}
	// 4/4 time: beat numbers 0..3 all fall in bar 1, beats 1..4.
	if ticks[3].Bar != 1 || ticks[3].Beat != 4 {
		t.Fatalf("tick 3 = bar %d beat %d, want bar 1 beat 4", ticks[3].Bar, ticks[3].Beat)
	}
}

func TestScheduleBeatsAdvancesIntoNextBar(t *testing.T) {
	m, events := newTestMetronome()
	m.Reset(0, 0, 1.0)

	var ticks []TickEvent
	events.On("metronome:tick", func(payload any) {
		ticks = append(ticks, payload.(TickEvent))
	})

	m.ScheduleBeats(0, 4.5, 1.0) // beats 0..4, the 5th (index 4) starts bar 2

	if len(ticks) != 5 {
		t.Fatalf("got %d ticks, want 5", len(ticks))
	}
	if ticks[4].Bar != 2 || ticks[4].Beat != 1 {
		t.Fatalf("tick 4 = bar %d beat %d, want bar 2 beat 1", ticks[4].Bar, ticks[4].Beat)
	}
}

func TestScheduleBeatsIsIdempotentAcrossAdjacentWindows(t *testing.T) {
	m, events := newTestMetronome()
	m.Reset(0, 0, 1.0)

	var ticks []TickEvent
	events.On("metronome:tick", func(payload any) {
		ticks = append(ticks, payload.(TickEvent))
	})

	m.ScheduleBeats(0, 1.5, 1.0)
	m.ScheduleBeats(1.5, 3.0, 1.0)

	if len(ticks) != 3 { // beats 0, 1, 2 — none skipped or repeated across windows
		t.Fatalf("got %d ticks across two windows, want 3: %+v", len(ticks), ticks)
	}
}

func TestDisabledMetronomeStillEmitsTicks(t *testing.T) {
	m, events := newTestMetronome()
	m.SetEnabled(false)
	m.Reset(0, 0, 1.0)

	fired := false
	events.On("metronome:tick", func(payload any) { fired = true })
	m.ScheduleBeats(0, 1, 1.0)

	if !fired {
		t.Fatal("metronome:tick should fire even when click audio is disabled")
	}
}
