package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/overtone-labs/corestage/tempo"
)

type fakeClock struct{ now float64 }

func (c *fakeClock) Now() float64 { return c.now }

type fakeContext struct {
	resumeErr  error
	suspendErr error
	resumed    int
	suspended  int
}

func (c *fakeContext) Resume() error {
	c.resumed++
	return c.resumeErr
}

func (c *fakeContext) Suspend() error {
	c.suspended++
	return c.suspendErr
}

func newTestTransport(clock *fakeClock, ctx *fakeContext) *Transport {
	// Disable the position timer's real cadence effect on tests by using a
	// long interval; tests call Snapshot directly rather than waiting on it.
	return New(clock, ctx, Options{PositionUpdateInterval: time.Hour})
}

func TestPlayPauseStopBasic(t *testing.T) {
	clock := &fakeClock{now: 10}
	ctx := &fakeContext{}
	tr := newTestTransport(clock, ctx)

	if err := tr.Play(); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	clock.now = 12
	snap := tr.Snapshot()
	if !snap.IsPlaying || snap.PositionSeconds != 2 {
		t.Fatalf("snap = %+v, want playing at position 2", snap)
	}

	if err := tr.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	snap = tr.Snapshot()
	if snap.IsPlaying || snap.PositionSeconds != 2 {
		t.Fatalf("snap = %+v, want paused at position 2", snap)
	}

	tr.Stop()
	snap = tr.Snapshot()
	if snap.IsPlaying || snap.PositionSeconds != 0 {
		t.Fatalf("snap = %+v, want stopped at position 0", snap)
	}
}

func TestPlayResumeFailureLeavesStateUnchanged(t *testing.T) {
	clock := &fakeClock{now: 5}
	ctx := &fakeContext{resumeErr: errors.New("denied")}
	tr := newTestTransport(clock, ctx)

	before := tr.Snapshot()
	err := tr.Play()
	if err == nil {
		t.Fatal("expected error from Play()")
	}
	after := tr.Snapshot()
	if after.IsPlaying {
		t.Fatal("transport should remain Stopped on resume failure")
	}
	if after.StartContextTime != before.StartContextTime {
		t.Fatal("startContextTime must not be mutated on resume failure")
	}
}

func TestSeekWhilePlayingKeepsPositionCoherent(t *testing.T) {
	clock := &fakeClock{now: 0}
	ctx := &fakeContext{}
	tr := newTestTransport(clock, ctx)
	_ = tr.Play()

	tr.Seek(30)
	snap := tr.Snapshot()
	if snap.PositionSeconds != 30 {
		t.Fatalf("PositionSeconds = %v, want 30", snap.PositionSeconds)
	}

	clock.now = 1
	snap = tr.Snapshot()
	if snap.PositionSeconds != 31 {
		t.Fatalf("PositionSeconds = %v, want 31 after 1s elapsed", snap.PositionSeconds)
	}
}

// TestLoopWrapKeepsPositionInRange is spec §8's loop invariant:
// after setLoop(true, s, e) with e>s, reported position lies in [s, e).
func TestLoopWrapKeepsPositionInRange(t *testing.T) {
	clock := &fakeClock{now: 0}
	ctx := &fakeContext{}
	tr := newTestTransport(clock, ctx)
	tr.SetLoop(true, 0, 4)
	_ = tr.Play()

	for clock.now = 0; clock.now <= 20; clock.now += 0.37 {
		snap := tr.Snapshot()
		if snap.PositionSeconds < 0 || snap.PositionSeconds >= 4 {
			t.Fatalf("at raw=%v position=%v, want in [0, 4)", clock.now, snap.PositionSeconds)
		}
	}
}

func TestLoopDisabledWhenLengthNonPositive(t *testing.T) {
	clock := &fakeClock{now: 0}
	ctx := &fakeContext{}
	tr := newTestTransport(clock, ctx)
	tr.SetLoop(true, 5, 5) // len == 0, loop should be a no-op
	_ = tr.Play()

	clock.now = 100
	snap := tr.Snapshot()
	if snap.PositionSeconds != 100 {
		t.Fatalf("PositionSeconds = %v, want 100 (loop disabled)", snap.PositionSeconds)
	}
}

func TestSetTempoRejectsNonPositive(t *testing.T) {
	tr := newTestTransport(&fakeClock{}, &fakeContext{})
	if err := tr.SetTempo(0); err == nil {
		t.Fatal("expected error for tempo=0")
	}
	if err := tr.SetTempo(-5); err == nil {
		t.Fatal("expected error for negative tempo")
	}
	if err := tr.SetTempo(140); err != nil {
		t.Fatalf("SetTempo(140) error: %v", err)
	}
}

func TestBarBeatTracksSignature(t *testing.T) {
	clock := &fakeClock{now: 0}
	tr := newTestTransport(clock, &fakeContext{})
	tr.SetSignature(tempo.Signature{BeatsPerBar: 3, BeatValue: 4})
	_ = tr.SetTempo(120)
	_ = tr.Play()

	clock.now = 1.0
	snap := tr.Snapshot()
	bar, beat := tempo.BarBeatOf(snap.PositionSeconds, snap.Tempo, tr.Signature())
	if bar != 1 || beat != 3 {
		t.Fatalf("bar/beat = %d/%d, want 1/3", bar, beat)
	}
}
