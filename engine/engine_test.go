package engine

import (
	"testing"
	"time"

	"github.com/overtone-labs/corestage/effect"
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/hostaudio/simrender"
	"github.com/overtone-labs/corestage/midisched"
)

func newTestEngine(t *testing.T) *AudioEngine {
	var frames float64
	ctx := simrender.New(48000, func() float64 { return frames })
	eng := New(ctx)
	t.Cleanup(func() { _ = eng.Dispose() })
	return eng
}

func TestNewWiresMasterChainBetweenGraphAndDestination(t *testing.T) {
	eng := newTestEngine(t)
	chain, ok := eng.TrackChain("")
	if !ok || chain == nil {
		t.Fatal("expected TrackChain(\"\") to resolve the master chain")
	}
}

func TestCreateTrackEmitsTrackUpdated(t *testing.T) {
	eng := newTestEngine(t)

	var got any
	eng.On(EventTrackUpdated, func(payload any) { got = payload })

	handle := eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1})
	if handle.ID == "" {
		t.Fatal("expected a non-empty track id")
	}
	if got == nil {
		t.Fatal("expected a track:updated event on CreateTrack")
	}
}

func TestScheduleClipFailsForUnknownTrack(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.ScheduleClip(AudioClip{TrackID: "ghost"})
	if err == nil {
		t.Fatal("expected an error scheduling a clip against an unknown track")
	}
}

func TestScheduleClipAccumulatesAcrossCalls(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1})

	buf := simrender.NewMonoBuffer(make([]float32, 48000), 48000)
	if err := eng.ScheduleClip(AudioClip{TrackID: handle.ID, Buffer: buf, StartBeat: 0, Duration: 1}); err != nil {
		t.Fatalf("ScheduleClip: %v", err)
	}
	if err := eng.ScheduleClip(AudioClip{TrackID: handle.ID, Buffer: buf, StartBeat: 4, Duration: 1}); err != nil {
		t.Fatalf("ScheduleClip: %v", err)
	}

	if len(eng.audioClips) != 2 {
		t.Fatalf("expected both scheduled clips to persist, got %d", len(eng.audioClips))
	}
}

type fakeInstrument struct {
	onCalls  int
	offCalls int
}

func (f *fakeInstrument) NoteOn(pitch, velocity uint8, at float64) error  { f.onCalls++; return nil }
func (f *fakeInstrument) NoteOff(pitch uint8, at float64) error          { f.offCalls++; return nil }

func TestPreviewNoteDispatchesToBoundInstrument(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeInstrument, BaseVolume: 1})
	inst := &fakeInstrument{}
	eng.BindInstrument(handle.ID, inst)

	eng.PreviewNote(handle.ID, 60, 100)
	if inst.onCalls != 1 {
		t.Fatalf("expected one NoteOn call, got %d", inst.onCalls)
	}

	time.Sleep(250 * time.Millisecond)
	if inst.offCalls != 1 {
		t.Fatalf("expected the preview's delayed NoteOff, got %d", inst.offCalls)
	}
}

func TestScheduleMidiClipFailsForUnknownTrack(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.ScheduleMidiClip(MidiClip{ID: "m1", TrackID: "ghost"})
	if err == nil {
		t.Fatal("expected an error scheduling a MIDI clip against an unknown track")
	}
}

func TestScheduleMidiClipArmsNotesOnStep(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeInstrument, BaseVolume: 1})
	inst := &fakeInstrument{}
	eng.BindInstrument(handle.ID, inst)

	err := eng.ScheduleMidiClip(MidiClip{
		ID: "m1", TrackID: handle.ID, StartBeat: 0,
		Notes: []midisched.Note{{Pitch: 60, Velocity: 100, StartBeat: 0, DurationBeats: 1}},
	})
	if err != nil {
		t.Fatalf("ScheduleMidiClip: %v", err)
	}

	eng.midi.Step(0)
	if inst.onCalls != 1 {
		t.Fatalf("expected the MIDI scheduler to fire the note on Step, got %d calls", inst.onCalls)
	}
}

func TestRemoveTrackDropsBoundInstrument(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeInstrument, BaseVolume: 1})
	eng.BindInstrument(handle.ID, &fakeInstrument{})

	eng.RemoveTrack(handle.ID)
	if _, ok := eng.lookupInstrument(handle.ID); ok {
		t.Fatal("expected RemoveTrack to drop the bound instrument")
	}
}

func TestTrackChainReturnsPerTrackChainDistinctFromMaster(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1})

	trackChain, ok := eng.TrackChain(handle.ID)
	if !ok {
		t.Fatal("expected TrackChain to resolve the track's chain")
	}
	masterChain, _ := eng.TrackChain("")
	if trackChain == masterChain {
		t.Fatal("expected the track's own chain to be distinct from the master chain")
	}
	if _, err := trackChain.CreateEffect(effect.TypeFilter); err != nil {
		t.Fatalf("CreateEffect on track chain: %v", err)
	}
}

func TestDisposeTearsDownWithoutError(t *testing.T) {
	eng := newTestEngine(t)
	eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1})
	if err := eng.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
}

func TestMethodsAreNoOpsAfterDispose(t *testing.T) {
	eng := newTestEngine(t)
	handle := eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1})

	if err := eng.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	if err := eng.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
	if err := eng.Play(); err != nil {
		t.Fatalf("Play after dispose: %v", err)
	}
	if err := eng.SetTempo(120); err != nil {
		t.Fatalf("SetTempo after dispose: %v", err)
	}
	if err := eng.ScheduleClip(AudioClip{TrackID: handle.ID}); err != nil {
		t.Fatalf("ScheduleClip after dispose: %v", err)
	}
	if h := eng.CreateTrack(graph.Config{Type: graph.TypeAudio, BaseVolume: 1}); h.ID != "" {
		t.Fatalf("CreateTrack after dispose should return a zero handle, got %+v", h)
	}
	if _, ok := eng.TrackChain(handle.ID); ok {
		t.Fatal("TrackChain after dispose should report not-found")
	}
	unsubscribe := eng.On(EventTrackUpdated, func(payload any) {})
	unsubscribe()

	eng.Stop()
	eng.Seek(1)
	eng.SetLoop(true, 0, 1)
	eng.EnableMetronome(true)
	eng.SetMetronomeLevel(0.5)
	eng.UpdateTrack(handle.ID, graph.Update{})
	eng.RemoveTrack(handle.ID)
	eng.BindInstrument(handle.ID, &fakeInstrument{})
	eng.UnscheduleMidiClip("m1")
	eng.ClearAllMidi()
	eng.PreviewNote(handle.ID, 60, 100)

	_ = eng.Snapshot()
}
