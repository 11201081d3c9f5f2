// Package engine implements AudioEngine, the façade of spec.md §4.8: it
// owns the scheduler, transport, metronome, track graph, clip/MIDI
// schedulers and event bus, fans commands into the subsystems it owns, and
// exposes a single public contract plus an event bus. The single
// engine-wide mutex follows the teacher's playback.Engine.mu shape,
// generalized to guard every owned subsystem instead of just the step
// sequencer's pattern grid.
package engine

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/overtone-labs/corestage/clipsched"
	"github.com/overtone-labs/corestage/effect"
	"github.com/overtone-labs/corestage/event"
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/hostaudio"
	"github.com/overtone-labs/corestage/metronome"
	"github.com/overtone-labs/corestage/midisched"
	"github.com/overtone-labs/corestage/scheduler"
	"github.com/overtone-labs/corestage/tempo"
	"github.com/overtone-labs/corestage/transport"
)

// Event name constants, per spec.md §4.8.
const (
	EventTransportState    = "transport:state"
	EventTransportPosition = "transport:position"
	EventTrackUpdated      = "track:updated"
	EventMetronomeTick     = "metronome:tick"
	EventEngineError       = "engine:error"
)

// TrackHandle is returned by CreateTrack; callers mutate tracks only
// through UpdateTrack/RemoveTrack by id, never by holding this directly.
type TrackHandle struct {
	ID string
}

// AudioClip describes one scheduleClip call, per spec.md's active clip
// schedule data model.
type AudioClip struct {
	TrackID      string
	Buffer       hostaudio.Buffer
	StartBeat    float64
	Offset       float64
	Duration     float64
	Loop         bool
	PlaybackRate float64
}

// MidiClip describes one scheduleMidiClip call.
type MidiClip struct {
	ID        string
	TrackID   string
	StartBeat float64
	Notes     []midisched.Note
}

// clockAdapter narrows hostaudio.Context down to the Now()-only Clock
// interface scheduler and transport each depend on.
type clockAdapter struct{ ctx hostaudio.Context }

func (c clockAdapter) Now() float64 { return c.ctx.CurrentTime() }

// AudioEngine is the public façade. It exclusively owns the scheduler,
// transport, metronome, track graph and sends map, per spec.md's
// ownership section.
type AudioEngine struct {
	mu       sync.Mutex
	disposed bool

	ctx    hostaudio.Context
	events *event.Emitter
	sched  *scheduler.Scheduler
	tr     *transport.Transport
	graph  *graph.TrackGraph
	metro  *metronome.Metronome
	clips  *clipsched.Scheduler
	midi   *midisched.Scheduler

	masterChain *effect.Chain

	audioClips   []clipsched.Clip
	instrumentOf map[string]midisched.Instrument
	midiClips    map[string]MidiClip
}

// New wires every subsystem together exactly the way spec.md §4 specifies
// each component's inputs, and starts the scheduler's drive loop.
func New(ctx hostaudio.Context) *AudioEngine {
	eng := &AudioEngine{
		ctx:          ctx,
		events:       event.NewEmitter(),
		instrumentOf: make(map[string]midisched.Instrument),
		midiClips:    make(map[string]MidiClip),
	}
	clock := clockAdapter{ctx}

	eng.sched = scheduler.New(clock, scheduler.Options{
		OnError: func(err error) { eng.events.Emit(EventEngineError, err) },
	})
	eng.graph = graph.New(ctx)

	// Insert a master effect chain between the track graph's master bus
	// and the context's destination, the same input -> chain -> output
	// wiring graph.newTrack uses for a per-track chain.
	eng.masterChain = effect.NewChain(ctx)
	eng.graph.Master().DisconnectAll()
	eng.graph.Master().Connect(eng.masterChain.Input())
	eng.masterChain.Output().Connect(ctx.Destination())

	eng.tr = transport.New(clock, ctx, transport.Options{
		OnPosition: eng.onPosition,
		OnError:    func(err error) { eng.events.Emit(EventEngineError, err) },
	})
	eng.metro = metronome.New(ctx, eng.sched, eng.events, tempo.FourFour, eng.graph.Master())
	eng.clips = clipsched.New(eng.sched, eng.lookupTrack, func() float64 { return eng.tr.Snapshot().Tempo })
	eng.midi = midisched.New(eng.lookupInstrument)

	eng.sched.Start()
	return eng
}

// isDisposed reports whether Dispose has already run. Every public method
// except Snapshot checks this and no-ops, per spec.md §7's lifecycle
// invariant that all methods are no-ops after dispose other than
// observing the last snapshot.
func (eng *AudioEngine) isDisposed() bool {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	return eng.disposed
}

func (eng *AudioEngine) lookupTrack(id string) (clipsched.TrackTarget, bool) {
	return eng.graph.Track(id)
}

func (eng *AudioEngine) lookupInstrument(trackID string) (midisched.Instrument, bool) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	inst, ok := eng.instrumentOf[trackID]
	return inst, ok
}

// onPosition is the transport's position-timer callback: it re-emits
// transport:position, advances the metronome's beat window, re-arms the
// clip scheduler on loop wrap, and steps the MIDI scheduler.
func (eng *AudioEngine) onPosition(update transport.PositionUpdate) {
	eng.events.Emit(EventTransportPosition, update)

	secondsPerBeat := tempo.BeatsToSeconds(1, update.Tempo)
	windowEnd := update.ContextTime + scheduler.DefaultLookaheadSeconds
	eng.metro.ScheduleBeats(update.ContextTime, windowEnd, secondsPerBeat)

	currentBeat := tempo.SecondsToBeats(update.PositionSeconds, update.Tempo)
	eng.clips.OnPositionUpdate(update.ContextTime, currentBeat)
	eng.midi.Step(update.ContextTime)
}

// --- Transport passthrough ---

func (eng *AudioEngine) Play() error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return nil
	}
	if err := eng.tr.Play(); err != nil {
		return err
	}
	snap := eng.tr.Snapshot()
	beat := tempo.SecondsToBeats(snap.PositionSeconds, snap.Tempo)
	eng.clips.ArmFrom(eng.ctx.CurrentTime(), beat)
	eng.metro.Reset(snap.StartContextTime, snap.PositionSeconds, tempo.BeatsToSeconds(1, snap.Tempo))
	eng.events.Emit(EventTransportState, snap)
	return nil
}

func (eng *AudioEngine) Pause() error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return nil
	}
	if err := eng.tr.Pause(); err != nil {
		return err
	}
	eng.events.Emit(EventTransportState, eng.tr.Snapshot())
	return nil
}

func (eng *AudioEngine) Stop() {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.tr.Stop()
	eng.graph.StopAll()
	eng.sched.Clear()
	eng.midi.ClearAll(eng.ctx.CurrentTime())
	eng.events.Emit(EventTransportState, eng.tr.Snapshot())
}

func (eng *AudioEngine) Seek(seconds float64) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.tr.Seek(seconds)
	eng.events.Emit(EventTransportState, eng.tr.Snapshot())
}

func (eng *AudioEngine) SetTempo(bpm float64) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return nil
	}
	if err := eng.tr.SetTempo(bpm); err != nil {
		return err
	}
	snap := eng.tr.Snapshot()
	eng.metro.Reset(snap.StartContextTime, snap.PositionSeconds, tempo.BeatsToSeconds(1, bpm))
	eng.events.Emit(EventTransportState, snap)
	return nil
}

func (eng *AudioEngine) SetLoop(on bool, start, end float64) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.tr.SetLoop(on, start, end)
	eng.events.Emit(EventTransportState, eng.tr.Snapshot())
}

func (eng *AudioEngine) Snapshot() transport.State {
	return eng.tr.Snapshot()
}

// --- Metronome ---

func (eng *AudioEngine) EnableMetronome(on bool) {
	if eng.isDisposed() {
		return
	}
	eng.metro.SetEnabled(on)
}

func (eng *AudioEngine) SetMetronomeLevel(v float64) {
	if eng.isDisposed() {
		return
	}
	eng.metro.SetLevel(v)
}

// --- Tracks ---

func (eng *AudioEngine) CreateTrack(cfg graph.Config) TrackHandle {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return TrackHandle{}
	}
	t := eng.graph.CreateTrack(cfg)
	eng.events.Emit(EventTrackUpdated, t.Snapshot())
	return TrackHandle{ID: t.ID}
}

func (eng *AudioEngine) UpdateTrack(id string, u graph.Update) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.graph.UpdateTrack(id, u)
	if t, ok := eng.graph.Track(id); ok {
		eng.events.Emit(EventTrackUpdated, t.Snapshot())
	}
}

func (eng *AudioEngine) RemoveTrack(id string) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.graph.RemoveTrack(id)
	delete(eng.instrumentOf, id)
}

// BindInstrument attaches a midisched.Instrument (hardware or softsynth)
// to a track id, so the MIDI scheduler can find it during Step.
func (eng *AudioEngine) BindInstrument(trackID string, inst midisched.Instrument) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.instrumentOf[trackID] = inst
}

// --- Clips ---

// ScheduleClip arms an audio clip, failing synchronously with "track not
// found" if trackID is unknown, per spec.md's failure semantics.
func (eng *AudioEngine) ScheduleClip(clip AudioClip) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return nil
	}
	if _, ok := eng.graph.Track(clip.TrackID); !ok {
		return fmt.Errorf("engine: schedule clip: track %q not found", clip.TrackID)
	}
	eng.audioClips = append(eng.audioClips, clipsched.Clip{
		TrackID: clip.TrackID, Buffer: clip.Buffer, StartBeat: clip.StartBeat,
		OffsetSeconds: clip.Offset, DurationBeats: clip.Duration, PlaybackRate: clip.PlaybackRate,
	})
	eng.clips.SetClips(eng.audioClips)

	snap := eng.tr.Snapshot()
	beat := tempo.SecondsToBeats(snap.PositionSeconds, snap.Tempo)
	eng.clips.ArmFrom(eng.ctx.CurrentTime(), beat)
	return nil
}

// ScheduleMidiClip arms a MIDI clip's notes under the current tempo.
func (eng *AudioEngine) ScheduleMidiClip(clip MidiClip) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return nil
	}
	if _, ok := eng.graph.Track(clip.TrackID); !ok {
		return fmt.Errorf("engine: schedule midi clip: track %q not found", clip.TrackID)
	}
	eng.midiClips[clip.ID] = clip
	eng.midi.ScheduleClip(clip.ID, clip.TrackID, clip.StartBeat, clip.Notes, eng.tr.Snapshot().Tempo)
	return nil
}

func (eng *AudioEngine) UnscheduleMidiClip(clipID string) {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	delete(eng.midiClips, clipID)
	eng.midi.UnscheduleClip(clipID, eng.ctx.CurrentTime())
}

func (eng *AudioEngine) ClearAllMidi() {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.disposed {
		return
	}
	eng.midiClips = make(map[string]MidiClip)
	eng.midi.ClearAll(eng.ctx.CurrentTime())
}

// PreviewNote plays a single note immediately, for piano-roll interaction.
func (eng *AudioEngine) PreviewNote(trackID string, pitch, velocity uint8) {
	if eng.isDisposed() {
		return
	}
	eng.midi.PreviewNote(trackID, pitch, velocity, eng.ctx.CurrentTime())
}

// --- Effects ---

// TrackChain returns a track's effect chain, or the master chain if
// trackID is empty.
func (eng *AudioEngine) TrackChain(trackID string) (*effect.Chain, bool) {
	if eng.isDisposed() {
		return nil, false
	}
	if trackID == "" {
		return eng.masterChain, true
	}
	t, ok := eng.graph.Track(trackID)
	if !ok {
		return nil, false
	}
	return t.Chain(), true
}

// --- Events ---

func (eng *AudioEngine) On(name string, handler event.Handler) (unsubscribe func()) {
	if eng.isDisposed() {
		return func() {}
	}
	return eng.events.On(name, handler)
}

// --- Lifecycle ---

// Dispose tears down every owned subsystem concurrently, following the
// teacher pack's errgroup-based concurrent-teardown idiom: disconnecting
// node graphs and closing the audio context are independent, so they run
// in parallel instead of serially.
func (eng *AudioEngine) Dispose() error {
	eng.mu.Lock()
	if eng.disposed {
		eng.mu.Unlock()
		return nil
	}
	eng.disposed = true
	eng.sched.Stop()
	eng.tr.Stop()
	g := eng.graph
	ctx := eng.ctx
	eng.mu.Unlock()

	var grp errgroup.Group
	grp.Go(func() error {
		g.Dispose()
		return nil
	})
	grp.Go(func() error {
		return ctx.Close()
	})
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("engine: dispose: %w", err)
	}
	return nil
}
