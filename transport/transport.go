// Package transport implements the play/pause/stop/seek/loop state machine
// that maps audio-context time to a musical position under tempo and
// looping, per spec.md §4.3.
package transport

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/overtone-labs/corestage/tempo"
)

// State is a snapshot of transport state, returned by value so callers
// (the position timer, event emission) never race the live struct.
type State struct {
	IsPlaying        bool
	PositionSeconds  float64
	Tempo            float64
	IsLooping        bool
	LoopStartSeconds float64
	LoopEndSeconds   float64
	StartContextTime float64
}

// Clock abstracts the audio runtime's monotonic context clock.
type Clock interface {
	Now() float64
}

// ContextResumer/ContextSuspender abstract the host audio runtime's
// resume/suspend calls, the only awaitable operations per spec.md §5.
type ContextResumer interface {
	Resume() error
}

type ContextSuspender interface {
	Suspend() error
}

// PositionUpdate is emitted every positionUpdateInterval while playing.
type PositionUpdate struct {
	ContextTime     float64
	PositionSeconds float64
	Bar             int
	Beat            int
	Tempo           float64
}

const (
	// DefaultPositionUpdateInterval is the position-timer cadence per spec.md §4.3.
	DefaultPositionUpdateInterval = 50 * time.Millisecond
)

// Transport is the play/pause/stop/seek/loop state machine.
type Transport struct {
	clock   Clock
	context ResumeSuspender
	sig     tempo.Signature

	positionUpdateInterval time.Duration
	onPosition             func(PositionUpdate)
	onError                func(error)

	mu    sync.Mutex
	state State

	timerStop chan struct{}
	timerDone chan struct{}
}

// ResumeSuspender is the combination of ContextResumer and ContextSuspender
// the audio runtime must provide.
type ResumeSuspender interface {
	ContextResumer
	ContextSuspender
}

// Options configures a Transport. Zero values fall back to defaults.
type Options struct {
	Signature              tempo.Signature
	PositionUpdateInterval time.Duration
	OnPosition             func(PositionUpdate)
	OnError                func(error)
}

// New constructs a Transport at Stopped, tempo defaulting to 120 BPM.
func New(clock Clock, ctx ResumeSuspender, opts Options) *Transport {
	sig := opts.Signature
	if !sig.Valid() {
		sig = tempo.FourFour
	}
	interval := opts.PositionUpdateInterval
	if interval <= 0 {
		interval = DefaultPositionUpdateInterval
	}
	onPosition := opts.OnPosition
	if onPosition == nil {
		onPosition = func(PositionUpdate) {}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Transport{
		clock:                  clock,
		context:                ctx,
		sig:                    sig,
		positionUpdateInterval: interval,
		onPosition:             onPosition,
		onError:                onError,
		state: State{
			Tempo: 120,
		},
	}
}

// Snapshot returns the current transport state, with position reduced
// through the loop rule if playing.
func (tr *Transport) Snapshot() State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.computeSnapshotLocked()
}

func (tr *Transport) computeSnapshotLocked() State {
	s := tr.state
	if s.IsPlaying {
		raw := tr.clock.Now() - s.StartContextTime
		reduced, advancedStart := tr.reduceLoop(raw, s)
		s.PositionSeconds = reduced
		s.StartContextTime = advancedStart
	}
	return s
}

// reduceLoop implements spec.md §4.3's loop-reduction math. raw is
// now-startContextTime; it returns the reduced position and the
// startContextTime advanced so subsequent computations stay coherent.
func (tr *Transport) reduceLoop(raw float64, s State) (reduced float64, advancedStart float64) {
	if !s.IsLooping {
		return raw, s.StartContextTime
	}
	length := s.LoopEndSeconds - s.LoopStartSeconds
	if length <= 0 {
		return raw, s.StartContextTime
	}
	if raw < s.LoopEndSeconds {
		return raw, s.StartContextTime
	}
	elapsed := raw - s.LoopStartSeconds
	cycles := math.Floor(elapsed / length)
	reduced = s.LoopStartSeconds + (elapsed - cycles*length)
	advancedStart = s.StartContextTime + cycles*length
	return reduced, advancedStart
}

// Play transitions Stopped/Paused -> Playing. If the context fails to
// resume, the transport remains in its prior state and the error is
// returned without mutating startContextTime, per spec.md.
func (tr *Transport) Play() error {
	tr.mu.Lock()
	if tr.state.IsPlaying {
		tr.mu.Unlock()
		return nil
	}
	position := tr.state.PositionSeconds
	tr.mu.Unlock()

	if err := tr.context.Resume(); err != nil {
		tr.onError(fmt.Errorf("transport: resume context: %w", err))
		return err
	}

	tr.mu.Lock()
	now := tr.clock.Now()
	tr.state.StartContextTime = now - position
	tr.state.IsPlaying = true
	tr.mu.Unlock()

	tr.startPositionTimer()
	return nil
}

// Pause transitions Playing -> Paused.
func (tr *Transport) Pause() error {
	tr.mu.Lock()
	if !tr.state.IsPlaying {
		tr.mu.Unlock()
		return nil
	}
	snap := tr.computeSnapshotLocked()
	tr.state.PositionSeconds = snap.PositionSeconds
	tr.state.StartContextTime = snap.StartContextTime
	tr.state.IsPlaying = false
	tr.mu.Unlock()

	tr.stopPositionTimer()

	if err := tr.context.Suspend(); err != nil {
		tr.onError(fmt.Errorf("transport: suspend context: %w", err))
		return err
	}
	return nil
}

// Stop transitions any state -> Stopped, resetting position to 0. Callers
// (the engine façade) are responsible for stopping active sources and
// cancelling the metronome window, since Transport has no reference to
// either.
func (tr *Transport) Stop() {
	tr.mu.Lock()
	tr.state.IsPlaying = false
	tr.state.PositionSeconds = 0
	tr.mu.Unlock()

	tr.stopPositionTimer()
}

// Seek sets position, clamped to >= 0. If playing, startContextTime is
// re-derived so position(now) == p.
func (tr *Transport) Seek(p float64) {
	if p < 0 {
		p = 0
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.state.PositionSeconds = p
	if tr.state.IsPlaying {
		tr.state.StartContextTime = tr.clock.Now() - p
	}
}

// SetTempo stores a new tempo. Re-aligning the metronome's next-beat is the
// caller's responsibility (the engine façade owns the metronome).
func (tr *Transport) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("transport: tempo must be > 0, got %v", bpm)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.state.Tempo = bpm
	return nil
}

// SetLoop stores loop state. end must be > start for looping to take
// effect; an invalid range is stored but has no effect per spec.md's
// "len <= 0 disables looping" rule, which reduceLoop already implements.
func (tr *Transport) SetLoop(on bool, start, end float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.state.IsLooping = on
	tr.state.LoopStartSeconds = start
	tr.state.LoopEndSeconds = end
}

// Signature returns the transport's active time signature, used by callers
// computing bar/beat positions.
func (tr *Transport) Signature() tempo.Signature {
	return tr.sig
}

// SetSignature updates the active time signature.
func (tr *Transport) SetSignature(sig tempo.Signature) {
	if !sig.Valid() {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sig = sig
}

func (tr *Transport) startPositionTimer() {
	tr.mu.Lock()
	if tr.timerStop != nil {
		tr.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	tr.timerStop = stop
	tr.timerDone = done
	tr.mu.Unlock()

	go tr.positionTimerLoop(stop, done)
}

func (tr *Transport) stopPositionTimer() {
	tr.mu.Lock()
	stop := tr.timerStop
	done := tr.timerDone
	tr.timerStop = nil
	tr.timerDone = nil
	tr.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (tr *Transport) positionTimerLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(tr.positionUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := tr.Snapshot()
			sig := tr.Signature()
			bar, beat := tempo.BarBeatOf(snap.PositionSeconds, snap.Tempo, sig)
			tr.onPosition(PositionUpdate{
				ContextTime:     tr.clock.Now(),
				PositionSeconds: snap.PositionSeconds,
				Bar:             bar,
				Beat:            beat,
				Tempo:           snap.Tempo,
			})
		}
	}
}
