// Package scheduler implements the lookahead scheduler: a priority queue of
// time-stamped callbacks driven by a periodic tick that flushes every event
// whose time has entered the dispatch horizon. It is deliberately unaware
// of beats, tracks, or effects — spec.md's "shared primitive" role. Clip
// arming goes through its ordering and failure-isolation code; MIDI notes
// are polled by midisched.Step and metronome clicks are fired directly by
// metronome.ScheduleBeats, neither through this queue.
package scheduler

import (
	"sync"
	"time"

	"github.com/overtone-labs/corestage/event"
)

// Clock abstracts the audio runtime's monotonic context clock so tests can
// drive the scheduler without a real timer. Now returns seconds.
type Clock interface {
	Now() float64
}

// SystemClock implements Clock against a fixed epoch set at construction,
// matching the "context time starts at 0" convention real audio runtimes
// use for AudioContext.currentTime.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock returns a Clock whose Now() reports seconds elapsed since
// construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

const (
	// DefaultIntervalMs is the coarse tick interval per spec.md §4.2.
	DefaultIntervalMs = 25
	// DefaultLookaheadSeconds is the dispatch horizon width per spec.md §4.2.
	DefaultLookaheadSeconds = 0.1
)

// Options configures a Scheduler. Zero values fall back to the spec's
// defaults.
type Options struct {
	IntervalMs       int
	LookaheadSeconds float64
	// OnError receives any panic recovered from a callback, isolating it
	// from the dispatch loop per spec.md's failure mode. Callers (the
	// engine façade) wire this to the "engine:error" event.
	OnError func(err error)
}

// Scheduler is the lookahead scheduler described in spec.md §4.2.
type Scheduler struct {
	clock Clock

	intervalMs       int
	lookaheadSeconds float64
	onError          func(err error)

	mu       sync.Mutex
	nextID   uint64
	queue    *event.Queue
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// New constructs a Scheduler against clock, using the given options (zero
// value acceptable).
func New(clock Clock, opts Options) *Scheduler {
	interval := opts.IntervalMs
	if interval <= 0 {
		interval = DefaultIntervalMs
	}
	lookahead := opts.LookaheadSeconds
	if lookahead <= 0 {
		lookahead = DefaultLookaheadSeconds
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Scheduler{
		clock:            clock,
		intervalMs:       interval,
		lookaheadSeconds: lookahead,
		onError:          onError,
		queue:            event.NewQueue(),
	}
}

// Schedule inserts an event at the given context-clock time and returns its
// cancellation id. payload is carried through to the callback's Event but
// is not interpreted by the scheduler.
func (s *Scheduler) Schedule(t float64, callback func(scheduledTime float64), payload any) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.queue.Push(&event.Event{
		ID:       id,
		Time:     t,
		Payload:  payload,
		Callback: callback,
	})
	return id
}

// Cancel removes a pending event by id. No-op if already dispatched or
// unknown.
func (s *Scheduler) Cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Cancel(id)
}

// Clear drops every pending event.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
}

// Pending reports the number of events not yet dispatched.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Start begins the periodic drive loop on a background goroutine. It is a
// no-op if already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	go s.driveLoop(s.stopChan, s.doneChan)
}

// Stop ends the drive loop, blocking until the loop goroutine has returned.
// It is a no-op if not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan
}

func (s *Scheduler) driveLoop(stopChan, doneChan chan struct{}) {
	defer close(doneChan)

	ticker := time.NewTicker(time.Duration(s.intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush dispatches every event whose time has entered the current horizon
// (now + lookaheadSeconds), in ascending (time, id) order. It is exported
// so an external clock tick can drive the scheduler ad-hoc, per spec.md.
func (s *Scheduler) Flush() {
	horizon := s.clock.Now() + s.lookaheadSeconds

	for {
		s.mu.Lock()
		head := s.queue.Peek()
		if head == nil || head.Time > horizon {
			s.mu.Unlock()
			return
		}
		e := s.queue.Pop()
		s.mu.Unlock()

		s.dispatch(e)
	}
}

// DrainAll dispatches every remaining event regardless of time, the
// shutdown path per spec.md.
func (s *Scheduler) DrainAll() {
	for {
		s.mu.Lock()
		e := s.queue.Pop()
		s.mu.Unlock()
		if e == nil {
			return
		}
		s.dispatch(e)
	}
}

// dispatch invokes a callback with panic isolation: any panic is recovered
// and surfaced through onError instead of crashing the drive loop, per
// spec.md's "callback that throws must be isolated" failure mode.
func (s *Scheduler) dispatch(e *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.onError(panicToError(r))
		}
	}()
	if e.Callback != nil {
		e.Callback(e.Time)
	}
}
