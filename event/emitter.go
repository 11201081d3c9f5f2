package event

import "sync"

// Handler receives a synchronously-dispatched event payload.
type Handler func(payload any)

// Emitter is a typed mapping of event name to an ordered set of handlers,
// dispatching synchronously from the goroutine that calls Emit. Handlers
// are invoked in insertion order, matching the pack's eventloop convention
// that dispatch order is registration order, never reshuffled for
// fairness or priority.
//
// Emitter is safe for concurrent use, but the engine that owns one is
// expected to call Emit only from its single control-plane goroutine per
// spec's concurrency model; the lock here guards the handler-list
// bookkeeping (On and its unsubscribe function), not cross-goroutine event
// delivery.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
	nextSubID uint64
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewEmitter returns an empty emitter ready to use.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]*subscription)}
}

// On registers handler for name and returns an unsubscribe function. Calling
// the returned function more than once is a no-op.
func (e *Emitter) On(name string, handler Handler) (unsubscribe func()) {
	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.handlers[name] = append(e.handlers[name], &subscription{id: id, handler: handler})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			subs := e.handlers[name]
			for i, s := range subs {
				if s.id == id {
					e.handlers[name] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit dispatches payload synchronously to every handler currently
// registered for name, in insertion order. Handlers registered or removed
// during dispatch do not affect the current Emit call, since the handler
// slice is snapshotted under the lock before any handler runs.
func (e *Emitter) Emit(name string, payload any) {
	e.mu.Lock()
	subs := e.handlers[name]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)
	e.mu.Unlock()

	for _, s := range snapshot {
		s.handler(payload)
	}
}
