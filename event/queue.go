// Package event holds the shared primitives the rest of the engine builds
// on: a time-ordered event queue and a typed, synchronous event emitter.
package event

import "container/heap"

// Event is a time-stamped callback pending dispatch. Ordering key is Time
// ascending; ties are broken by ID ascending (FIFO among equal timestamps).
type Event struct {
	ID       uint64
	Time     float64
	Payload  any
	Callback func(scheduledTime float64)

	index int // heap bookkeeping, maintained by Queue
}

// innerHeap is the container/heap.Interface implementation backing Queue.
// It is kept separate from Queue so Queue's own Push/Pop can have the
// event-typed signatures callers actually want, the way the pack's
// eventloop package wraps a private timerHeap behind a friendlier API.
type innerHeap []*Event

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].ID < h[j].ID
}

func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *innerHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue is a (Time, ID)-ordered priority queue of pending events, backed by
// container/heap the way the shared timer-heap code in the retrieval pack
// (the eventloop package's timerHeap) implements its timer ordering.
type Queue struct {
	heap innerHeap
	byID map[uint64]*Event
}

// NewQueue returns an empty queue ready to use.
func NewQueue() *Queue {
	return &Queue{byID: make(map[uint64]*Event)}
}

// Len reports the number of pending events.
func (q *Queue) Len() int { return len(q.heap) }

// Push inserts an event. The caller owns assigning a unique, monotonic ID.
func (q *Queue) Push(e *Event) {
	heap.Push(&q.heap, e)
	q.byID[e.ID] = e
}

// Peek returns the earliest-ordered pending event without removing it, or
// nil if the queue is empty.
func (q *Queue) Peek() *Event {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// Pop removes and returns the earliest-ordered pending event, or nil if the
// queue is empty.
func (q *Queue) Pop() *Event {
	if len(q.heap) == 0 {
		return nil
	}
	e := heap.Pop(&q.heap).(*Event)
	delete(q.byID, e.ID)
	return e
}

// Cancel removes the event with the given ID if still pending. It is a
// no-op if the event has already been dispatched or was never scheduled.
func (q *Queue) Cancel(id uint64) {
	e, ok := q.byID[id]
	if !ok {
		return
	}
	heap.Remove(&q.heap, e.index)
	delete(q.byID, id)
}

// Clear drops every pending event.
func (q *Queue) Clear() {
	q.heap = q.heap[:0]
	q.byID = make(map[uint64]*Event)
}
