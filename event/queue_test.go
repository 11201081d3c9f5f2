package event

import (
	"math/rand"
	"testing"
)

func TestQueueOrderingByTimeThenID(t *testing.T) {
	q := NewQueue()
	q.Push(&Event{ID: 3, Time: 1.0})
	q.Push(&Event{ID: 1, Time: 1.0})
	q.Push(&Event{ID: 2, Time: 0.5})

	first := q.Pop()
	if first.ID != 2 {
		t.Fatalf("first popped ID = %d, want 2 (earliest time)", first.ID)
	}
	second := q.Pop()
	if second.ID != 1 {
		t.Fatalf("second popped ID = %d, want 1 (tie broken by ascending id)", second.ID)
	}
	third := q.Pop()
	if third.ID != 3 {
		t.Fatalf("third popped ID = %d, want 3", third.ID)
	}
	if q.Pop() != nil {
		t.Fatal("expected empty queue")
	}
}

func TestQueueCancelIsIdempotentAndNoOpOnUnknown(t *testing.T) {
	q := NewQueue()
	q.Push(&Event{ID: 1, Time: 1.0})
	q.Cancel(1)
	q.Cancel(1)   // idempotent
	q.Cancel(999) // unknown id, no-op

	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	for i := uint64(0); i < 5; i++ {
		q.Push(&Event{ID: i, Time: float64(i)})
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Clear", q.Len())
	}
	if q.Pop() != nil {
		t.Fatal("expected nil Pop after Clear")
	}
}

// TestQueueRandomizedOrdering exercises a large randomized sequence of
// (time, id) pairs and asserts the queue always drains in ascending
// (time, id) order, the invariant spec §8 requires of dispatch order.
func TestQueueRandomizedOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := NewQueue()

	const n = 500
	for i := uint64(0); i < n; i++ {
		q.Push(&Event{ID: i, Time: rng.Float64() * 100})
	}

	var lastTime float64 = -1
	var lastID uint64
	for q.Len() > 0 {
		e := q.Pop()
		if e.Time < lastTime {
			t.Fatalf("ordering violated: time %v after %v", e.Time, lastTime)
		}
		if e.Time == lastTime && e.ID < lastID {
			t.Fatalf("tie-break violated: id %d after %d at time %v", e.ID, lastID, e.Time)
		}
		lastTime, lastID = e.Time, e.ID
	}
}
