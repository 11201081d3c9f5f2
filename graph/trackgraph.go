package graph

import (
	"sort"
	"sync"

	"github.com/overtone-labs/corestage/hostaudio"
)

// TrackGraph owns the track map, master/cue buses, and the mute/solo gain
// resolution spec.md §4.4 delegates to the engine level: "if any track has
// solo=true, all non-solo tracks are effectively muted ... except the
// master." The anySolo-scan-then-apply shape follows the teacher pack's
// aaliyan1230 midi-mixer audio-engine.go, generalized from a fixed 4-channel
// drum machine to an arbitrary track map guarded by a mutex instead of a
// lock-free snapshot-per-audio-callback.
type TrackGraph struct {
	ctx hostaudio.Context

	master hostaudio.Gain
	cue    hostaudio.Gain
	sends  map[string]hostaudio.Gain

	mu     sync.Mutex
	tracks map[string]*Track
	nextID int
}

// New builds a TrackGraph with fresh master and cue buses connected to the
// context's destination.
func New(ctx hostaudio.Context) *TrackGraph {
	g := &TrackGraph{
		ctx:    ctx,
		master: ctx.CreateGain(),
		cue:    ctx.CreateGain(),
		sends:  make(map[string]hostaudio.Gain),
		tracks: make(map[string]*Track),
	}
	g.master.SetGain(1)
	g.master.Connect(ctx.Destination())
	g.cue.Connect(ctx.Destination())
	return g
}

// Master returns the master bus node, the point effect chains and the
// metronome attach to.
func (g *TrackGraph) Master() hostaudio.Gain { return g.master }

// CueBus returns the headphone/cue monitor bus.
func (g *TrackGraph) CueBus() hostaudio.Node { return g.cue }

// CreateTrack adds a track, wires it to the master and cue buses, and
// re-resolves mute/solo gains across the whole graph.
func (g *TrackGraph) CreateTrack(cfg Config) *Track {
	g.mu.Lock()
	id := "track-" + itoa(g.nextID)
	g.nextID++
	t := newTrack(g.ctx, id, cfg)
	t.ChainOutput().Connect(g.master)
	t.CueOutput().Connect(g.cue)
	g.tracks[id] = t
	g.mu.Unlock()

	g.resolveMuteSolo()
	return t
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

// Track looks up a track by id.
func (g *TrackGraph) Track(id string) (*Track, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tracks[id]
	return t, ok
}

// UpdateTrack applies a partial Update, a no-op on an unknown id per
// spec.md's failure semantics.
func (g *TrackGraph) UpdateTrack(id string, u Update) {
	g.mu.Lock()
	t, ok := g.tracks[id]
	g.mu.Unlock()
	if !ok {
		return
	}
	t.applyUpdate(u)
	g.resolveMuteSolo()
}

// RemoveTrack stops and disposes a track, calling StopAll synchronously
// per spec.md's failure semantics, then re-resolves mute/solo.
func (g *TrackGraph) RemoveTrack(id string) {
	g.mu.Lock()
	t, ok := g.tracks[id]
	if ok {
		delete(g.tracks, id)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	t.StopAll(g.ctx.CurrentTime())
	t.Dispose()
	g.resolveMuteSolo()
}

// SetSendLevel configures a named send bus at `amount` from the given
// track, per spec.md's `setSendLevel(sendId, busGain, amount)`.
func (g *TrackGraph) SetSendLevel(trackID, sendID string, amount float64) error {
	g.mu.Lock()
	t, ok := g.tracks[trackID]
	bus, busOK := g.sends[sendID]
	if !busOK {
		bus = g.ctx.CreateGain()
		bus.SetGain(1)
		bus.Connect(g.ctx.Destination())
		g.sends[sendID] = bus
	}
	g.mu.Unlock()
	if !ok {
		return trackNotFoundError(trackID)
	}
	t.setSendLevel(sendID, bus, amount)
	return nil
}

// StopAll stops every active source on every track, per spec.md's
// transport `stop()` side effect.
func (g *TrackGraph) StopAll() {
	g.mu.Lock()
	tracks := make([]*Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		tracks = append(tracks, t)
	}
	g.mu.Unlock()
	at := g.ctx.CurrentTime()
	for _, t := range tracks {
		t.StopAll(at)
	}
}

// resolveMuteSolo recomputes effectiveGain for every track per spec.md's
// formula: effectiveGain = anySolo ? (solo ? baseVolume : 0) : (muted ? 0
// : baseVolume).
func (g *TrackGraph) resolveMuteSolo() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.tracks))
	for id := range g.tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic iteration for callers diffing track:updated events

	anySolo := false
	for _, id := range ids {
		if g.tracks[id].Snapshot().Solo {
			anySolo = true
			break
		}
	}
	for _, id := range ids {
		t := g.tracks[id]
		cfg := t.Snapshot()
		var effective float64
		switch {
		case anySolo && cfg.Solo:
			effective = cfg.BaseVolume
		case anySolo:
			effective = 0
		case cfg.Muted:
			effective = 0
		default:
			effective = cfg.BaseVolume
		}
		t.setEffectiveGain(effective)
	}
	g.mu.Unlock()
}

// Dispose tears down the master/cue buses and every track.
func (g *TrackGraph) Dispose() {
	g.mu.Lock()
	tracks := g.tracks
	g.tracks = nil
	g.mu.Unlock()
	for _, t := range tracks {
		t.Dispose()
	}
	g.master.DisconnectAll()
	g.cue.DisconnectAll()
	for _, s := range g.sends {
		s.DisconnectAll()
	}
}
