// Package graph implements Track and TrackGraph: per-track gain/pan/send
// routing and mute/solo gain resolution, per spec.md §3/§4.4. Routing
// follows `input -> pan -> gain -> chain.input; chain.output -> masterBus;
// chain.output -> cueSend -> cueBus; input -> sendN_gain -> sendN_bus`.
package graph

import (
	"fmt"
	"sync"

	"github.com/overtone-labs/corestage/effect"
	"github.com/overtone-labs/corestage/hostaudio"
)

// Type identifies what kind of source feeds a track.
type Type string

const (
	TypeAudio      Type = "audio"
	TypeMIDI       Type = "midi"
	TypeInstrument Type = "instrument"
)

// Config is the initial state passed to NewTrack/CreateTrack.
type Config struct {
	Type       Type
	BaseVolume float64
	Pan        float64
	Muted      bool
	Solo       bool
	CueLevel   float64
}

// Update carries a partial mutation; nil fields are left unchanged, per
// spec.md's `updateTrack(id, partial)`.
type Update struct {
	BaseVolume *float64
	Pan        *float64
	Muted      *bool
	Solo       *bool
	CueLevel   *float64
}

// activeSource is a currently-playing buffer source retained so stopAll
// can cancel it, per spec.md's "Track retains the source until its
// onended fires."
type activeSource struct {
	node hostaudio.BufferSource
}

// Track owns one gain/pan/cue-send node set, its effect chain, its
// per-send gains, and its currently-playing sources, per spec.md's
// ownership section.
type Track struct {
	ID string

	ctx   hostaudio.Context
	input hostaudio.Gain
	pan   hostaudio.Pan
	gain  hostaudio.Gain
	chain *effect.Chain
	cue   hostaudio.Gain

	mu      sync.Mutex
	cfg     Config
	sends   map[string]hostaudio.Gain
	sources []*activeSource
}

func newTrack(ctx hostaudio.Context, id string, cfg Config) *Track {
	if cfg.BaseVolume == 0 {
		cfg.BaseVolume = 1
	}
	t := &Track{
		ID:    id,
		ctx:   ctx,
		input: ctx.CreateGain(),
		pan:   ctx.CreatePan(),
		gain:  ctx.CreateGain(),
		chain: effect.NewChain(ctx),
		cue:   ctx.CreateGain(),
		cfg:   cfg,
		sends: make(map[string]hostaudio.Gain),
	}
	t.pan.SetPan(cfg.Pan)
	t.cue.SetGain(cfg.CueLevel)
	t.input.Connect(t.pan)
	t.pan.Connect(t.gain)
	t.gain.Connect(t.chain.Input())
	t.chain.Output().Connect(t.cue)
	return t
}

// Input is where upstream sources (clip buffer sources, instrument
// output) connect into the track.
func (t *Track) Input() hostaudio.Node { return t.input }

// ChainOutput is the track's post-effect signal, routed to the master bus
// by the owning TrackGraph.
func (t *Track) ChainOutput() hostaudio.Node { return t.chain.Output() }

// CueOutput is the track's cue-send tap, routed to the cue bus.
func (t *Track) CueOutput() hostaudio.Node { return t.cue }

// Chain exposes the track's effect chain for add/remove/move/bypass.
func (t *Track) Chain() *effect.Chain { return t.chain }

// Snapshot returns the track's current configuration.
func (t *Track) Snapshot() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// applyUpdate merges a partial Update into cfg and returns the merged
// Config; the caller (TrackGraph) still owns mute/solo gain resolution
// since that depends on sibling tracks.
func (t *Track) applyUpdate(u Update) Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u.BaseVolume != nil {
		t.cfg.BaseVolume = *u.BaseVolume
	}
	if u.Pan != nil {
		t.cfg.Pan = *u.Pan
		t.pan.SetPan(*u.Pan)
	}
	if u.Muted != nil {
		t.cfg.Muted = *u.Muted
	}
	if u.Solo != nil {
		t.cfg.Solo = *u.Solo
	}
	if u.CueLevel != nil {
		t.cfg.CueLevel = *u.CueLevel
		t.cue.SetGain(*u.CueLevel)
	}
	return t.cfg
}

// setEffectiveGain is called by TrackGraph whenever this track or any
// sibling's mute/solo state changes, per spec.md's effectiveGain formula.
func (t *Track) setEffectiveGain(g float64) { t.gain.SetGain(g) }

// setSendLevel configures (creating if necessary) the gain feeding sendId,
// per spec.md's `setSendLevel(sendId, busGain, amount)`.
func (t *Track) setSendLevel(sendID string, bus hostaudio.Node, amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.sends[sendID]
	if !ok {
		g = t.ctx.CreateGain()
		t.input.Connect(g)
		g.Connect(bus)
		t.sends[sendID] = g
	}
	g.SetGain(amount)
}

// ScheduleClip arms a buffer source per spec.md §4.4's scheduleClip
// algorithm: configure loop bounds, playback rate, connect to the track's
// input (which already routes through pan -> gain -> chain), and start it
// at the given context time.
func (t *Track) ScheduleClip(buffer hostaudio.Buffer, contextTime float64, opts ClipOptions) {
	src := t.ctx.CreateBufferSource()
	src.SetBuffer(buffer)
	src.SetPlaybackRate(nz(opts.PlaybackRate, 1))
	if opts.Loop {
		src.SetLoop(true, opts.Offset, opts.Offset+opts.Duration)
	}
	src.Connect(t.input)

	active := &activeSource{node: src}
	t.mu.Lock()
	t.sources = append(t.sources, active)
	t.mu.Unlock()

	src.OnEnded(func() {
		t.mu.Lock()
		for i, s := range t.sources {
			if s == active {
				t.sources = append(t.sources[:i], t.sources[i+1:]...)
				break
			}
		}
		t.mu.Unlock()
	})

	var duration *float64
	if opts.Duration > 0 {
		d := opts.Duration
		duration = &d
	}
	src.Start(contextTime, opts.Offset, duration)
}

// ClipOptions configures ScheduleClip, per spec.md's active clip schedule.
type ClipOptions struct {
	Offset        float64
	Duration      float64
	Loop          bool
	PlaybackRate  float64
}

func nz(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

// StopAll cancels every currently-playing source on this track.
func (t *Track) StopAll(at float64) {
	t.mu.Lock()
	sources := t.sources
	t.sources = nil
	t.mu.Unlock()
	for _, s := range sources {
		s.node.Stop(at)
	}
}

// Dispose tears down every node this track owns.
func (t *Track) Dispose() {
	t.StopAll(0)
	t.input.DisconnectAll()
	t.pan.DisconnectAll()
	t.gain.DisconnectAll()
	t.cue.DisconnectAll()
	for _, g := range t.sends {
		g.DisconnectAll()
	}
	for _, e := range t.chain.Effects() {
		e.Dispose()
	}
}

func trackNotFoundError(id string) error {
	return fmt.Errorf("graph: track %q not found", id)
}
