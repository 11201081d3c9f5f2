// Package arrangement implements the push-to-pull adapter of spec.md §4.9
// (named there as attachStore but not specified in detail):
// AttachStore owns the translation from a project's timeline representation
// to AudioEngine calls, so the engine itself never reads track/clip state
// directly from a store. This mirrors how the teacher's commands package
// translates a parsed user command into calls against playback.Engine
// without playback.Engine ever reaching back into the command layer.
//
// This package persists nothing: there is no JSON or disk I/O here, by
// design — the arrangement's durable representation is entirely the
// caller's concern.
package arrangement

import (
	"github.com/overtone-labs/corestage/engine"
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/hostaudio"
	"github.com/overtone-labs/corestage/midisched"
)

// TrackConfig is a track's durable configuration, as read from a Store.
type TrackConfig struct {
	ID         string
	Type       graph.Type
	BaseVolume float64
	Pan        float64
	Muted      bool
	Solo       bool
	CueLevel   float64
}

// ClipConfig is one audio clip placed on a track's timeline.
type ClipConfig struct {
	ID           string
	TrackID      string
	Buffer       hostaudio.Buffer
	StartBeat    float64
	Offset       float64
	Duration     float64
	PlaybackRate float64
}

// MidiClipConfig is one MIDI clip placed on a track's timeline.
type MidiClipConfig struct {
	ID        string
	TrackID   string
	StartBeat float64
	Notes     []midisched.Note
}

// DiffKind identifies the kind of change a Diff describes.
type DiffKind string

const (
	DiffTrackAdded     DiffKind = "track_added"
	DiffTrackRemoved   DiffKind = "track_removed"
	DiffTrackUpdated   DiffKind = "track_updated"
	DiffClipAdded      DiffKind = "clip_added"
	DiffClipRemoved    DiffKind = "clip_removed"
	DiffMidiClipAdded  DiffKind = "midi_clip_added"
	DiffMidiClipRemoved DiffKind = "midi_clip_removed"
)

// Diff is a minimal description of one store mutation, enough for
// AttachStore to decide which single AudioEngine call to issue without
// re-diffing the whole store on every change.
type Diff struct {
	Kind    DiffKind
	TrackID string
	ClipID  string

	Track TrackConfig
	Clip  ClipConfig
	Midi  MidiClipConfig

	Update graph.Update
}

// Store is the read-only view AttachStore pulls from. A Store never calls
// back into AudioEngine itself; Subscribe only notifies AttachStore that
// something changed and what, leaving AttachStore to decide how to apply it.
type Store interface {
	Tracks() []TrackConfig
	Clips(trackID string) []ClipConfig
	MidiClips(trackID string) []MidiClipConfig
	Subscribe(func(Diff)) (unsubscribe func())
}

// AttachStore materializes store's current tracks and clips into eng, then
// subscribes to future diffs and applies each one with a single matching
// AudioEngine call. It owns the translation end to end: nothing here
// persists or re-reads state, and the engine never reaches back into store.
func AttachStore(eng *engine.AudioEngine, store Store) (unsubscribe func()) {
	for _, tc := range store.Tracks() {
		materializeTrack(eng, store, tc)
	}

	return store.Subscribe(func(d Diff) {
		applyDiff(eng, d)
	})
}

func materializeTrack(eng *engine.AudioEngine, store Store, tc TrackConfig) {
	eng.CreateTrack(graph.Config{
		Type:       tc.Type,
		BaseVolume: tc.BaseVolume,
		Pan:        tc.Pan,
		Muted:      tc.Muted,
		Solo:       tc.Solo,
		CueLevel:   tc.CueLevel,
	})
	for _, c := range store.Clips(tc.ID) {
		_ = eng.ScheduleClip(engine.AudioClip{
			TrackID: c.TrackID, Buffer: c.Buffer, StartBeat: c.StartBeat,
			Offset: c.Offset, Duration: c.Duration, PlaybackRate: c.PlaybackRate,
		})
	}
	for _, m := range store.MidiClips(tc.ID) {
		_ = eng.ScheduleMidiClip(engine.MidiClip{
			ID: m.ID, TrackID: m.TrackID, StartBeat: m.StartBeat, Notes: m.Notes,
		})
	}
}

// applyDiff maps one Diff onto the single AudioEngine call it describes.
func applyDiff(eng *engine.AudioEngine, d Diff) {
	switch d.Kind {
	case DiffTrackAdded:
		eng.CreateTrack(graph.Config{
			Type:       d.Track.Type,
			BaseVolume: d.Track.BaseVolume,
			Pan:        d.Track.Pan,
			Muted:      d.Track.Muted,
			Solo:       d.Track.Solo,
			CueLevel:   d.Track.CueLevel,
		})
	case DiffTrackRemoved:
		eng.RemoveTrack(d.TrackID)
	case DiffTrackUpdated:
		eng.UpdateTrack(d.TrackID, d.Update)
	case DiffClipAdded:
		_ = eng.ScheduleClip(engine.AudioClip{
			TrackID: d.Clip.TrackID, Buffer: d.Clip.Buffer, StartBeat: d.Clip.StartBeat,
			Offset: d.Clip.Offset, Duration: d.Clip.Duration, PlaybackRate: d.Clip.PlaybackRate,
		})
	case DiffClipRemoved:
		// Audio clips have no stable engine-side id and AudioEngine has no
		// call that removes or replaces a scheduled clip, so this diff is
		// ignored: the removed clip stays in the engine's clip list and is
		// re-armed on later plays and loop wraps.
	case DiffMidiClipAdded:
		_ = eng.ScheduleMidiClip(engine.MidiClip{
			ID: d.Midi.ID, TrackID: d.Midi.TrackID, StartBeat: d.Midi.StartBeat, Notes: d.Midi.Notes,
		})
	case DiffMidiClipRemoved:
		eng.UnscheduleMidiClip(d.ClipID)
	}
}
