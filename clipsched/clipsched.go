// Package clipsched implements the audio clip arming algorithm of
// spec.md §4.6: given an arrangement and a playback start beat, it walks
// the timeline's audio clips and schedules those overlapping
// [playbackStartBeat, ∞) via the LookaheadScheduler.
package clipsched

import (
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/hostaudio"
	"github.com/overtone-labs/corestage/scheduler"
	"github.com/overtone-labs/corestage/tempo"
)

// epsilonSeconds absorbs coarse-timer jitter so a clip's scheduled start is
// never computed as being in the past, per spec.md step 5.
const epsilonSeconds = 0.001

// Clip is one audio clip placed on the timeline.
type Clip struct {
	TrackID         string
	Buffer          hostaudio.Buffer
	StartBeat       float64
	OffsetSeconds   float64
	DurationBeats   float64
	PlaybackRate    float64
}

// TrackTarget is the subset of graph.Track's API the scheduler needs; the
// lookup below still resolves by id rather than holding a direct reference,
// so dispatch is a no-op once a track is removed, per spec.md's "weak in
// lifetime terms" ownership rule.
type TrackTarget interface {
	ScheduleClip(buffer hostaudio.Buffer, contextTime float64, opts graph.ClipOptions)
}

// TrackLookup resolves a clip's trackId to its TrackTarget; it must return
// ok=false for an unknown or removed track so dispatch is a no-op, per
// spec.md's ownership section.
type TrackLookup func(trackID string) (TrackTarget, bool)

// Scheduler walks a clip list and arms each overlapping clip's buffer
// source start through the LookaheadScheduler.
type Scheduler struct {
	sched      *scheduler.Scheduler
	lookupTrack TrackLookup
	tempo      func() float64

	clips           []Clip
	lastPlaybackBeat float64
}

// New constructs a clip Scheduler. tempoFn returns the current tempo in
// BPM at call time, since tempo can change between arm passes.
func New(sched *scheduler.Scheduler, lookupTrack TrackLookup, tempoFn func() float64) *Scheduler {
	return &Scheduler{sched: sched, lookupTrack: lookupTrack, tempo: tempoFn}
}

// SetClips replaces the timeline's audio clip list.
func (s *Scheduler) SetClips(clips []Clip) { s.clips = clips }

// ArmFrom walks every clip overlapping [playbackStartBeat, ∞) and
// schedules it, following spec.md §4.6 steps 1-6 exactly.
func (s *Scheduler) ArmFrom(nowContextTime, playbackStartBeat float64) {
	s.lastPlaybackBeat = playbackStartBeat
	bpm := s.tempo()

	for _, clip := range s.clips {
		offsetBeats := playbackStartBeat - clip.StartBeat
		if offsetBeats < 0 {
			offsetBeats = 0
		}
		remainingBeats := clip.DurationBeats - offsetBeats
		if remainingBeats <= 0 {
			continue
		}
		offsetSeconds := clip.OffsetSeconds + tempo.BeatsToSeconds(offsetBeats, bpm)
		if clip.Buffer != nil && offsetSeconds >= clip.Buffer.Duration() {
			continue
		}
		playbackDuration := tempo.BeatsToSeconds(remainingBeats, bpm)
		if clip.Buffer != nil {
			remainingInBuffer := clip.Buffer.Duration() - offsetSeconds
			if remainingInBuffer < playbackDuration {
				playbackDuration = remainingInBuffer
			}
		}

		deltaBeats := clip.StartBeat - playbackStartBeat
		deltaSeconds := tempo.BeatsToSeconds(deltaBeats, bpm)
		if deltaSeconds < epsilonSeconds {
			deltaSeconds = epsilonSeconds
		}
		contextTime := nowContextTime + deltaSeconds

		c := clip
		rate := c.PlaybackRate
		if rate == 0 {
			rate = 1
		}
		s.sched.Schedule(contextTime, func(scheduledTime float64) {
			track, ok := s.lookupTrack(c.TrackID)
			if !ok {
				return
			}
			track.ScheduleClip(c.Buffer, scheduledTime, graph.ClipOptions{
				Offset:       offsetSeconds,
				Duration:     playbackDuration,
				Loop:         false,
				PlaybackRate: rate,
			})
		}, nil)
	}
}

// OnPositionUpdate re-invokes ArmFrom when a loop wrap is detected (the
// reported position is less than the last observed beat), per spec.md's
// "On loop wrap ... the ClipScheduler is re-invoked with the new playback
// beat."
func (s *Scheduler) OnPositionUpdate(nowContextTime, currentBeat float64) {
	if currentBeat < s.lastPlaybackBeat {
		s.ArmFrom(nowContextTime, currentBeat)
		return
	}
	s.lastPlaybackBeat = currentBeat
}
