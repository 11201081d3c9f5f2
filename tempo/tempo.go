// Package tempo converts between musical time (beats, bars) and seconds
// under a tempo and time signature. It is the sole authority for musical
// time in the engine: every other package asks tempo for conversions
// instead of embedding its own beats/seconds arithmetic.
package tempo

import "math"

// Signature is a musical time signature, e.g. 4/4 is {4, 4}.
type Signature struct {
	BeatsPerBar int
	BeatValue   int
}

// FourFour is the most common time signature, provided as a convenience
// default for callers that haven't configured one yet.
var FourFour = Signature{BeatsPerBar: 4, BeatValue: 4}

// Valid reports whether the signature satisfies the data-model invariant
// beatsPerBar >= 1.
func (s Signature) Valid() bool {
	return s.BeatsPerBar >= 1 && s.BeatValue >= 1
}

// BeatsToSeconds converts a beat count to seconds at the given tempo (BPM).
// tempo must be > 0; callers are expected to validate tempo before calling,
// as this package holds no state to reject an invalid value against.
func BeatsToSeconds(beats float64, bpm float64) float64 {
	return beats * 60 / bpm
}

// SecondsToBeats converts seconds to a beat count at the given tempo (BPM).
func SecondsToBeats(seconds float64, bpm float64) float64 {
	return seconds * bpm / 60
}

// BarsToBeats converts a bar count to beats under the given signature.
func BarsToBeats(bars float64, sig Signature) float64 {
	return bars * float64(sig.BeatsPerBar)
}

// BeatsToBars converts a beat count to bars under the given signature.
func BeatsToBars(beats float64, sig Signature) float64 {
	return beats / float64(sig.BeatsPerBar)
}

// BarBeatOf returns the 1-indexed (bar, beat) position of positionSeconds
// under the given tempo and signature. Bar and beat are both 1-indexed, so
// the very start of the timeline is (bar=1, beat=1).
func BarBeatOf(positionSeconds float64, bpm float64, sig Signature) (bar int, beat int) {
	totalBeats := SecondsToBeats(positionSeconds, bpm)
	if totalBeats < 0 {
		totalBeats = 0
	}
	beatsPerBar := float64(sig.BeatsPerBar)
	barIndex := math.Floor(totalBeats / beatsPerBar)
	beatInBar := totalBeats - barIndex*beatsPerBar
	return int(barIndex) + 1, int(math.Floor(beatInBar)) + 1
}
