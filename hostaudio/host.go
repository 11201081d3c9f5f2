// Package hostaudio abstracts the host audio runtime: an AudioContext-shaped
// interface with factories for gain/pan/biquad/delay/waveshaper/reverb/
// buffer-source/channel-splitter/channel-merger/analyser nodes, per spec.md
// §6 and §9 ("host-provided DSP nodes behind an abstraction"). The rest of
// the engine depends only on these interfaces, never on a specific audio
// runtime, so a concrete implementation (software simulation, or a real
// device backend) can be swapped in without touching scheduler, transport,
// graph, or effect code.
package hostaudio

// Node is the minimum capability every graph node exposes: wiring. Spec.md
// §9 treats every host node as "a capability {connect, disconnect} plus
// per-kind parameter handles" — this interface is exactly that base
// capability; concrete node interfaces below add their parameter handles.
type Node interface {
	Connect(dst Node)
	Disconnect(dst Node)
	DisconnectAll()
}

// BiquadType selects the filter response a Biquad node applies.
type BiquadType int

const (
	BiquadLowpass BiquadType = iota
	BiquadHighpass
	BiquadBandpass
	BiquadPeaking
	BiquadNotch
)

// Gain is a unity-at-1.0 linear amplitude scaler.
type Gain interface {
	Node
	SetGain(v float64)
	Gain() float64
}

// Pan is an equal-power stereo panner, -1 (full left) to 1 (full right).
type Pan interface {
	Node
	SetPan(v float64)
	Pan() float64
}

// BufferSource plays a Buffer starting at a precise context time with an
// offset and optional duration, mirroring AudioBufferSourceNode.start.
type BufferSource interface {
	Node
	SetBuffer(buf Buffer)
	SetLoop(enabled bool, loopStart, loopEnd float64)
	SetPlaybackRate(rate float64)
	// Start arms playback at context time `when`, reading from `offset`
	// seconds into the buffer. duration == nil means play to the buffer's
	// end (or loop forever, if looping).
	Start(when, offset float64, duration *float64)
	// Stop cancels playback at context time `when`.
	Stop(when float64)
	// OnEnded registers a callback fired once playback completes, either
	// by reaching its duration or by an explicit Stop.
	OnEnded(fn func())
}

// Biquad is a single second-order IIR filter stage.
type Biquad interface {
	Node
	SetType(t BiquadType)
	SetFrequency(hz float64)
	SetQ(q float64)
	SetGainDB(db float64)
}

// Delay is a fixed-topology delay line; feedback and wet/dry mixing are
// composed externally from Gain nodes, matching how a real AudioContext
// only ever gives you the bare delay primitive.
type Delay interface {
	Node
	SetDelayTime(seconds float64)
}

// WaveshaperCurve selects the transfer function a Waveshaper node applies.
type WaveshaperCurve int

const (
	CurveHardClip WaveshaperCurve = iota
	CurveSoftClip
	CurveSaturate
	CurveFoldback
	CurveAsymmetric
	CurveSine
	CurveExponential
)

// Waveshaper applies a nonlinear transfer curve to its input, used for
// distortion/saturation.
type Waveshaper interface {
	Node
	SetCurveType(c WaveshaperCurve)
	SetDrive(drive float64)
	SetMix(mix float64)
}

// Reverb applies an algorithmic room simulation (parallel comb filters plus
// series allpass filters per channel), used for the reverb effect's tail.
type Reverb interface {
	Node
	SetRoomSize(v float64)
	SetDamping(v float64)
	SetWetLevel(v float64)
	SetDryLevel(v float64)
	SetWidth(v float64)
}

// ChannelSplitter exposes a node's left/right channels as independent
// mono outputs, e.g. for per-channel metering.
type ChannelSplitter interface {
	Node
	Left() Node
	Right() Node
}

// ChannelMerger combines two mono sources into one stereo output.
type ChannelMerger interface {
	Node
	ConnectLeft(src Node)
	ConnectRight(src Node)
}

// Analyser taps a signal for read-only level metering without altering it.
type Analyser interface {
	Node
	Peak() float64
	RMS() float64
}

// GenerateFunc fills out with audio starting at startTime (context clock
// seconds); used by Generator nodes that synthesize audio in-process
// rather than playing back a fixed Buffer, e.g. a SoundFont instrument.
type GenerateFunc func(out [][2]float32, startTime float64, sampleRate int)

// Generator is a custom synthesis node, the host-side equivalent of an
// AudioWorkletNode: the caller supplies the per-block generation logic at
// creation time instead of parameter handles, since the "parameter" of a
// generator is arbitrary code, not a scalar.
type Generator interface {
	Node
}

// Buffer is a decoded (or synthesized) block of PCM, sampled by SampleAt.
// Mono buffers report Channels() == 1 and duplicate the single channel
// into both return slots.
type Buffer interface {
	Duration() float64
	SampleRate() int
	Channels() int
	SampleAt(t float64) [2]float32
}

// Context is the AudioContext-shaped host interface, per spec.md §6.
type Context interface {
	CurrentTime() float64
	SampleRate() int
	Destination() Node

	CreateGain() Gain
	CreatePan() Pan
	CreateBufferSource() BufferSource
	CreateBiquad() Biquad
	CreateDelay(maxDelaySeconds float64) Delay
	CreateWaveshaper() Waveshaper
	CreateReverb() Reverb
	CreateChannelSplitter() ChannelSplitter
	CreateChannelMerger() ChannelMerger
	CreateAnalyser() Analyser
	CreateGenerator(fn GenerateFunc) Generator

	DecodeAudioData(data []byte) (Buffer, error)

	Resume() error
	Suspend() error
	Close() error
}
