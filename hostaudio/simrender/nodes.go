package simrender

import (
	"math"

	"github.com/justyntemme/vst3go/pkg/dsp/analysis"
	"github.com/justyntemme/vst3go/pkg/dsp/delay"
	"github.com/justyntemme/vst3go/pkg/dsp/distortion"
	"github.com/justyntemme/vst3go/pkg/dsp/dynamics"
	"github.com/justyntemme/vst3go/pkg/dsp/filter"
	"github.com/justyntemme/vst3go/pkg/dsp/gain"
	"github.com/justyntemme/vst3go/pkg/dsp/pan"
	"github.com/justyntemme/vst3go/pkg/dsp/reverb"

	"github.com/overtone-labs/corestage/hostaudio"
)

// GainNode scales its summed inputs by a linear gain factor, via
// gain.Apply.
type GainNode struct {
	base
	g float64
}

func newGain() *GainNode {
	n := &GainNode{g: 1}
	n.self = n
	return n
}

func (n *GainNode) SetGain(v float64) { n.g = v }
func (n *GainNode) Gain() float64     { return n.g }

func (n *GainNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	g := float32(n.g)
	for i := range out {
		out[i][0] = gain.Apply(in[i][0], g)
		out[i][1] = gain.Apply(in[i][1], g)
	}
}

// PanNode applies a constant-power pan to the mono sum of its inputs, via
// pan.MonoToStereo.
type PanNode struct {
	base
	p float64
}

func newPan() *PanNode {
	n := &PanNode{}
	n.self = n
	return n
}

func (n *PanNode) SetPan(v float64) {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	n.p = v
}
func (n *PanNode) Pan() float64 { return n.p }

func (n *PanNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	l, r := pan.MonoToStereo(float32(n.p), pan.ConstantPower)
	for i := range out {
		mono := (in[i][0] + in[i][1]) / 2
		out[i][0] = mono * l
		out[i][1] = mono * r
	}
}

// BufferSourceNode plays a hostaudio.Buffer starting at a precise context
// time, per hostaudio.BufferSource.
type BufferSourceNode struct {
	base
	buffer       hostaudio.Buffer
	rate         float64
	loop         bool
	loopStart    float64
	loopEnd      float64
	started      bool
	stopped      bool
	startTime    float64
	offset       float64
	duration     *float64
	stopTime     *float64
	ended        bool
	onEnded      func()
}

func newBufferSource() *BufferSourceNode {
	n := &BufferSourceNode{rate: 1}
	n.self = n
	return n
}

func (n *BufferSourceNode) SetBuffer(buf hostaudio.Buffer) { n.buffer = buf }

func (n *BufferSourceNode) SetLoop(enabled bool, loopStart, loopEnd float64) {
	n.loop = enabled
	n.loopStart = loopStart
	n.loopEnd = loopEnd
}

func (n *BufferSourceNode) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	n.rate = rate
}

func (n *BufferSourceNode) Start(when, offset float64, duration *float64) {
	n.started = true
	n.startTime = when
	n.offset = offset
	n.duration = duration
}

func (n *BufferSourceNode) Stop(when float64) {
	t := when
	n.stopTime = &t
}

func (n *BufferSourceNode) OnEnded(fn func()) { n.onEnded = fn }

func (n *BufferSourceNode) render(out []frame, rc renderCtx) {
	if !n.started || n.buffer == nil || n.ended {
		return
	}
	for i := range out {
		t := rc.timeAt(i)
		if t < n.startTime {
			continue
		}
		if n.stopTime != nil && t >= *n.stopTime {
			n.fireEnded()
			return
		}
		pos := (t-n.startTime)*n.rate + n.offset
		if n.loop && n.loopEnd > n.loopStart {
			span := n.loopEnd - n.loopStart
			if pos >= n.loopEnd {
				pos = n.loopStart + math.Mod(pos-n.loopStart, span)
			}
		} else {
			limit := n.buffer.Duration()
			if n.duration != nil && n.offset+*n.duration < limit {
				limit = n.offset + *n.duration
			}
			if pos >= limit {
				n.fireEnded()
				return
			}
		}
		out[i] = n.buffer.SampleAt(pos)
	}
}

func (n *BufferSourceNode) fireEnded() {
	if n.ended {
		return
	}
	n.ended = true
	if n.onEnded != nil {
		n.onEnded()
	}
}

// BiquadNode is a single second-order IIR filter stage, backed by
// filter.Biquad (Direct Form I, RBJ cookbook coefficient design) run as
// two independent single-channel instances so left and right never
// cross-contaminate each other's delay-line state. Coefficients are
// recomputed whenever a parameter changes or the node first sees the
// render sample rate.
type BiquadNode struct {
	base
	typ    hostaudio.BiquadType
	freq   float64
	q      float64
	gainDB float64

	sampleRate int
	l, r       *filter.Biquad
	scratch    []float32
}

func newBiquad() *BiquadNode {
	n := &BiquadNode{freq: 1000, q: 0.707}
	n.self = n
	return n
}

func (n *BiquadNode) SetType(t hostaudio.BiquadType) { n.typ = t; n.design() }
func (n *BiquadNode) SetFrequency(hz float64)        { n.freq = hz; n.design() }
func (n *BiquadNode) SetQ(q float64)                 { n.q = q; n.design() }
func (n *BiquadNode) SetGainDB(db float64)           { n.gainDB = db; n.design() }

// design recomputes both channels' coefficients from the current
// parameters. It is a no-op until the node has seen a sample rate from a
// render call, since the cookbook formulas need it.
func (n *BiquadNode) design() {
	if n.sampleRate == 0 {
		return
	}
	sr := float64(n.sampleRate)
	for _, b := range []*filter.Biquad{n.l, n.r} {
		switch n.typ {
		case hostaudio.BiquadHighpass:
			b.SetHighpass(sr, n.freq, n.q)
		case hostaudio.BiquadBandpass:
			b.SetBandpass(sr, n.freq, n.q)
		case hostaudio.BiquadNotch:
			b.SetNotch(sr, n.freq, n.q)
		case hostaudio.BiquadPeaking:
			b.SetPeakingEQ(sr, n.freq, n.q, n.gainDB)
		default: // BiquadLowpass
			b.SetLowpass(sr, n.freq, n.q)
		}
	}
}

func (n *BiquadNode) render(out []frame, rc renderCtx) {
	if n.l == nil {
		n.l = filter.NewBiquad(1)
		n.r = filter.NewBiquad(1)
		n.sampleRate = rc.sampleRate
		n.design()
	}
	in := n.sumInputs(len(out), rc)
	if cap(n.scratch) < len(out) {
		n.scratch = make([]float32, len(out))
	}
	left := n.scratch[:len(out)]
	right := make([]float32, len(out))
	for i := range in {
		left[i] = in[i][0]
		right[i] = in[i][1]
	}
	n.l.Process(left, 0)
	n.r.Process(right, 0)
	for i := range out {
		out[i][0] = left[i]
		out[i][1] = right[i]
	}
}

// DelayNode is a fixed-topology delay line, backed by two delay.Line
// ring buffers (one per channel); feedback is composed externally by
// connecting its output through a Gain node back into its own input,
// matching the real AudioContext primitive. That composition creates a
// cycle in the node graph, so DelayNode cannot resolve its output by
// recursively pulling its own inputs the way every other node does:
// instead it reads `delayTime` seconds of history *before* pulling its
// inputs, and caches the block as this call's result — so a feedback
// path looping back into this same node within the same block sees the
// cached result instead of recursing forever.
type DelayNode struct {
	base
	delayTime       float64
	maxDelaySeconds float64
	l, r            *delay.Line
	cachedStart     *float64
	cached          []frame
}

func newDelay(maxDelaySeconds, sampleRate float64) *DelayNode {
	if maxDelaySeconds <= 0 {
		maxDelaySeconds = 2
	}
	n := &DelayNode{
		maxDelaySeconds: maxDelaySeconds,
		l:               delay.New(maxDelaySeconds, sampleRate),
		r:               delay.New(maxDelaySeconds, sampleRate),
	}
	n.self = n
	return n
}

func (n *DelayNode) SetDelayTime(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > n.maxDelaySeconds {
		seconds = n.maxDelaySeconds
	}
	n.delayTime = seconds
}

func (n *DelayNode) render(out []frame, rc renderCtx) {
	if n.cachedStart != nil && *n.cachedStart == rc.startTime && len(n.cached) == len(out) {
		copy(out, n.cached)
		return
	}

	delaySamples := n.delayTime * float64(rc.sampleRate)
	if delaySamples < 1 {
		delaySamples = 1
	}

	// Phase 1: read history written by past blocks, no recursion.
	for i := range out {
		d := delaySamples - float64(i)
		if d < 0 {
			d = 0
		}
		out[i][0] = n.l.Read(d)
		out[i][1] = n.r.Read(d)
	}
	start := rc.startTime
	n.cachedStart = &start
	n.cached = append([]frame(nil), out...)

	// Phase 2: pull current input (may re-enter this node via a feedback
	// gain; the cache above makes that re-entry a no-op lookup) and write
	// it into history for future reads.
	in := n.sumInputs(len(out), rc)
	for i := range in {
		n.l.Write(in[i][0])
		n.r.Write(in[i][1])
	}
}

// WaveshaperNode applies a nonlinear transfer curve to the summed input,
// backed by two distortion.Waveshaper instances (one per channel) so the
// stereo image is preserved rather than collapsed to mono. Used for the
// distortion effect.
type WaveshaperNode struct {
	base
	curveType hostaudio.WaveshaperCurve
	drive     float64
	mix       float64
	l, r      *distortion.Waveshaper
}

func newWaveshaper() *WaveshaperNode {
	n := &WaveshaperNode{
		drive: 1,
		mix:   1,
		l:     distortion.NewWaveshaper(distortion.CurveSoftClip),
		r:     distortion.NewWaveshaper(distortion.CurveSoftClip),
	}
	n.self = n
	return n
}

func toDistortionCurve(c hostaudio.WaveshaperCurve) distortion.CurveType {
	switch c {
	case hostaudio.CurveHardClip:
		return distortion.CurveHardClip
	case hostaudio.CurveSaturate:
		return distortion.CurveSaturate
	case hostaudio.CurveFoldback:
		return distortion.CurveFoldback
	case hostaudio.CurveAsymmetric:
		return distortion.CurveAsymmetric
	case hostaudio.CurveSine:
		return distortion.CurveSine
	case hostaudio.CurveExponential:
		return distortion.CurveExponential
	default:
		return distortion.CurveSoftClip
	}
}

func (n *WaveshaperNode) SetCurveType(c hostaudio.WaveshaperCurve) {
	n.curveType = c
	n.l.SetCurveType(toDistortionCurve(c))
	n.r.SetCurveType(toDistortionCurve(c))
}

func (n *WaveshaperNode) SetDrive(drive float64) {
	n.drive = drive
	n.l.SetDrive(drive)
	n.r.SetDrive(drive)
}

func (n *WaveshaperNode) SetMix(mix float64) {
	n.mix = mix
	n.l.SetMix(mix)
	n.r.SetMix(mix)
}

func (n *WaveshaperNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	for i := range out {
		out[i][0] = float32(n.l.Process(float64(in[i][0])))
		out[i][1] = float32(n.r.Process(float64(in[i][1])))
	}
}

// ReverbNode applies an algorithmic room simulation to its summed input,
// backed by reverb.Freeverb (8 parallel comb filters plus 4 series
// allpass filters per channel). Used for the reverb effect's tail.
type ReverbNode struct {
	base
	fv *reverb.Freeverb
}

func newReverb(sampleRate float64) *ReverbNode {
	n := &ReverbNode{fv: reverb.NewFreeverb(sampleRate)}
	n.self = n
	return n
}

func (n *ReverbNode) SetRoomSize(v float64) { n.fv.SetRoomSize(v) }
func (n *ReverbNode) SetDamping(v float64)  { n.fv.SetDamping(v) }
func (n *ReverbNode) SetWetLevel(v float64) { n.fv.SetWetLevel(v) }
func (n *ReverbNode) SetDryLevel(v float64) { n.fv.SetDryLevel(v) }
func (n *ReverbNode) SetWidth(v float64)    { n.fv.SetWidth(v) }

func (n *ReverbNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	for i := range out {
		l, r := n.fv.ProcessStereo(in[i][0], in[i][1])
		out[i][0] = l
		out[i][1] = r
	}
}

// ChannelSplitterNode exposes its summed input's left/right channels as
// independent mono taps.
type ChannelSplitterNode struct {
	base
	left  *splitChannel
	right *splitChannel
}

type splitChannel struct {
	base
	parent  *ChannelSplitterNode
	channel int
}

func newChannelSplitter() *ChannelSplitterNode {
	n := &ChannelSplitterNode{}
	n.self = n
	n.left = &splitChannel{parent: n, channel: 0}
	n.left.self = n.left
	n.right = &splitChannel{parent: n, channel: 1}
	n.right.self = n.right
	return n
}

func (n *ChannelSplitterNode) Left() hostaudio.Node  { return n.left }
func (n *ChannelSplitterNode) Right() hostaudio.Node { return n.right }

func (n *ChannelSplitterNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	copy(out, in)
}

func (c *splitChannel) render(out []frame, rc renderCtx) {
	in := c.parent.sumInputs(len(out), rc)
	for i := range out {
		v := in[i][c.channel]
		out[i][0] = v
		out[i][1] = v
	}
}

// ChannelMergerNode combines two independently-connected mono sources into
// one stereo output.
type ChannelMergerNode struct {
	base
	leftIn  renderable
	rightIn renderable
}

func newChannelMerger() *ChannelMergerNode {
	n := &ChannelMergerNode{}
	n.self = n
	return n
}

func (n *ChannelMergerNode) ConnectLeft(src hostaudio.Node) {
	if r, ok := src.(renderableProvider); ok {
		n.leftIn = r.asRenderable()
	}
}

func (n *ChannelMergerNode) ConnectRight(src hostaudio.Node) {
	if r, ok := src.(renderableProvider); ok {
		n.rightIn = r.asRenderable()
	}
}

type renderableProvider interface {
	asRenderable() renderable
}

func (b *base) asRenderable() renderable { return b.self }

func (n *ChannelMergerNode) render(out []frame, rc renderCtx) {
	lBuf := make([]frame, len(out))
	rBuf := make([]frame, len(out))
	if n.leftIn != nil {
		n.leftIn.render(lBuf, rc)
	}
	if n.rightIn != nil {
		n.rightIn.render(rBuf, rc)
	}
	for i := range out {
		out[i][0] = lBuf[i][0]
		out[i][1] = rBuf[i][1]
	}
}

// AnalyserNode passes its input through unchanged while tracking running
// peak and RMS levels, backed by analysis.PeakMeter (decay-and-hold) and
// analysis.RMSMeter (windowed), for non-UI level metering. Both meters
// are lazily constructed on the first
// render call, since they need the sample rate and this node can be
// created before the context's factories know it.
type AnalyserNode struct {
	base
	peak *analysis.PeakMeter
	rms  *analysis.RMSMeter
	buf  []float64
}

func newAnalyser() *AnalyserNode {
	n := &AnalyserNode{}
	n.self = n
	return n
}

func (n *AnalyserNode) Peak() float64 {
	if n.peak == nil {
		return 0
	}
	return n.peak.GetPeak()
}

func (n *AnalyserNode) RMS() float64 {
	if n.rms == nil {
		return 0
	}
	return n.rms.GetRMS()
}

func (n *AnalyserNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	if n.peak == nil {
		n.peak = analysis.NewPeakMeter(float64(rc.sampleRate))
		n.rms = analysis.NewRMSMeter(rc.sampleRate / 10)
	}
	if cap(n.buf) < len(out)*2 {
		n.buf = make([]float64, len(out)*2)
	}
	buf := n.buf[:len(out)*2]
	for i := range out {
		out[i] = in[i]
		buf[2*i] = float64(in[i][0])
		buf[2*i+1] = float64(in[i][1])
	}
	n.peak.Process(buf)
	n.rms.Process(buf)
}

// GeneratorNode wraps a user-supplied hostaudio.GenerateFunc, the
// AudioWorklet-equivalent primitive used by in-process synthesizers (e.g.
// a SoundFont instrument) that don't fit the fixed-buffer BufferSource
// model. It ignores any connected inputs: it is a pure source.
type GeneratorNode struct {
	base
	fn hostaudio.GenerateFunc
}

func newGenerator(fn hostaudio.GenerateFunc) *GeneratorNode {
	n := &GeneratorNode{fn: fn}
	n.self = n
	return n
}

func (n *GeneratorNode) render(out []frame, rc renderCtx) {
	raw := make([][2]float32, len(out))
	n.fn(raw, rc.startTime, rc.sampleRate)
	copy(out, raw)
}

// destinationNode is the context's final sink; rendering the graph pulls
// from here.
type destinationNode struct {
	base
}

func newDestination() *destinationNode {
	n := &destinationNode{}
	n.self = n
	return n
}

func (n *destinationNode) render(out []frame, rc renderCtx) {
	in := n.sumInputs(len(out), rc)
	copy(out, in)
}
