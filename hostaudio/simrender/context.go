package simrender

import (
	"fmt"
	"math"

	"github.com/overtone-labs/corestage/hostaudio"
)

// Context is a software-only hostaudio.Context: CurrentTime is driven by an
// injected clock rather than a device callback, and RenderMaster pulls PCM
// straight from the Destination node. hostaudio/realtime wraps the same
// node graph with a real oto/v3 device loop on top.
type Context struct {
	clock       func() float64
	sampleRate  int
	destination *destinationNode
	suspended   bool
	closed      bool
}

// New constructs a software Context. clock supplies CurrentTime(); in
// production it is the oto device's played-frame count, in tests a fake
// clock under the caller's control.
func New(sampleRate int, clock func() float64) *Context {
	return &Context{
		clock:       clock,
		sampleRate:  sampleRate,
		destination: newDestination(),
	}
}

func (c *Context) CurrentTime() float64  { return c.clock() }
func (c *Context) SampleRate() int       { return c.sampleRate }
func (c *Context) Destination() hostaudio.Node { return c.destination }

func (c *Context) CreateGain() hostaudio.Gain                     { return newGain() }
func (c *Context) CreatePan() hostaudio.Pan                       { return newPan() }
func (c *Context) CreateBufferSource() hostaudio.BufferSource     { return newBufferSource() }
func (c *Context) CreateBiquad() hostaudio.Biquad                 { return newBiquad() }
func (c *Context) CreateDelay(maxDelaySeconds float64) hostaudio.Delay {
	return newDelay(maxDelaySeconds, float64(c.sampleRate))
}
func (c *Context) CreateWaveshaper() hostaudio.Waveshaper         { return newWaveshaper() }
func (c *Context) CreateReverb() hostaudio.Reverb                 { return newReverb(float64(c.sampleRate)) }
func (c *Context) CreateChannelSplitter() hostaudio.ChannelSplitter { return newChannelSplitter() }
func (c *Context) CreateChannelMerger() hostaudio.ChannelMerger   { return newChannelMerger() }
func (c *Context) CreateAnalyser() hostaudio.Analyser             { return newAnalyser() }
func (c *Context) CreateGenerator(fn hostaudio.GenerateFunc) hostaudio.Generator {
	return newGenerator(fn)
}

// DecodeAudioData interprets data as 32-bit-float little-endian stereo PCM
// at the context's sample rate, a format simple enough to need no external
// codec; real sample content (e.g. SoundFont-rendered notes) is produced
// directly as a MemoryBuffer rather than round-tripped through bytes.
func (c *Context) DecodeAudioData(data []byte) (hostaudio.Buffer, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("simrender: decode: length %d is not a multiple of 8 (stereo float32 frames)", len(data))
	}
	frames := make([]frame, len(data)/8)
	for i := range frames {
		o := i * 8
		frames[i][0] = decodeFloat32(data[o : o+4])
		frames[i][1] = decodeFloat32(data[o+4 : o+8])
	}
	return &MemoryBuffer{frames: frames, sampleRate: c.sampleRate}, nil
}

func decodeFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func (c *Context) Resume() error {
	c.suspended = false
	return nil
}

func (c *Context) Suspend() error {
	c.suspended = true
	return nil
}

func (c *Context) Close() error {
	c.closed = true
	return nil
}

// RenderMaster pulls `len(out)` stereo frames starting at context time
// startTime from the destination node. It is not part of hostaudio.Context;
// only the concrete render backends (this package, hostaudio/realtime) and
// their device loops call it — the engine façade never touches raw samples
// except to synthesize the metronome click buffer.
func (c *Context) RenderMaster(out [][2]float32, startTime float64) {
	c.destination.render(out, renderCtx{startTime: startTime, sampleRate: c.sampleRate})
}

// MemoryBuffer is an in-memory hostaudio.Buffer backed by a slice of
// stereo frames, with nearest-neighbor sampling for fractional positions.
type MemoryBuffer struct {
	frames     []frame
	sampleRate int
	channels   int
}

// NewMonoBuffer builds a MemoryBuffer from mono samples, duplicated to
// both channels on read, matching hostaudio.Buffer's mono convention.
func NewMonoBuffer(samples []float32, sampleRate int) *MemoryBuffer {
	frames := make([]frame, len(samples))
	for i, s := range samples {
		frames[i] = frame{s, s}
	}
	return &MemoryBuffer{frames: frames, sampleRate: sampleRate, channels: 1}
}

// NewStereoBuffer builds a MemoryBuffer from pre-interleaved stereo frames.
func NewStereoBuffer(frames [][2]float32, sampleRate int) *MemoryBuffer {
	return &MemoryBuffer{frames: frames, sampleRate: sampleRate, channels: 2}
}

func (b *MemoryBuffer) Duration() float64 { return float64(len(b.frames)) / float64(b.sampleRate) }
func (b *MemoryBuffer) SampleRate() int   { return b.sampleRate }
func (b *MemoryBuffer) Channels() int {
	if b.channels == 0 {
		return 2
	}
	return b.channels
}

func (b *MemoryBuffer) SampleAt(t float64) [2]float32 {
	if len(b.frames) == 0 || t < 0 {
		return frame{}
	}
	idx := int(math.Round(t * float64(b.sampleRate)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.frames) {
		return frame{}
	}
	return b.frames[idx]
}
