// Package realtime backs hostaudio.Context with a real output device via
// github.com/ebitengine/oto/v3, pulling PCM from the same simrender node
// graph used for testing. The device-callback/io.Reader shape follows the
// teacher pack's cbegin-mmlfm-go/internal/audio/stream.go pull model: oto
// calls Read whenever it wants more samples, and Read renders exactly that
// many frames from the graph at the context time those samples represent.
package realtime

import (
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/overtone-labs/corestage/hostaudio/simrender"
)

const (
	// SampleRate is the fixed device sample rate; spec.md's model assumes a
	// single host-managed rate shared by transport, scheduler and graph.
	SampleRate = 48000
	channels   = 2
	bytesPerFrame = channels * 4 // float32 stereo
)

// Context is a realtime hostaudio.Context: a simrender.Context driving an
// oto player through a pullSource io.Reader.
type Context struct {
	*simrender.Context

	mu           sync.Mutex
	framesPlayed int64

	otoCtx *oto.Context
	player oto.Player
}

// New opens the default audio device at SampleRate/stereo/float32 and
// returns a realtime Context whose CurrentTime() reflects frames actually
// consumed by the device, not wall-clock time, avoiding drift between the
// scheduler's lookahead horizon and what the speaker has played.
func New() (*Context, error) {
	c := &Context{}
	c.Context = simrender.New(SampleRate, c.currentTime)

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: open audio device: %w", err)
	}
	<-ready

	c.otoCtx = otoCtx
	c.player = otoCtx.NewPlayer(&pullSource{ctx: c})
	c.player.Play()
	return c, nil
}

func (c *Context) currentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.framesPlayed) / float64(SampleRate)
}

// Resume/Suspend/Close override simrender.Context's no-ops to drive the
// real oto player, while CurrentTime/factories/DecodeAudioData fall through
// to the embedded simrender.Context unchanged.
func (c *Context) Resume() error {
	c.player.Play()
	return nil
}

func (c *Context) Suspend() error {
	c.player.Pause()
	return nil
}

func (c *Context) Close() error {
	if err := c.player.Close(); err != nil {
		return fmt.Errorf("realtime: close player: %w", err)
	}
	return nil
}

// pullSource adapts the node graph to io.Reader, the shape oto.NewPlayer
// requires. Each Read call renders frames-worth of audio starting at the
// context time implied by framesPlayed so far.
type pullSource struct {
	ctx *Context
}

func (p *pullSource) Read(buf []byte) (int, error) {
	n := len(buf) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}
	frames := make([][2]float32, n)

	p.ctx.mu.Lock()
	startTime := float64(p.ctx.framesPlayed) / float64(SampleRate)
	p.ctx.mu.Unlock()

	p.ctx.RenderMaster(frames, startTime)

	for i, f := range frames {
		o := i * bytesPerFrame
		putFloat32LE(buf[o:o+4], f[0])
		putFloat32LE(buf[o+4:o+8], f[1])
	}

	p.ctx.mu.Lock()
	p.ctx.framesPlayed += int64(n)
	p.ctx.mu.Unlock()

	return n * bytesPerFrame, nil
}

func putFloat32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
