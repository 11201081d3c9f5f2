package simrender

import (
	"math"
	"testing"
)

func fakeClock() float64 { return 0 }

func TestGainScalesSummedInputs(t *testing.T) {
	ctx := New(48, fakeClock)
	src := ctx.CreateBufferSource()
	buf := NewMonoBuffer([]float32{1, 1, 1, 1}, 48)
	src.SetBuffer(buf)
	src.Start(0, 0, nil)

	gain := ctx.CreateGain()
	gain.SetGain(0.5)
	src.Connect(gain)
	gain.Connect(ctx.Destination())

	out := make([][2]float32, 4)
	ctx.RenderMaster(out, 0)

	for i, f := range out {
		if math.Abs(float64(f[0])-0.5) > 1e-6 || math.Abs(float64(f[1])-0.5) > 1e-6 {
			t.Fatalf("frame %d: got %v, want [0.5 0.5]", i, f)
		}
	}
}

func TestPanFullLeftSilencesRightChannel(t *testing.T) {
	ctx := New(48, fakeClock)
	src := ctx.CreateBufferSource()
	src.SetBuffer(NewMonoBuffer([]float32{1, 1}, 48))
	src.Start(0, 0, nil)

	pan := ctx.CreatePan()
	pan.SetPan(-1)
	src.Connect(pan)
	pan.Connect(ctx.Destination())

	out := make([][2]float32, 2)
	ctx.RenderMaster(out, 0)

	for i, f := range out {
		if f[1] > 1e-6 {
			t.Fatalf("frame %d: right channel %v should be ~silent at full-left pan", i, f[1])
		}
		if f[0] < 0.5 {
			t.Fatalf("frame %d: left channel %v should carry most of the signal", i, f[0])
		}
	}
}

// TestDelayFeedbackDoesNotRecurseForever builds the canonical WebAudio
// feedback topology (delay -> feedback gain -> back into delay's input)
// and renders it one sample per block, the way a real device callback
// would across many small blocks. A naive recursive render would hang or
// stack-overflow the moment the feedback path re-enters the delay node
// within a single call; DelayNode's cache-then-recurse design instead lets
// each block read history written by a *previous* call.
func TestDelayFeedbackDoesNotRecurseForever(t *testing.T) {
	const sampleRate = 48
	ctx := New(sampleRate, fakeClock)

	src := ctx.CreateBufferSource()
	src.SetBuffer(NewMonoBuffer([]float32{1, 0, 0, 0, 0, 0, 0, 0}, sampleRate))
	src.Start(0, 0, nil)

	delay := ctx.CreateDelay(1)
	delay.SetDelayTime(float64(2) / sampleRate)

	feedback := ctx.CreateGain()
	feedback.SetGain(0.5)

	src.Connect(delay)
	delay.Connect(ctx.Destination())
	delay.Connect(feedback)
	feedback.Connect(delay)

	samples := make([]float32, 8)
	for i := 0; i < 8; i++ {
		out := make([][2]float32, 1)
		ctx.RenderMaster(out, float64(i)/sampleRate) // must return; a naive design hangs here
		samples[i] = out[0][0]
	}

	if samples[2] == 0 {
		t.Fatalf("expected the delayed impulse to appear at sample 2, got %v", samples)
	}
	if samples[4] == 0 {
		t.Fatalf("expected the fed-back echo to reappear at sample 4, got %v", samples)
	}
}

func TestChannelSplitterMergerRoundTrip(t *testing.T) {
	ctx := New(48, fakeClock)
	src := ctx.CreateBufferSource()
	src.SetBuffer(NewStereoBuffer([][2]float32{{1, -1}, {1, -1}}, 48))
	src.Start(0, 0, nil)

	splitter := ctx.CreateChannelSplitter()
	src.Connect(splitter)

	merger := ctx.CreateChannelMerger()
	merger.ConnectLeft(splitter.Left())
	merger.ConnectRight(splitter.Right())
	merger.Connect(ctx.Destination())

	out := make([][2]float32, 2)
	ctx.RenderMaster(out, 0)

	for i, f := range out {
		if f[0] != 1 || f[1] != -1 {
			t.Fatalf("frame %d: got %v, want [1 -1]", i, f)
		}
	}
}

func TestAnalyserTracksPeakAndPassesSignalThrough(t *testing.T) {
	ctx := New(48, fakeClock)
	src := ctx.CreateBufferSource()
	src.SetBuffer(NewMonoBuffer([]float32{0.25, -0.75, 0.5}, 48))
	src.Start(0, 0, nil)

	analyser := ctx.CreateAnalyser()
	src.Connect(analyser)
	analyser.Connect(ctx.Destination())

	out := make([][2]float32, 3)
	ctx.RenderMaster(out, 0)

	if out[1][0] != -0.75 {
		t.Fatalf("analyser should pass signal through unchanged, got %v at frame 1", out[1])
	}
	if got := analyser.Peak(); math.Abs(got-0.75) > 1e-6 {
		t.Fatalf("Peak() = %v, want 0.75", got)
	}
}

func TestDisconnectRemovesInputFromDestination(t *testing.T) {
	ctx := New(48, fakeClock)
	src := ctx.CreateBufferSource()
	src.SetBuffer(NewMonoBuffer([]float32{1, 1}, 48))
	src.Start(0, 0, nil)

	src.Connect(ctx.Destination())
	src.Disconnect(ctx.Destination())

	out := make([][2]float32, 2)
	ctx.RenderMaster(out, 0)
	if out[0][0] != 0 || out[1][0] != 0 {
		t.Fatalf("expected silence after disconnect, got %v", out)
	}
}
