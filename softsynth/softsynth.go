// Package softsynth adapts midisched.Instrument onto an in-process
// SoundFont synthesizer via github.com/sinshu/go-meltysynth, grounded on
// the teacher pack's zurustar-son-et/pkg/engine/midi_player.go MIDIBridge:
// the same ProcessMidiMessage(channel, command, data1, data2) forwarding
// is used here for noteOn/noteOff, generalized from gomidi-message
// forwarding to direct calls since midisched already decodes pitch/
// velocity, and the synth's Render output is pulled into the node graph
// through a hostaudio.Generator instead of an Ebiten audio.Player stream.
package softsynth

import (
	"fmt"
	"os"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/overtone-labs/corestage/hostaudio"
)

const (
	noteOnCommand  = 0x90
	noteOffCommand = 0x80
)

// LoadSoundFont reads a SoundFont (.sf2) file from disk.
func LoadSoundFont(path string) (*meltysynth.SoundFont, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("softsynth: open soundfont: %w", err)
	}
	defer f.Close()
	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("softsynth: parse soundfont: %w", err)
	}
	return sf, nil
}

// Instrument is a midisched.Instrument backed by an in-process SoundFont
// synthesizer, wired as a hostaudio.Generator node into a track's input.
type Instrument struct {
	mu     sync.Mutex
	synth  *meltysynth.Synthesizer
	node   hostaudio.Generator
	channel int32
}

// New constructs an Instrument on the given MIDI channel (0-15) and
// connects its generator node to dst (normally a graph.Track's Input()).
func New(ctx hostaudio.Context, sf *meltysynth.SoundFont, channel int32, dst hostaudio.Node) (*Instrument, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(ctx.SampleRate()))
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("softsynth: create synthesizer: %w", err)
	}
	inst := &Instrument{synth: synth, channel: channel}
	inst.node = ctx.CreateGenerator(inst.generate)
	inst.node.Connect(dst)
	return inst, nil
}

// generate renders n frames of the synthesizer's current voice state into
// out, satisfying hostaudio.GenerateFunc. startTime/sampleRate are unused:
// meltysynth renders continuously from its internal voice clock, which
// advances exactly one render-call's worth of samples per call regardless
// of the context's absolute time, matching how the teacher's MIDIStream
// pulls fixed-size blocks each Read.
func (i *Instrument) generate(out [][2]float32, startTime float64, sampleRate int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	left := make([]float32, len(out))
	right := make([]float32, len(out))
	i.synth.Render(left, right)
	for idx := range out {
		out[idx][0] = left[idx]
		out[idx][1] = right[idx]
	}
}

// NoteOn implements midisched.Instrument. at is accepted for interface
// conformance; meltysynth has no sample-accurate scheduling hook of its
// own, so the message takes effect on the very next Render call.
func (i *Instrument) NoteOn(pitch, velocity uint8, at float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.synth.ProcessMidiMessage(i.channel, noteOnCommand, int32(pitch), int32(velocity))
	return nil
}

// NoteOff implements midisched.Instrument.
func (i *Instrument) NoteOff(pitch uint8, at float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.synth.ProcessMidiMessage(i.channel, noteOffCommand, int32(pitch), 0)
	return nil
}

// Dispose disconnects the generator node from the graph.
func (i *Instrument) Dispose() {
	i.node.DisconnectAll()
}
