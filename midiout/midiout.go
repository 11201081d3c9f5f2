// Package midiout adapts midisched.Instrument onto a real hardware MIDI
// output port via gitlab.com/gomidi/midi/v2, adapted from the teacher's
// own midi/midi.go: port listing/open/close and NoteOn/NoteOff forwarding
// are unchanged in shape, generalized from a fixed "default channel"
// helper to one Output per track channel, and widened to satisfy
// midisched.Instrument's `(pitch, velocity uint8, at float64) error`
// signature (the `at` context time is accepted for interface conformance;
// real hardware has no sample-accurate scheduling hook, so the message is
// sent the moment midisched.Scheduler.Step calls it).
package midiout

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // auto-register the RtMIDI driver
)

// ListPorts returns the names of available MIDI output ports.
func ListPorts() ([]string, error) {
	ports := midi.GetOutPorts()
	names := make([]string, len(ports))
	for i, port := range ports {
		names[i] = port.String()
	}
	return names, nil
}

// Output is a midisched.Instrument backed by one hardware MIDI output port
// and channel.
type Output struct {
	port    drivers.Out
	send    func(msg midi.Message) error
	channel uint8
}

// Open opens portIndex on the given MIDI channel (0-15).
func Open(portIndex int, channel uint8) (*Output, error) {
	port, err := midi.OutPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("midiout: open port %d: %w", portIndex, err)
	}
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("midiout: attach sender: %w", err)
	}
	return &Output{port: port, send: send, channel: channel}, nil
}

// Close closes the underlying MIDI port.
func (o *Output) Close() error { return o.port.Close() }

// NoteOn sends a Note On message; at is accepted for Instrument
// conformance but not used for scheduling (see package doc).
func (o *Output) NoteOn(pitch, velocity uint8, at float64) error {
	return o.send(midi.NoteOn(o.channel, pitch, velocity))
}

// NoteOff sends a Note Off message.
func (o *Output) NoteOff(pitch uint8, at float64) error {
	return o.send(midi.NoteOff(o.channel, pitch))
}
