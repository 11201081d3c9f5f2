package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/overtone-labs/corestage/effect"
	"github.com/overtone-labs/corestage/engine"
	"github.com/overtone-labs/corestage/graph"
	"github.com/overtone-labs/corestage/midisched"
)

// shellHandler processes typed commands against a live AudioEngine, the
// same shape as the teacher's commands.Handler but driving transport,
// tracks, effects and MIDI preview instead of a step-sequencer pattern
// grid.
type shellHandler struct {
	eng     *engine.AudioEngine
	tracks  []string // ids of tracks created here, in creation order; status reports its length
	verbose bool
}

func newShellHandler(eng *engine.AudioEngine) *shellHandler {
	return &shellHandler{eng: eng}
}

func (h *shellHandler) ProcessCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return h.handleStatus()
	}

	parts := strings.Fields(cmdLine)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "play":
		return h.eng.Play()
	case "pause":
		return h.eng.Pause()
	case "stop":
		h.eng.Stop()
		return nil
	case "seek":
		return h.handleSeek(parts)
	case "tempo":
		return h.handleTempo(parts)
	case "loop":
		return h.handleLoop(parts)
	case "metronome":
		return h.handleMetronome(parts)
	case "track":
		return h.handleTrack(parts)
	case "fx":
		return h.handleFx(parts)
	case "midi":
		return h.handleMidi(parts)
	case "status":
		return h.handleStatus()
	case "help":
		return h.handleHelp()
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (h *shellHandler) handleSeek(parts []string) error {
	if len(parts) != 2 {
		return fmt.Errorf("usage: seek <seconds>")
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("invalid seconds: %s", parts[1])
	}
	h.eng.Seek(seconds)
	fmt.Printf("Seeked to %.3fs\n", seconds)
	return nil
}

func (h *shellHandler) handleTempo(parts []string) error {
	if len(parts) != 2 {
		return fmt.Errorf("usage: tempo <bpm>")
	}
	bpm, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("invalid bpm: %s", parts[1])
	}
	if err := h.eng.SetTempo(bpm); err != nil {
		return err
	}
	fmt.Printf("Tempo set to %.1f BPM\n", bpm)
	return nil
}

// handleLoop: loop on|off <startSeconds> <endSeconds>
func (h *shellHandler) handleLoop(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: loop <on|off> [start end]")
	}
	on := strings.ToLower(parts[1]) == "on"
	var start, end float64
	if on {
		if len(parts) != 4 {
			return fmt.Errorf("usage: loop on <start> <end>")
		}
		var err error
		start, err = strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("invalid start: %s", parts[2])
		}
		end, err = strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return fmt.Errorf("invalid end: %s", parts[3])
		}
	}
	h.eng.SetLoop(on, start, end)
	fmt.Printf("Loop %s\n", map[bool]string{true: "enabled", false: "disabled"}[on])
	return nil
}

// handleMetronome: metronome on|off [level]
func (h *shellHandler) handleMetronome(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: metronome <on|off> [level]")
	}
	on := strings.ToLower(parts[1]) == "on"
	h.eng.EnableMetronome(on)
	if len(parts) == 3 {
		level, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("invalid level: %s", parts[2])
		}
		h.eng.SetMetronomeLevel(level)
	}
	fmt.Printf("Metronome %s\n", map[bool]string{true: "enabled", false: "disabled"}[on])
	return nil
}

// handleTrack: track add [audio|midi|instrument] | track mute <id> on|off |
// track solo <id> on|off | track pan <id> <value> | track gain <id> <value>
// | track remove <id>
func (h *shellHandler) handleTrack(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: track <add|mute|solo|pan|gain|remove> ...")
	}
	switch strings.ToLower(parts[1]) {
	case "add":
		typ := graph.TypeAudio
		if len(parts) >= 3 {
			typ = graph.Type(strings.ToLower(parts[2]))
		}
		t := h.eng.CreateTrack(graph.Config{Type: typ, BaseVolume: 1})
		h.tracks = append(h.tracks, t.ID)
		fmt.Printf("Added track %s (%s)\n", t.ID, typ)
		return nil
	case "mute":
		return h.trackBoolUpdate(parts, func(v bool) graph.Update { return graph.Update{Muted: &v} })
	case "solo":
		return h.trackBoolUpdate(parts, func(v bool) graph.Update { return graph.Update{Solo: &v} })
	case "pan":
		return h.trackFloatUpdate(parts, func(v float64) graph.Update { return graph.Update{Pan: &v} })
	case "gain":
		return h.trackFloatUpdate(parts, func(v float64) graph.Update { return graph.Update{BaseVolume: &v} })
	case "remove":
		if len(parts) != 3 {
			return fmt.Errorf("usage: track remove <id>")
		}
		h.eng.RemoveTrack(parts[2])
		fmt.Printf("Removed track %s\n", parts[2])
		return nil
	default:
		return fmt.Errorf("unknown track subcommand: %s", parts[1])
	}
}

func (h *shellHandler) trackBoolUpdate(parts []string, build func(bool) graph.Update) error {
	if len(parts) != 4 {
		return fmt.Errorf("usage: track %s <id> <on|off>", parts[1])
	}
	v := strings.ToLower(parts[3]) == "on"
	h.eng.UpdateTrack(parts[2], build(v))
	fmt.Printf("track %s %s: %v\n", parts[2], parts[1], v)
	return nil
}

func (h *shellHandler) trackFloatUpdate(parts []string, build func(float64) graph.Update) error {
	if len(parts) != 4 {
		return fmt.Errorf("usage: track %s <id> <value>", parts[1])
	}
	v, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return fmt.Errorf("invalid value: %s", parts[3])
	}
	h.eng.UpdateTrack(parts[2], build(v))
	fmt.Printf("track %s %s: %v\n", parts[2], parts[1], v)
	return nil
}

// handleFx: fx add <trackId|master> <type> | fx remove <trackId|master> <fxId>
// | fx bypass <trackId|master> <fxId> <on|off>
func (h *shellHandler) handleFx(parts []string) error {
	if len(parts) < 3 {
		return fmt.Errorf("usage: fx <add|remove|bypass> <trackId|master> ...")
	}
	target := parts[2]
	trackID := target
	if target == "master" {
		trackID = ""
	}
	chain, ok := h.eng.TrackChain(trackID)
	if !ok {
		return fmt.Errorf("unknown track: %s", target)
	}

	switch strings.ToLower(parts[1]) {
	case "add":
		if len(parts) != 4 {
			return fmt.Errorf("usage: fx add <trackId|master> <type>")
		}
		e, err := chain.CreateEffect(effect.Type(parts[3]))
		if err != nil {
			return err
		}
		fmt.Printf("Added effect %s to %s\n", e.ID(), target)
		return nil
	case "remove":
		if len(parts) != 4 {
			return fmt.Errorf("usage: fx remove <trackId|master> <fxId>")
		}
		chain.RemoveEffect(parts[3])
		fmt.Printf("Removed effect %s from %s\n", parts[3], target)
		return nil
	case "bypass":
		if len(parts) != 5 {
			return fmt.Errorf("usage: fx bypass <trackId|master> <fxId> <on|off>")
		}
		on := strings.ToLower(parts[4]) == "on"
		for _, e := range chain.Effects() {
			if e.ID() == parts[3] {
				e.SetEnabled(!on) // "bypass on" means disabled
				fmt.Printf("Effect %s bypass: %v\n", parts[3], on)
				return nil
			}
		}
		return fmt.Errorf("unknown effect: %s", parts[3])
	default:
		return fmt.Errorf("unknown fx subcommand: %s", parts[1])
	}
}

// handleMidi: midi note <trackId> <noteName> [velocity]
func (h *shellHandler) handleMidi(parts []string) error {
	if len(parts) < 2 || strings.ToLower(parts[1]) != "note" {
		return fmt.Errorf("usage: midi note <trackId> <noteName> [velocity]")
	}
	if len(parts) < 4 {
		return fmt.Errorf("usage: midi note <trackId> <noteName> [velocity]")
	}
	pitch, err := noteNameToMIDI(parts[3])
	if err != nil {
		return err
	}
	velocity := uint8(100)
	if len(parts) == 5 {
		v, err := strconv.Atoi(parts[4])
		if err != nil || v < 0 || v > 127 {
			return fmt.Errorf("invalid velocity: %s", parts[4])
		}
		velocity = uint8(v)
	}
	h.eng.PreviewNote(parts[2], pitch, velocity)
	fmt.Printf("Previewed note %s (MIDI %d) on %s\n", parts[3], pitch, parts[2])
	return nil
}

func (h *shellHandler) handleStatus() error {
	snap := h.eng.Snapshot()
	state := "stopped"
	if snap.IsPlaying {
		state = "playing"
	}
	fmt.Printf("%s  pos=%.3fs  tempo=%.1f BPM  tracks=%d\n", state, snap.PositionSeconds, snap.Tempo, len(h.tracks))
	return nil
}

func (h *shellHandler) handleHelp() error {
	fmt.Print(`Available commands:
  play                                 Start/resume playback
  pause                                Pause playback
  stop                                 Stop and reset position
  seek <seconds>                       Jump to a position
  tempo <bpm>                          Change tempo
  loop <on|off> [start end]            Enable/disable the loop region
  metronome <on|off> [level]           Toggle the click track
  track add [audio|midi|instrument]    Create a track
  track mute <id> <on|off>             Mute/unmute a track
  track solo <id> <on|off>             Solo/unsolo a track
  track pan <id> <value>               Set pan (-1..1)
  track gain <id> <value>              Set base volume
  track remove <id>                    Remove a track
  fx add <trackId|master> <type>       Add an effect (reverb/delay/eq/...)
  fx remove <trackId|master> <fxId>    Remove an effect
  fx bypass <trackId|master> <fxId> <on|off>  Bypass/restore an effect
  midi note <trackId> <note> [vel]     Preview a note (e.g. 'midi note track-0 C4 100')
  status                               Show transport status
  help                                 Show this help message
  quit                                 Exit the program
  <enter>                              Show transport status (same as 'status')
`)
	return nil
}

// ReadLoop reads commands from input until "quit" or EOF, mirroring the
// teacher's commands.Handler.ReadLoop.
func (h *shellHandler) ReadLoop(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(strings.ToLower(line)) == "quit" {
			return nil
		}
		if err := h.ProcessCommand(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}
