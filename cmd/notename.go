package main

import "fmt"

// noteNameToMIDI parses a note name like "C4", "D#5", "Bb3" into a MIDI
// pitch number, adapted from the teacher's sequence.NoteNameToMIDI (the
// step sequencer's note-entry syntax carries over unchanged to this
// shell's `midi note` command).
func noteNameToMIDI(name string) (uint8, error) {
	noteMap := map[string]int{
		"C": 0, "C#": 1, "Db": 1,
		"D": 2, "D#": 3, "Eb": 3,
		"E": 4,
		"F": 5, "F#": 6, "Gb": 6,
		"G": 7, "G#": 8, "Ab": 8,
		"A": 9, "A#": 10, "Bb": 10,
		"B": 11,
	}

	if len(name) < 2 {
		return 0, fmt.Errorf("invalid note name: %s", name)
	}

	var notePart string
	var octave int

	if len(name) == 2 {
		notePart = name[0:1]
		if _, err := fmt.Sscanf(name[1:2], "%d", &octave); err != nil {
			return 0, fmt.Errorf("invalid note name: %s", name)
		}
	} else if len(name) == 3 {
		notePart = name[0:2]
		if _, err := fmt.Sscanf(name[2:3], "%d", &octave); err != nil {
			notePart = name[0:1]
			if _, err2 := fmt.Sscanf(name[1:3], "%d", &octave); err2 != nil {
				return 0, fmt.Errorf("invalid note name: %s", name)
			}
		}
	} else {
		return 0, fmt.Errorf("invalid note name: %s", name)
	}

	semitone, ok := noteMap[notePart]
	if !ok {
		return 0, fmt.Errorf("invalid note letter: %s", notePart)
	}

	midi := (octave+1)*12 + semitone
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("note %s is out of MIDI range", name)
	}
	return uint8(midi), nil
}
