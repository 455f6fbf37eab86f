package steelpan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var pitchClasses = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// NoteNumber parses a note label such as "C4", "F#3" or "Bb5" into a MIDI
// note number, with C4 = 60. Accidentals may be written '#' or 'b' and may be
// repeated.
func NoteNumber(name string) (int, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownNote)
	}
	pc, ok := pitchClasses[upper(s[0])]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, name)
	}
	i := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '#':
			pc++
			continue
		case 'b':
			pc--
			continue
		}
		break
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q has no octave", ErrUnknownNote, name)
	}
	note := (octave+1)*12 + pc
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrUnknownNote, name)
	}
	return note, nil
}

// NoteFrequency returns the equal tempered frequency of a note label, tuned to
// A4 = 440 Hz.
func NoteFrequency(name string) (float32, error) {
	note, err := NoteNumber(name)
	if err != nil {
		return 0, err
	}
	return MIDINoteFrequency(byte(note)), nil
}

// MIDINoteFrequency returns the frequency of a MIDI note number.
func MIDINoteFrequency(note byte) float32 {
	return float32(440 * math.Pow(2, (float64(note)-69)/12))
}

// MIDIVoiceKey is the voice key used for a note coming from a MIDI input, so
// that the same key on different channels sounds as separate voices.
func MIDIVoiceKey(channel, key uint8) VoiceKey {
	return VoiceKey(int32(channel&0x0f)<<7 | int32(key&0x7f))
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName is the inverse of NoteNumber, always spelling accidentals as
// sharps.
func NoteName(note int) string {
	return noteNames[((note%12)+12)%12] + strconv.Itoa(floorDiv(note, 12)-1)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
