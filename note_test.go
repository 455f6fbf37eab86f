package steelpan_test

import (
	"errors"
	"math"
	"testing"

	"github.com/panyard/steelpan"
)

func TestNoteFrequency(t *testing.T) {
	// reference values of the note layout of the touchscreen pan
	expected := map[string]float32{
		"C1": 32.70, "A1": 55.00, "Bb1": 58.27,
		"C2": 65.41, "F#2": 92.50, "Gb2": 92.50,
		"A3": 220.00, "Eb3": 155.56, "D#3": 155.56,
		"C4": 261.63, "A4": 440.00, "B4": 493.88,
		"C5": 523.25, "G5": 783.99, "db5": 554.37,
	}
	for name, want := range expected {
		got, err := steelpan.NoteFrequency(name)
		if err != nil {
			t.Fatalf("NoteFrequency(%q) failed: %v", name, err)
		}
		if math.Abs(float64(got-want)) > 0.01 {
			t.Errorf("NoteFrequency(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNoteFrequencyUnknown(t *testing.T) {
	for _, name := range []string{"", "H4", "C", "C#", "Cx4", "A9", "C-2"} {
		if _, err := steelpan.NoteFrequency(name); !errors.Is(err, steelpan.ErrUnknownNote) {
			t.Errorf("NoteFrequency(%q) error = %v, want ErrUnknownNote", name, err)
		}
	}
}

func TestNoteNameRoundTrip(t *testing.T) {
	for note := 0; note < 128; note++ {
		name := steelpan.NoteName(note)
		got, err := steelpan.NoteNumber(name)
		if err != nil {
			t.Fatalf("NoteNumber(%q) failed: %v", name, err)
		}
		if got != note {
			t.Fatalf("NoteNumber(NoteName(%d)) = %d (name %q)", note, got, name)
		}
	}
}

func TestMIDIVoiceKey(t *testing.T) {
	seen := map[steelpan.VoiceKey]bool{}
	for ch := uint8(0); ch < 16; ch++ {
		for key := uint8(0); key < 128; key++ {
			k := steelpan.MIDIVoiceKey(ch, key)
			if k < 0 || k == steelpan.MonoVoiceKey {
				t.Fatalf("MIDIVoiceKey(%d, %d) = %d, want non-negative", ch, key, k)
			}
			if seen[k] {
				t.Fatalf("MIDIVoiceKey(%d, %d) = %d clashes with another note", ch, key, k)
			}
			seen[k] = true
		}
	}
}
