package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/panyard/steelpan"
)

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps([]string{"C4", "C4+E4+G4 .", "A4"})
	if err != nil {
		t.Fatalf("parseSteps failed: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(steps))
	}
	if len(steps[1].notes) != 3 || len(steps[2].notes) != 0 {
		t.Fatalf("wrong chord or rest: %+v", steps)
	}
	if f := steps[3].freqs[0]; f < 439.99 || f > 440.01 {
		t.Fatalf("A4 parsed as %v Hz", f)
	}
	if _, err := parseSteps([]string{"C4+Q4"}); !errors.Is(err, steelpan.ErrUnknownNote) {
		t.Fatalf("unknown note gave %v, want ErrUnknownNote", err)
	}
}

func TestRenderWav(t *testing.T) {
	steps, err := parseSteps([]string{"C4+E4", ".", "G4"})
	if err != nil {
		t.Fatalf("parseSteps failed: %v", err)
	}
	base := filepath.Join(t.TempDir(), "out")
	if err := render(steps, steelpan.DefaultPatch(), 22050, 100*time.Millisecond, base, true, true, false); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	f, err := os.Open(base + ".wav")
	if err != nil {
		t.Fatalf("no wav written: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav file")
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 {
		t.Fatalf("got %d Hz %d channels", dec.SampleRate, dec.NumChans)
	}
	raw, err := os.ReadFile(base + ".raw")
	if err != nil {
		t.Fatalf("no raw written: %v", err)
	}
	frames := 3*2205 + int(tail(steelpan.DefaultPatch()).Seconds()*22050)
	if len(raw) != frames*8 {
		t.Fatalf("raw file has %d bytes, want %d", len(raw), frames*8)
	}
}
