package report_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/report"
)

func TestDescribe(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	text, err := r.Describe(steelpan.DefaultPatch(), 48000)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	for _, want := range []string{"Tenor Pan\n=========\n", "10 voices", "attack 4 ms", "tone 0.3", "Highest note with every partial below Nyquist"} {
		if !strings.Contains(text, want) {
			t.Errorf("description does not contain %q:\n%s", want, text)
		}
	}
}

func TestHeader(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	header, err := r.Header(steelpan.DefaultPatch(), 44100)
	if err != nil {
		t.Fatalf("Header failed: %v", err)
	}
	for _, want := range []string{
		"#ifndef STEELPAN_TENOR_PAN_H",
		"#define TENOR_PAN_SAMPLE_RATE 44100",
		"#define TENOR_PAN_NUM_PARTIALS 5",
		"#define TENOR_PAN_TONE 0.3f",
		"static const float tenor_pan_ratios[5] = {1f, 2f, 3.01f, 4.16f, 5.43f};",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header does not contain %q:\n%s", want, header)
		}
	}
}

func TestInvalidPatch(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	p := steelpan.DefaultPatch()
	p.Partials = nil
	if _, err := r.Header(p, 48000); !errors.Is(err, steelpan.ErrInvalidPatch) {
		t.Fatalf("got %v, want ErrInvalidPatch", err)
	}
}

func TestPatchData(t *testing.T) {
	p := steelpan.DefaultPatch()
	p.Name = "2nd  Pan!"
	d := report.NewPatchData(p, 48000)
	if d.Ident != "patch_2nd_pan" {
		t.Errorf("got ident %q", d.Ident)
	}
	sum := 0.0
	for _, pd := range d.Partials {
		sum += pd.Level
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("levels sum to %v, want 1", sum)
	}
	if c := d.Partials[2].Cents; c < 5 || c > 6.5 {
		t.Errorf("ratio 3.01 is %v cents from the third harmonic, want about 5.8", c)
	}
	// 5.43 * 4186 Hz (C8) is below 24000 Hz, 5.43 * 4434.9 Hz (C#8) is not
	if d.TopNoteName != "C8" {
		t.Errorf("got top note %v (%v Hz)", d.TopNoteName, d.TopFrequency)
	}
}
