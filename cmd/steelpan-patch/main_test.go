package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/report"
)

func TestProcessWritesHeader(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	p := steelpan.DefaultPatch()
	p.Name = "double seconds"
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	filename := filepath.Join(t.TempDir(), "seconds.yml")
	if err := os.WriteFile(filename, data, 0644); err != nil {
		t.Fatalf("could not write patch: %v", err)
	}
	if err := process(r, filename, 48000, false, true); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	h, err := os.ReadFile(strings.TrimSuffix(filename, ".yml") + ".h")
	if err != nil {
		t.Fatalf("header not written: %v", err)
	}
	if !strings.Contains(string(h), "#define DOUBLE_SECONDS_POLYPHONY 10") {
		t.Fatalf("unexpected header:\n%s", h)
	}
}

func TestProcessRejectsInvalidPatch(t *testing.T) {
	r, err := report.New()
	if err != nil {
		t.Fatalf("report.New failed: %v", err)
	}
	filename := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(filename, []byte("gain: -1\n"), 0644); err != nil {
		t.Fatalf("could not write patch: %v", err)
	}
	if err := process(r, filename, 48000, true, false); err == nil {
		t.Fatalf("invalid patch accepted")
	}
}
