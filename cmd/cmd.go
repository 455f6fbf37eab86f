// Package cmd has the parts shared by the commands: the audio outputs they
// can open, MIDI input and logging setup.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/engine"
	"github.com/panyard/steelpan/headless"
	"github.com/panyard/steelpan/oto"
)

// MIDIContext is a source of MIDI notes.
type MIDIContext interface {
	// TryToOpenBy opens the first input whose name starts with namePrefix,
	// or the first input if takeFirst is set. It does nothing if neither is
	// given.
	TryToOpenBy(namePrefix string, takeFirst bool) error
	InputNames() []string
	Close()
}

// Outputs are the audio backends, by name. Builds with the portaudio tag
// add "portaudio".
var Outputs = map[string]func(logger *slog.Logger) engine.Opener{
	"oto": func(logger *slog.Logger) engine.Opener {
		return func(opts steelpan.StreamOptions) (steelpan.AudioContext, error) {
			return oto.NewContext(opts, logger)
		}
	},
	"null": func(*slog.Logger) engine.Opener {
		return func(opts steelpan.StreamOptions) (steelpan.AudioContext, error) {
			return headless.NewContext(opts, nil), nil
		}
	},
}

func Opener(name string, logger *slog.Logger) (engine.Opener, error) {
	f, ok := Outputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown output %q, should be one of: %s", name, strings.Join(OutputNames(), ", "))
	}
	return f(logger), nil
}

func OutputNames() []string {
	names := make([]string, 0, len(Outputs))
	for name := range Outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetupLogging makes a text handler on stderr the default logger.
func SetupLogging(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfigFile reads an engine config, or returns the defaults if
// filename is empty.
func LoadConfigFile(filename string) (engine.Config, error) {
	if filename == "" {
		return engine.DefaultConfig(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return engine.Config{}, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()
	cfg, err := engine.LoadConfig(f)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%v: %w", filename, err)
	}
	return cfg, nil
}

// LoadPatchFile reads a patch, or returns the default patch if filename is
// empty.
func LoadPatchFile(filename string) (steelpan.Patch, error) {
	if filename == "" {
		return steelpan.DefaultPatch(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return steelpan.Patch{}, fmt.Errorf("could not open patch: %w", err)
	}
	defer f.Close()
	patch, err := steelpan.ReadPatch(f)
	if err != nil {
		return steelpan.Patch{}, fmt.Errorf("%v: %w", filename, err)
	}
	return patch, nil
}
