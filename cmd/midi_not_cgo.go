//go:build !cgo

package cmd

import (
	"errors"
	"log/slog"

	"github.com/panyard/steelpan/gomidi"
)

type nullMIDIContext struct{}

func NewMidiContext(handler *gomidi.Handler, logger *slog.Logger) MIDIContext {
	// with no cgo, we cannot use MIDI, so return a null context
	return nullMIDIContext{}
}

func (nullMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	return errors.New("MIDI input needs a build with cgo")
}

func (nullMIDIContext) InputNames() []string { return nil }

func (nullMIDIContext) Close() {}
