//go:build cgo

package cmd

import (
	"log/slog"

	"github.com/panyard/steelpan/gomidi"
)

func NewMidiContext(handler *gomidi.Handler, logger *slog.Logger) MIDIContext {
	return gomidi.NewContext(handler, logger)
}
