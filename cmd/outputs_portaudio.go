//go:build portaudio

package cmd

import (
	"log/slog"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/engine"
	"github.com/panyard/steelpan/portaudio"
)

func init() {
	Outputs["portaudio"] = func(logger *slog.Logger) engine.Opener {
		return func(opts steelpan.StreamOptions) (steelpan.AudioContext, error) {
			return portaudio.NewContext(opts, logger)
		}
	}
}
