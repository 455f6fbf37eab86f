package main

import (
	"fmt"
	"strings"

	"github.com/panyard/steelpan"
)

type step struct {
	notes []string
	freqs []float32
}

const maxChord = 16

func parseSteps(args []string) ([]step, error) {
	var steps []step
	for _, arg := range args {
		for _, field := range strings.Fields(arg) {
			var s step
			if field != "." {
				for _, name := range strings.Split(field, "+") {
					f, err := steelpan.NoteFrequency(name)
					if err != nil {
						return nil, fmt.Errorf("step %d: %w", len(steps)+1, err)
					}
					s.notes = append(s.notes, name)
					s.freqs = append(s.freqs, f)
				}
				if len(s.notes) > maxChord {
					return nil, fmt.Errorf("step %d: %d notes, at most %d can be struck together", len(steps)+1, len(s.notes), maxChord)
				}
			}
			steps = append(steps, s)
		}
	}
	return steps, nil
}
