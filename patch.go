package steelpan

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

type (
	// Patch describes the timbre of the instrument: the partials every voice
	// is made of, the amplitude envelope, and how the voices are mixed.
	Patch struct {
		Name string `yaml:",omitempty"`
		// Partials are the sinusoidal components of a voice. Their amplitudes
		// are normalized when the patch is loaded into a synth, so only their
		// relative sizes matter.
		Partials []Partial
		Envelope Envelope
		// Polyphony is the maximum number of voices sounding at the same time.
		// Triggering more steals the quietest voice.
		Polyphony int
		// Gain is the master gain applied to the sum of the voices before the
		// limiter.
		Gain float64
		// Drive scales the signal going into the tanh limiter. The limiter
		// output is tanh(Drive*x)/Drive, so its magnitude never exceeds 1 for
		// any Drive >= 1.
		Drive float64
		// Tone is the coefficient of a one-pole lowpass after the limiter,
		// y[n] = (1-Tone)*x[n] + Tone*y[n-1], which takes the edge off the
		// struck overtones. Zero bypasses the filter.
		Tone float64 `yaml:"tone"`
		// SilenceEpsilon is the relative level at which a decaying or releasing
		// voice is considered silent.
		SilenceEpsilon float64 `yaml:"silenceEpsilon"`
	}

	// Partial is one sinusoid of a voice, at Ratio times the fundamental.
	Partial struct {
		Ratio     float64 `yaml:"ratio"`
		Amplitude float64 `yaml:"amplitude"`
		// Decay is the time in seconds for the partial to fall by 60 dB. Zero
		// means the partial does not decay on its own.
		Decay float64 `yaml:"decay"`
	}

	// Envelope is the amplitude envelope of a voice. All times are in seconds.
	Envelope struct {
		Attack float64 `yaml:"attack"`
		// Decay is the length of the decay stage; the level falls
		// exponentially from 1 to Sustain during it.
		Decay float64 `yaml:"decay"`
		// Sustain is the level held after the decay stage. Zero models a
		// struck idiophone: the voice releases on its own after decaying.
		Sustain float64 `yaml:"sustain"`
		Release float64 `yaml:"release"`
	}
)

const (
	MaxVoices   = 32
	MaxPartials = 8
)

// DefaultPatch returns a steelpan timbre: a fundamental tuned with its octave
// and twelfth the way pan makers tune a note, plus two slightly inharmonic
// overtones of the struck steel that die away quickly.
func DefaultPatch() Patch {
	return Patch{
		Name: "tenor pan",
		Partials: []Partial{
			{Ratio: 1, Amplitude: 1, Decay: 3.2},
			{Ratio: 2, Amplitude: 0.5, Decay: 1.8},
			{Ratio: 3.01, Amplitude: 0.22, Decay: 0.9},
			{Ratio: 4.16, Amplitude: 0.1, Decay: 0.45},
			{Ratio: 5.43, Amplitude: 0.05, Decay: 0.2},
		},
		Envelope: Envelope{
			Attack:  0.004,
			Decay:   2.5,
			Sustain: 0,
			Release: 0.12,
		},
		Polyphony:      10,
		Gain:           0.6,
		Drive:          1,
		Tone:           0.3,
		SilenceEpsilon: 1e-3,
	}
}

// Validate returns an error wrapping ErrInvalidPatch if the patch cannot be
// rendered.
func (p *Patch) Validate() error {
	if len(p.Partials) == 0 {
		return fmt.Errorf("%w: no partials", ErrInvalidPatch)
	}
	if len(p.Partials) > MaxPartials {
		return fmt.Errorf("%w: %d partials, at most %d supported", ErrInvalidPatch, len(p.Partials), MaxPartials)
	}
	total := 0.0
	for i, partial := range p.Partials {
		if !finite(partial.Ratio) || partial.Ratio <= 0 {
			return fmt.Errorf("%w: partial %d has ratio %v", ErrInvalidPatch, i, partial.Ratio)
		}
		if !finite(partial.Amplitude) || partial.Amplitude < 0 {
			return fmt.Errorf("%w: partial %d has amplitude %v", ErrInvalidPatch, i, partial.Amplitude)
		}
		if !finite(partial.Decay) || partial.Decay < 0 {
			return fmt.Errorf("%w: partial %d has decay %v", ErrInvalidPatch, i, partial.Decay)
		}
		total += partial.Amplitude
	}
	if total <= 0 {
		return fmt.Errorf("%w: all partials are silent", ErrInvalidPatch)
	}
	e := p.Envelope
	if !finite(e.Attack) || e.Attack <= 0 {
		return fmt.Errorf("%w: attack %v, should be > 0", ErrInvalidPatch, e.Attack)
	}
	if !finite(e.Decay) || e.Decay <= 0 {
		return fmt.Errorf("%w: decay %v, should be > 0", ErrInvalidPatch, e.Decay)
	}
	if !finite(e.Sustain) || e.Sustain < 0 || e.Sustain > 1 {
		return fmt.Errorf("%w: sustain %v, should be in [0, 1]", ErrInvalidPatch, e.Sustain)
	}
	if !finite(e.Release) || e.Release <= 0 {
		return fmt.Errorf("%w: release %v, should be > 0", ErrInvalidPatch, e.Release)
	}
	if p.Polyphony < 1 || p.Polyphony > MaxVoices {
		return fmt.Errorf("%w: polyphony %d, should be in [1, %d]", ErrInvalidPatch, p.Polyphony, MaxVoices)
	}
	if !finite(p.Gain) || p.Gain <= 0 {
		return fmt.Errorf("%w: gain %v, should be > 0", ErrInvalidPatch, p.Gain)
	}
	if !finite(p.Drive) || p.Drive < 1 {
		return fmt.Errorf("%w: drive %v, should be >= 1", ErrInvalidPatch, p.Drive)
	}
	if !finite(p.Tone) || p.Tone < 0 || p.Tone >= 1 {
		return fmt.Errorf("%w: tone %v, should be in [0, 1)", ErrInvalidPatch, p.Tone)
	}
	if !finite(p.SilenceEpsilon) || p.SilenceEpsilon <= 0 || p.SilenceEpsilon >= 0.1 {
		return fmt.Errorf("%w: silence epsilon %v, should be in (0, 0.1)", ErrInvalidPatch, p.SilenceEpsilon)
	}
	return nil
}

// ReadPatch parses a YAML patch. Fields missing from the document keep their
// values from DefaultPatch.
func ReadPatch(r io.Reader) (Patch, error) {
	patch := DefaultPatch()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&patch); err != nil && err != io.EOF {
		return Patch{}, fmt.Errorf("could not parse patch: %w", err)
	}
	if err := patch.Validate(); err != nil {
		return Patch{}, err
	}
	return patch, nil
}

// Marshal returns the patch as a YAML document.
func (p *Patch) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("could not marshal patch: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("could not marshal patch: %w", err)
	}
	return buf.Bytes(), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
