package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/panyard/steelpan"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of an engine, usually read from a YAML file.
// Durations are written as strings, e.g. "100ms".
type Config struct {
	steelpan.StreamOptions `yaml:",inline"`
	// QueueSize is the number of note commands that can be waiting for the
	// next audio callback. It is rounded up to a power of two.
	QueueSize int `yaml:"queueSize"`
	// Output names the audio backend the commands open, e.g. "oto" or
	// "null".
	Output string `yaml:"output"`
}

var ErrInvalidConfig = errors.New("invalid engine config")

func DefaultConfig() Config {
	return Config{
		StreamOptions: steelpan.DefaultStreamOptions(),
		QueueSize:     256,
		Output:        "oto",
	}
}

// LoadConfig reads a YAML config. Missing fields keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d, should be in [8000, 192000]", ErrInvalidConfig, c.SampleRate)
	}
	if c.BufferFrames < 16 || c.BufferFrames > 8192 {
		return fmt.Errorf("%w: buffer of %d frames, should be in [16, 8192]", ErrInvalidConfig, c.BufferFrames)
	}
	if c.QueueSize < 1 || c.QueueSize > 1<<16 {
		return fmt.Errorf("%w: queue size %d, should be in [1, 65536]", ErrInvalidConfig, c.QueueSize)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("%w: negative restart count %d", ErrInvalidConfig, c.MaxRestarts)
	}
	if c.RestartBackoff <= 0 || c.WatchdogInterval <= 0 || c.HealthyAfter <= 0 {
		return fmt.Errorf("%w: restart backoff, watchdog interval and healthy time should be positive", ErrInvalidConfig)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: no output", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("could not marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("could not marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
