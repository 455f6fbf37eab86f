// Package engine is the facade hosts call to play notes: it owns the audio
// device, the synth and the command queue between them, and their lifecycle.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/panyard/steelpan"
	"github.com/panyard/steelpan/synth"
)

type (
	// Engine plays notes on an audio device. All methods are safe for
	// concurrent use. Note methods never block on the audio callback: they
	// hand commands over through a lock-free queue.
	Engine struct {
		cfg       Config
		patch     steelpan.Patch
		open      Opener
		logger    *slog.Logger
		onFailure func(error)

		mu     sync.Mutex // serializes Initialize, Destroy and failures
		gen    uint64     // incremented by each Initialize
		audio  steelpan.AudioContext
		stream steelpan.AudioStream
		err    error

		state    atomic.Int32
		queue    atomic.Pointer[synth.Queue]
		failures chan error

		callbacks atomic.Uint64
		frames    atomic.Uint64
		dropped   atomic.Uint64
		evictions atomic.Uint64
		voices    atomic.Int32
	}

	// Opener acquires the audio device. Errors should wrap
	// steelpan.ErrDeviceUnavailable.
	Opener func(steelpan.StreamOptions) (steelpan.AudioContext, error)

	Option func(*Engine)

	State int32

	Stats struct {
		Voices    int    // live voices after the last callback
		Evictions uint64 // voices stolen to make room for new notes
		Callbacks uint64 // audio callbacks since Initialize
		Frames    uint64 // frames rendered since Initialize
		Dropped   uint64 // commands dropped because the queue was full
	}
)

const (
	Uninitialized State = iota
	Running
	Stopped
)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFailureHandler sets a function called when the stream fails for
// good and the engine has stopped.
func WithFailureHandler(f func(error)) Option {
	return func(e *Engine) { e.onFailure = f }
}

// New returns an uninitialized engine. The device is not opened until
// Initialize.
func New(cfg Config, patch steelpan.Patch, open Opener, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		return nil, errors.New("engine needs an opener")
	}
	e := &Engine{
		cfg:      cfg,
		patch:    patch,
		open:     open,
		logger:   slog.Default(),
		failures: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize opens the device and starts the stream. It does nothing if the
// engine is already running. If the device cannot be acquired, the error
// wraps steelpan.ErrDeviceUnavailable and the state is unchanged.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() == Running {
		return nil
	}
	audio, err := e.open(e.cfg.StreamOptions)
	if err != nil {
		if !errors.Is(err, steelpan.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", steelpan.ErrDeviceUnavailable, err)
		}
		return err
	}
	s, err := synth.New(e.patch, audio.SampleRate(), e.cfg.BufferFrames)
	if err != nil {
		audio.Close()
		return fmt.Errorf("could not create synth: %w", err)
	}
	q := synth.NewQueue(e.cfg.QueueSize)
	e.gen++
	gen := e.gen
	e.callbacks.Store(0)
	e.frames.Store(0)
	e.dropped.Store(0)
	e.evictions.Store(0)
	e.voices.Store(0)
	render := func(buf steelpan.AudioBuffer) {
		q.Drain(s)
		s.Render(buf)
		e.voices.Store(int32(s.NumVoices()))
		e.evictions.Store(s.Evictions())
		e.frames.Add(uint64(len(buf)))
		e.callbacks.Add(1)
	}
	stream, err := audio.Play(render, func(err error) { e.fail(gen, err) })
	if err != nil {
		audio.Close()
		if !errors.Is(err, steelpan.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", steelpan.ErrDeviceUnavailable, err)
		}
		return err
	}
	e.audio = audio
	e.stream = stream
	e.err = nil
	e.queue.Store(q)
	e.state.Store(int32(Running))
	e.logger.Info("audio engine running", "sampleRate", audio.SampleRate(), "bufferFrames", e.cfg.BufferFrames, "polyphony", e.patch.Polyphony)
	return nil
}

// Destroy stops the stream, waiting for the audio callback in flight, and
// releases the device. It does nothing unless the engine is running.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() != Running {
		return nil
	}
	err := e.teardown()
	e.logger.Info("audio engine stopped")
	return err
}

func (e *Engine) teardown() error {
	e.queue.Store(nil)
	e.state.Store(int32(Stopped))
	var errs []error
	if err := e.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("could not close stream: %w", err))
	}
	if err := e.audio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("could not close audio device: %w", err))
	}
	e.stream, e.audio = nil, nil
	return errors.Join(errs...)
}

// fail stops the engine after the stream of generation gen has failed for
// good. Failures of streams torn down earlier are ignored.
func (e *Engine) fail(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen || e.State() != Running {
		e.mu.Unlock()
		return
	}
	if !errors.Is(err, steelpan.ErrStreamFailure) {
		err = fmt.Errorf("%w: %w", steelpan.ErrStreamFailure, err)
	}
	e.err = err
	if terr := e.teardown(); terr != nil {
		e.logger.Warn("error while tearing down failed stream", "err", terr)
	}
	e.mu.Unlock()
	e.logger.Error("audio engine stopped after stream failure", "err", err)
	TrySend(e.failures, err)
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

// PlayNote is the monophonic form of TriggerVoice, using
// steelpan.MonoVoiceKey.
func (e *Engine) PlayNote(frequency float32) error {
	return e.TriggerVoice(steelpan.MonoVoiceKey, frequency)
}

// TriggerVoice starts a note, or retriggers the note already sounding under
// the key. Frequencies that cannot be played are ignored.
func (e *Engine) TriggerVoice(key steelpan.VoiceKey, frequency float32) error {
	q, err := e.runningQueue()
	if err != nil {
		return err
	}
	if !(frequency > 0) || math.IsInf(float64(frequency), 0) {
		return nil
	}
	return e.push(q, synth.Command{Kind: synth.CommandTrigger, Key: key, Frequency: frequency})
}

// PlayNoteName triggers a voice at the frequency of a note label, e.g.
// "C#4". Unknown labels return an error wrapping steelpan.ErrUnknownNote.
func (e *Engine) PlayNoteName(name string, key steelpan.VoiceKey) error {
	f, err := steelpan.NoteFrequency(name)
	if err != nil {
		return err
	}
	return e.TriggerVoice(key, f)
}

// StopVoice starts the release of the note sounding under the key. Stopping
// a key that is not sounding is not an error.
func (e *Engine) StopVoice(key steelpan.VoiceKey) error {
	q, err := e.runningQueue()
	if err != nil {
		return err
	}
	return e.push(q, synth.Command{Kind: synth.CommandRelease, Key: key})
}

// StopAll releases every sounding note.
func (e *Engine) StopAll() error {
	q, err := e.runningQueue()
	if err != nil {
		return err
	}
	return e.push(q, synth.Command{Kind: synth.CommandReleaseAll})
}

func (e *Engine) runningQueue() (*synth.Queue, error) {
	q := e.queue.Load()
	if q == nil {
		return nil, steelpan.ErrNotRunning
	}
	return q, nil
}

func (e *Engine) push(q *synth.Queue, c synth.Command) error {
	if !q.Push(c) {
		e.dropped.Add(1)
		return fmt.Errorf("%w: %v of voice %d dropped", steelpan.ErrQueueFull, c.Kind, c.Key)
	}
	return nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Err returns the error that stopped the engine, if the stream failed.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Failures delivers stream failures that stopped the engine. Failures
// nobody has received yet are coalesced.
func (e *Engine) Failures() <-chan error {
	return e.failures
}

func (e *Engine) Stats() Stats {
	return Stats{
		Voices:    int(e.voices.Load()),
		Evictions: e.evictions.Load(),
		Callbacks: e.callbacks.Load(),
		Frames:    e.frames.Load(),
		Dropped:   e.dropped.Load(),
	}
}

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
