package oto

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/panyard/steelpan"
)

type (
	// Context plays streams through the default output device of the
	// system. oto supports only one device context per process, so all
	// Contexts share it; the device is suspended when the last open
	// Context is closed.
	Context struct {
		opts       steelpan.StreamOptions
		sampleRate int
		logger     *slog.Logger
		newPlayer  func(io.Reader) player
		suspend    func() error

		mu      sync.Mutex
		closed  bool
		streams map[*Stream]struct{}
	}

	// player is the part of *oto.Player the streams use.
	player interface {
		Play()
		Close() error
		Err() error
	}
)

var (
	globalMu         sync.Mutex
	globalContext    *oto.Context
	globalSampleRate int
	globalUsers      int // open Contexts sharing globalContext
)

var _ steelpan.AudioContext = (*Context)(nil)

// NewContext opens the output device. Errors wrap
// steelpan.ErrDeviceUnavailable. If the device is already open, its sample
// rate is kept and reported by SampleRate.
func NewContext(opts steelpan.StreamOptions, logger *slog.Logger) (*Context, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, rate, err := acquire(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", steelpan.ErrDeviceUnavailable, err)
	}
	if rate != opts.SampleRate {
		logger.Warn("audio device already open with another sample rate", "requested", opts.SampleRate, "actual", rate)
	}
	bufferBytes := opts.BufferFrames * frameSize
	c := &Context{
		opts:       opts,
		sampleRate: rate,
		logger:     logger,
		newPlayer: func(r io.Reader) player {
			p := ctx.NewPlayer(r)
			p.SetBufferSize(bufferBytes)
			return p
		},
		suspend: ctx.Suspend,
		streams: map[*Stream]struct{}{},
	}
	logger.Debug("oto context ready", "sampleRate", rate, "bufferFrames", opts.BufferFrames)
	return c, nil
}

func acquire(opts steelpan.StreamOptions) (*oto.Context, int, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalContext != nil {
		if err := globalContext.Resume(); err != nil {
			return nil, 0, fmt.Errorf("cannot resume oto context: %w", err)
		}
		globalUsers++
		return globalContext, globalSampleRate, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   opts.BufferDuration(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("oto context failed: %w", err)
	}
	globalContext = ctx
	globalSampleRate = opts.SampleRate
	globalUsers = 1
	return ctx, globalSampleRate, nil
}

// release drops one user of the device and suspends it when none is left.
func release(suspend func() error) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalUsers > 0 {
		globalUsers--
	}
	if globalUsers > 0 {
		return nil
	}
	return suspend()
}

func (c *Context) SampleRate() int {
	return c.sampleRate
}

// Play starts a stream pulling audio from render.
func (c *Context) Play(render steelpan.RenderFunc, onFailure func(error)) (steelpan.AudioStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("oto context is closed")
	}
	s := newStream(c, render, onFailure)
	c.streams[s] = struct{}{}
	s.start()
	return s, nil
}

// Close stops all streams still playing. The device is suspended if no
// other Context is using it.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := make([]*Stream, 0, len(c.streams))
	for s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.Unlock()
	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}
	if c.suspend != nil {
		if err := release(c.suspend); err != nil {
			errs = append(errs, fmt.Errorf("cannot suspend oto context: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Context) forget(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}
