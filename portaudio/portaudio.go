//go:build portaudio

// Package portaudio plays streams through PortAudio. It needs cgo and the
// PortAudio library, so it is only built with the portaudio build tag.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/panyard/steelpan"
)

type (
	Context struct {
		opts   steelpan.StreamOptions
		logger *slog.Logger

		mu      sync.Mutex
		closed  bool
		streams map[*Stream]struct{}
	}

	// Stream is a PortAudio callback stream on the default output device.
	// PortAudio calls the callback on its own real-time thread.
	Stream struct {
		ctx      *Context
		render   steelpan.RenderFunc
		stream   *portaudio.Stream
		buffer   steelpan.AudioBuffer
		closed   atomic.Bool
		inflight atomic.Int32
		panics   atomic.Uint64
		once     sync.Once
		err      error
	}
)

var _ steelpan.AudioContext = (*Context)(nil)

// NewContext initializes PortAudio. Errors wrap
// steelpan.ErrDeviceUnavailable.
func NewContext(opts steelpan.StreamOptions, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %w", steelpan.ErrDeviceUnavailable, err)
	}
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: no default output device: %w", steelpan.ErrDeviceUnavailable, err)
	}
	logger.Debug("portaudio ready", "device", dev.Name, "latency", dev.DefaultLowOutputLatency)
	return &Context{
		opts:    opts.WithDefaults(),
		logger:  logger,
		streams: map[*Stream]struct{}{},
	}, nil
}

func (c *Context) SampleRate() int {
	return c.opts.SampleRate
}

// Play opens and starts a stream. PortAudio does not restart streams on
// its own, so onFailure is never called.
func (c *Context) Play(render steelpan.RenderFunc, onFailure func(error)) (steelpan.AudioStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("portaudio context is closed")
	}
	s := &Stream{
		ctx:    c,
		render: render,
		buffer: make(steelpan.AudioBuffer, c.opts.BufferFrames),
	}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(c.opts.SampleRate), c.opts.BufferFrames, s.callback)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open stream: %w", steelpan.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: cannot start stream: %w", steelpan.ErrDeviceUnavailable, err)
	}
	s.stream = stream
	c.streams[s] = struct{}{}
	return s, nil
}

// callback receives interleaved stereo samples. The number of frames may
// differ between calls.
func (s *Stream) callback(out []float32) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	if s.closed.Load() {
		clear(out)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			clear(out)
		}
	}()
	for len(out) >= 2 {
		frames := min(len(out)/2, len(s.buffer))
		buf := s.buffer[:frames]
		s.render(buf)
		for i, f := range buf {
			out[2*i] = f[0]
			out[2*i+1] = f[1]
		}
		out = out[2*frames:]
	}
	clear(out)
}

// Close stops the stream. Pa_StopStream returns after the last callback
// has finished.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		var errs []error
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("cannot stop stream: %w", err))
		}
		for s.inflight.Load() > 0 {
			time.Sleep(100 * time.Microsecond)
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close stream: %w", err))
		}
		s.ctx.mu.Lock()
		delete(s.ctx.streams, s)
		s.ctx.mu.Unlock()
		s.err = errors.Join(errs...)
	})
	return s.err
}

// Close stops the streams still playing and terminates PortAudio.
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
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio terminate: %w", err))
	}
	return errors.Join(errs...)
}
