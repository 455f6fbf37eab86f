// Package headless provides an audio context without a device. Streams are
// rendered on a goroutine paced by a ticker at the rate a device would pull
// them, and optionally handed to a monitor. It backs the null output and is
// handy in tests.
package headless

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panyard/steelpan"
)

type (
	Context struct {
		opts    steelpan.StreamOptions
		monitor func(steelpan.AudioBuffer)

		mu      sync.Mutex
		closed  bool
		streams map[*Stream]struct{}
	}

	Stream struct {
		ctx       *Context
		render    steelpan.RenderFunc
		buffer    steelpan.AudioBuffer
		callbacks atomic.Uint64
		panics    atomic.Uint64
		stop      chan struct{}
		done      chan struct{}
		once      sync.Once
	}
)

var _ steelpan.AudioContext = (*Context)(nil)

// NewContext returns a context rendering buffers of opts.BufferFrames every
// opts.BufferDuration(). monitor, if not nil, receives every rendered buffer
// on the rendering goroutine and must not keep it.
func NewContext(opts steelpan.StreamOptions, monitor func(steelpan.AudioBuffer)) *Context {
	return &Context{
		opts:    opts.WithDefaults(),
		monitor: monitor,
		streams: map[*Stream]struct{}{},
	}
}

func (c *Context) SampleRate() int {
	return c.opts.SampleRate
}

// Play starts a stream. A headless stream cannot fail, so onFailure is
// never called.
func (c *Context) Play(render steelpan.RenderFunc, onFailure func(error)) (steelpan.AudioStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("headless context is closed")
	}
	s := &Stream{
		ctx:    c,
		render: render,
		buffer: make(steelpan.AudioBuffer, c.opts.BufferFrames),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.streams[s] = struct{}{}
	go s.loop(c.opts.BufferDuration())
	return s, nil
}

func (s *Stream) loop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		s.tick()
	}
}

func (s *Stream) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.buffer.Clear()
		}
	}()
	s.render(s.buffer)
	s.callbacks.Add(1)
	if s.ctx.monitor != nil {
		s.ctx.monitor(s.buffer)
	}
}

// Callbacks returns the number of buffers rendered so far.
func (s *Stream) Callbacks() uint64 {
	return s.callbacks.Load()
}

// Panics returns the number of render calls that panicked.
func (s *Stream) Panics() uint64 {
	return s.panics.Load()
}

// Close stops the stream and waits for the buffer being rendered, if any.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		s.ctx.mu.Lock()
		delete(s.ctx.streams, s)
		s.ctx.mu.Unlock()
	})
	return nil
}

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
	for _, s := range streams {
		s.Close()
	}
	return nil
}
