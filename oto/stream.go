package oto

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panyard/steelpan"
)

type (
	// Stream feeds an oto player from a RenderFunc. The player pulls audio
	// by calling Read on its own goroutine; that is the real-time callback.
	// A watchdog goroutine restarts the player when it reports an error.
	Stream struct {
		ctx       *Context
		render    steelpan.RenderFunc
		onFailure func(error)
		buffer    steelpan.AudioBuffer
		logger    *slog.Logger

		gen      atomic.Uint64 // generation of the current player
		closed   atomic.Bool
		inflight atomic.Int32
		panics   atomic.Uint64

		mu        sync.Mutex // guards player
		player    player
		done      chan struct{}
		closeOnce sync.Once
		wg        sync.WaitGroup
	}

	// reader is what a single player reads from. Readers of replaced players
	// only produce silence.
	reader struct {
		s   *Stream
		gen uint64
	}
)

func newStream(c *Context, render steelpan.RenderFunc, onFailure func(error)) *Stream {
	return &Stream{
		ctx:       c,
		render:    render,
		onFailure: onFailure,
		buffer:    make(steelpan.AudioBuffer, c.opts.BufferFrames),
		logger:    c.logger,
		done:      make(chan struct{}),
	}
}

func (s *Stream) start() {
	s.mu.Lock()
	s.player = s.ctx.newPlayer(&reader{s: s, gen: s.gen.Load()})
	s.player.Play()
	s.mu.Unlock()
	s.wg.Add(1)
	go s.watch()
}

func (r *reader) Read(p []byte) (int, error) {
	return r.s.read(p, r.gen)
}

// read renders into the preallocated buffer in chunks, whatever size the
// player asks for. It never allocates and never fails: a panic in the
// render function produces silence.
func (s *Stream) read(p []byte, gen uint64) (n int, err error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	if s.closed.Load() || s.gen.Load() != gen {
		clear(p)
		return len(p), nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			clear(p)
			n, err = len(p), nil
		}
	}()
	off := 0
	for len(p)-off >= frameSize {
		frames := min((len(p)-off)/frameSize, len(s.buffer))
		buf := s.buffer[:frames]
		s.render(buf)
		encodeFloat32LE(p[off:], buf)
		off += frames * frameSize
	}
	clear(p[off:])
	return len(p), nil
}

// Panics returns the number of render calls that panicked.
func (s *Stream) Panics() uint64 {
	return s.panics.Load()
}

func (s *Stream) watch() {
	defer s.wg.Done()
	opts := s.ctx.opts
	ticker := time.NewTicker(opts.WatchdogInterval)
	defer ticker.Stop()
	restarts := 0
	var restartedAt time.Time
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		err := s.player.Err()
		s.mu.Unlock()
		if err == nil {
			if restarts > 0 && time.Since(restartedAt) >= opts.HealthyAfter {
				s.logger.Info("audio stream healthy again", "restarts", restarts)
				restarts = 0
			}
			continue
		}
		if restarts >= opts.MaxRestarts {
			s.fail(fmt.Errorf("%w: giving up after %d restarts: %w", steelpan.ErrStreamFailure, restarts, err))
			return
		}
		restarts++
		s.logger.Warn("audio stream error, restarting", "err", err, "attempt", restarts)
		select {
		case <-s.done:
			return
		case <-time.After(opts.RestartBackoff * time.Duration(restarts)):
		}
		s.restart()
		restartedAt = time.Now()
	}
}

// restart replaces the player. Reads still in flight on the old player
// finish before the new one starts, so render is never called concurrently.
func (s *Stream) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}
	gen := s.gen.Add(1)
	if err := s.player.Close(); err != nil {
		s.logger.Debug("cannot close failed oto player", "err", err)
	}
	s.waitInflight()
	s.player = s.ctx.newPlayer(&reader{s: s, gen: gen})
	s.player.Play()
}

func (s *Stream) fail(err error) {
	s.logger.Error("audio stream failed", "err", err)
	s.shutdown()
	if s.onFailure != nil {
		go s.onFailure(err)
	}
}

// Close stops the stream. It returns after the watchdog has exited and no
// call to the render function is in flight.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.shutdown()
}

func (s *Stream) shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	s.waitInflight()
	err := s.player.Close()
	s.ctx.forget(s)
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func (s *Stream) waitInflight() {
	for s.inflight.Load() > 0 {
		time.Sleep(100 * time.Microsecond)
	}
}
