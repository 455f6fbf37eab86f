package oto

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/panyard/steelpan"
)

type fakePlayer struct {
	mu      sync.Mutex
	err     error
	playing bool
	closed  bool
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePlayer) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type fakeDevice struct {
	mu      sync.Mutex
	players []*fakePlayer
	readers []io.Reader
	// failing makes every new player report an error right away
	failing bool
}

func (d *fakeDevice) newPlayer(r io.Reader) player {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &fakePlayer{}
	if d.failing {
		p.err = errors.New("device lost")
	}
	d.players = append(d.players, p)
	d.readers = append(d.readers, r)
	return p
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.players)
}

func (d *fakeDevice) player(i int) (*fakePlayer, io.Reader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.players[i], d.readers[i]
}

func newTestContext(d *fakeDevice) *Context {
	opts := steelpan.StreamOptions{
		SampleRate:       48000,
		BufferFrames:     64,
		MaxRestarts:      2,
		RestartBackoff:   time.Millisecond,
		WatchdogInterval: time.Millisecond,
		HealthyAfter:     time.Hour,
	}
	return &Context{
		opts:       opts.WithDefaults(),
		sampleRate: opts.SampleRate,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		newPlayer:  d.newPlayer,
		streams:    map[*Stream]struct{}{},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func constant(v float32) steelpan.RenderFunc {
	return func(buf steelpan.AudioBuffer) {
		for i := range buf {
			buf[i] = [2]float32{v, -v}
		}
	}
}

func TestReadEncodesFrames(t *testing.T) {
	d := &fakeDevice{}
	c := newTestContext(d)
	calls := 0
	render := func(buf steelpan.AudioBuffer) {
		calls++
		constant(0.5)(buf)
	}
	s, err := c.Play(render, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer s.Close()
	_, r := d.player(0)
	// not a multiple of the frame size nor of the buffer size
	p := make([]byte, 150*frameSize+3)
	for i := range p {
		p[i] = 0xff
	}
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read returned %d, %v; want %d, nil", n, err, len(p))
	}
	if calls != 3 {
		t.Errorf("render called %d times, want 3", calls)
	}
	for i := 0; i < 150; i++ {
		left := math.Float32frombits(binary.LittleEndian.Uint32(p[i*frameSize:]))
		right := math.Float32frombits(binary.LittleEndian.Uint32(p[i*frameSize+4:]))
		if left != 0.5 || right != -0.5 {
			t.Fatalf("frame %d = (%v, %v), want (0.5, -0.5)", i, left, right)
		}
	}
	for _, b := range p[150*frameSize:] {
		if b != 0 {
			t.Fatalf("trailing partial frame not silent: %v", p[150*frameSize:])
		}
	}
}

func TestReadRecoversPanic(t *testing.T) {
	d := &fakeDevice{}
	c := newTestContext(d)
	st, err := c.Play(func(steelpan.AudioBuffer) { panic("boom") }, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer st.Close()
	_, r := d.player(0)
	p := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read returned %d, %v; want %d, nil", n, err, len(p))
	}
	for _, b := range p {
		if b != 0 {
			t.Fatalf("buffer not silent after a panic: %v", p)
		}
	}
	if got := st.(*Stream).Panics(); got != 1 {
		t.Errorf("got %d panics, want 1", got)
	}
}

func TestCloseWaitsForRender(t *testing.T) {
	d := &fakeDevice{}
	c := newTestContext(d)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	renders := 0
	s, err := c.Play(func(buf steelpan.AudioBuffer) {
		renders++
		once.Do(func() {
			close(entered)
			<-unblock
		})
	}, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	_, r := d.player(0)
	go r.Read(make([]byte, frameSize))
	<-entered
	closed := make(chan error)
	go func() { closed <- s.Close() }()
	select {
	case <-closed:
		t.Fatalf("Close returned while a render was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(unblock)
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not return")
	}
	r.Read(make([]byte, frameSize))
	if renders != 1 {
		t.Errorf("render called %d times, want 1; reads after Close should be silent", renders)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if p, _ := d.player(0); !p.closed {
		t.Errorf("player was not closed")
	}
}

func TestRestartAfterError(t *testing.T) {
	d := &fakeDevice{}
	c := newTestContext(d)
	failed := make(chan error, 1)
	s, err := c.Play(constant(0.25), func(err error) { failed <- err })
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer s.Close()
	first, oldReader := d.player(0)
	first.setErr(errors.New("underrun"))
	waitFor(t, "a new player", func() bool { return d.count() == 2 })
	second, newReader := d.player(1)
	waitFor(t, "the new player to play", func() bool {
		second.mu.Lock()
		defer second.mu.Unlock()
		return second.playing
	})
	if !first.closed {
		t.Errorf("failed player was not closed")
	}
	p := make([]byte, frameSize)
	oldReader.Read(p)
	if v := math.Float32frombits(binary.LittleEndian.Uint32(p)); v != 0 {
		t.Errorf("replaced player still renders: %v", v)
	}
	newReader.Read(p)
	if v := math.Float32frombits(binary.LittleEndian.Uint32(p)); v != 0.25 {
		t.Errorf("new player renders %v, want 0.25", v)
	}
	select {
	case err := <-failed:
		t.Fatalf("stream reported a failure after a successful restart: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFailureAfterRestarts(t *testing.T) {
	d := &fakeDevice{failing: true}
	c := newTestContext(d)
	failed := make(chan error, 1)
	s, err := c.Play(constant(0.25), func(err error) { failed <- err })
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	select {
	case err := <-failed:
		if !errors.Is(err, steelpan.ErrStreamFailure) {
			t.Fatalf("got %v, want an error wrapping ErrStreamFailure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not report the failure")
	}
	if n := d.count(); n != 1+c.opts.MaxRestarts {
		t.Errorf("got %d players, want %d", n, 1+c.opts.MaxRestarts)
	}
	last, r := d.player(d.count() - 1)
	if !last.closed {
		t.Errorf("last player was not closed")
	}
	p := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	r.Read(p)
	for _, b := range p {
		if b != 0 {
			t.Fatalf("failed stream still renders: %v", p)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close after failure returned %v", err)
	}
}

func TestContextCloseStopsStreams(t *testing.T) {
	d := &fakeDevice{}
	c := newTestContext(d)
	for i := 0; i < 2; i++ {
		if _, err := c.Play(constant(0), nil); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if p, _ := d.player(i); !p.closed {
			t.Errorf("player %d not closed", i)
		}
	}
	if _, err := c.Play(constant(0), nil); err == nil {
		t.Errorf("Play on a closed context succeeded")
	}
	if len(c.streams) != 0 {
		t.Errorf("context still tracks %d streams", len(c.streams))
	}
}

func TestDeviceSuspendedByLastContext(t *testing.T) {
	globalMu.Lock()
	saved := globalUsers
	globalUsers = 2
	globalMu.Unlock()
	defer func() {
		globalMu.Lock()
		globalUsers = saved
		globalMu.Unlock()
	}()
	suspended := 0
	suspend := func() error {
		suspended++
		return nil
	}
	a, b := newTestContext(&fakeDevice{}), newTestContext(&fakeDevice{})
	a.suspend, b.suspend = suspend, suspend
	if _, err := b.Play(constant(0.5), nil); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if suspended != 0 {
		t.Fatalf("closing one of two contexts suspended the device")
	}
	// closing twice must not drop another user
	if err := a.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if suspended != 0 {
		t.Fatalf("a second Close suspended the device")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if suspended != 1 {
		t.Fatalf("device suspended %d times after the last Close, want 1", suspended)
	}
}
