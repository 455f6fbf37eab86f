package synth

import (
	"sync"
	"sync/atomic"

	"github.com/panyard/steelpan"
)

type (
	CommandKind uint8

	// Command is a note event handed from a host goroutine to the render
	// goroutine.
	Command struct {
		Kind      CommandKind
		Key       steelpan.VoiceKey
		Frequency float32
	}

	// Queue is a bounded ring buffer of commands. Any number of goroutines
	// may Push; a single goroutine, usually the one rendering audio, may Pop.
	// The consumer side is lock-free and never blocks: producers only
	// serialize among themselves.
	Queue struct {
		mu   sync.Mutex
		buf  []Command
		mask uint64
		head atomic.Uint64 // next slot to read, written by the consumer
		tail atomic.Uint64 // next slot to write, written by producers
	}
)

const (
	CommandTrigger CommandKind = iota + 1
	CommandRelease
	CommandReleaseAll
)

// NewQueue returns a queue holding at least size commands. The capacity is
// rounded up to a power of two.
func NewQueue(size int) *Queue {
	n := 1
	for n < size {
		n <<= 1
	}
	return &Queue{buf: make([]Command, n), mask: uint64(n - 1)}
}

// Push appends a command, returning false if the queue is full.
func (q *Queue) Push(c Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.tail.Load()
	if t-q.head.Load() >= uint64(len(q.buf)) {
		return false
	}
	q.buf[t&q.mask] = c
	q.tail.Store(t + 1)
	return true
}

// Pop removes the oldest command. Only one goroutine may call Pop.
func (q *Queue) Pop() (Command, bool) {
	h := q.head.Load()
	if h == q.tail.Load() {
		return Command{}, false
	}
	c := q.buf[h&q.mask]
	q.head.Store(h + 1)
	return c, true
}

func (q *Queue) Len() int {
	h := q.head.Load()
	return int(q.tail.Load() - h)
}

func (q *Queue) Cap() int {
	return len(q.buf)
}

// Drain pops every queued command and applies it to the synth. It returns
// the number of commands applied.
func (q *Queue) Drain(s steelpan.Synth) int {
	n := 0
	for {
		c, ok := q.Pop()
		if !ok {
			return n
		}
		switch c.Kind {
		case CommandTrigger:
			s.Trigger(c.Key, c.Frequency)
		case CommandRelease:
			s.Release(c.Key)
		case CommandReleaseAll:
			s.ReleaseAll()
		}
		n++
	}
}

func (k CommandKind) String() string {
	switch k {
	case CommandTrigger:
		return "trigger"
	case CommandRelease:
		return "release"
	case CommandReleaseAll:
		return "release all"
	}
	return "unknown"
}
