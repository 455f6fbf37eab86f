package synth

import (
	"math"
	"testing"

	"github.com/panyard/steelpan"
)

func TestSinCycles(t *testing.T) {
	for i := 0; i < 10000; i++ {
		phase := float32(i) / 10000
		want := math.Sin(2 * math.Pi * float64(phase))
		if got := float64(sinCycles(phase)); math.Abs(got-want) > 1e-5 {
			t.Fatalf("sinCycles(%v) = %v, want %v", phase, got, want)
		}
	}
}

func TestFastTanh(t *testing.T) {
	for x := float32(-6); x <= 6; x += 0.01 {
		want := math.Tanh(float64(x))
		if got := float64(fastTanh(x)); math.Abs(got-want) > 1e-3 {
			t.Fatalf("fastTanh(%v) = %v, want %v", x, got, want)
		}
	}
	if v := fastTanh(float32(math.NaN())); v != 0 {
		t.Errorf("fastTanh(NaN) = %v, want 0", v)
	}
}

func TestEnvelopeStages(t *testing.T) {
	p := newEnvelopeParams(steelpan.Envelope{Attack: 0.001, Decay: 0.01, Sustain: 0.25, Release: 0.002}, 1e-3, 48000)
	if p.attack != 48 || p.decay != 480 || p.release != 96 {
		t.Fatalf("unexpected stage lengths: %+v", p)
	}
	var e envelope
	e.trigger()
	prev := float32(-1)
	for i := 0; i < p.attack; i++ {
		l := e.next(&p)
		if l <= prev {
			t.Fatalf("attack not rising at frame %d: %v after %v", i, l, prev)
		}
		prev = l
	}
	if e.stage != stageDecay {
		t.Fatalf("got stage %v after the attack, want decay", e.stage)
	}
	for i := 0; i < p.decay; i++ {
		e.next(&p)
	}
	if e.stage != stageSustain {
		t.Fatalf("got stage %v after the decay, want sustain", e.stage)
	}
	if l := e.next(&p); l != 0.25 {
		t.Fatalf("sustain level %v, want 0.25", l)
	}
	e.release()
	frames := 0
	for e.stage != stageIdle {
		e.next(&p)
		frames++
	}
	if frames != p.release {
		t.Fatalf("release took %d frames, want %d", frames, p.release)
	}
	if e.level > 0.25*2e-3 {
		t.Fatalf("level %v at the end of the release is not near silence", e.level)
	}
}

func TestRetriggerStartsFromCurrentLevel(t *testing.T) {
	p := newEnvelopeParams(steelpan.Envelope{Attack: 0.001, Decay: 0.5, Release: 0.1}, 1e-3, 48000)
	var e envelope
	e.trigger()
	for i := 0; i < 1000; i++ {
		e.next(&p)
	}
	level := e.level
	e.trigger()
	if l := e.next(&p); l != level {
		t.Fatalf("retriggered attack started at %v, want %v", l, level)
	}
}
