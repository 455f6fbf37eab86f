package synth

import (
	"fmt"
	"math"

	"github.com/panyard/steelpan"
	"github.com/viterin/vek/vek32"
)

type (
	// Synth is the voice pool and mixer. It owns a fixed table of voices
	// and mixes them into stereo frames, with master gain and a soft
	// limiter. Synth never allocates after New. It is not safe for
	// concurrent use: commands from other goroutines should go through a
	// Queue that is drained on the goroutine calling Render.
	Synth struct {
		sampleRate float32
		nyquist    float32
		polyphony  int
		gain       float32
		limiter    limiter
		tone       onePole
		partials   []partial
		env        envelopeParams
		voices     [steelpan.MaxVoices]voice
		fades      [maxFades]fadeOut
		fadeFrames int
		evictions  uint64
		mix        []float32
		scratch    []float32
	}
)

var _ steelpan.Synth = (*Synth)(nil)

// DefaultMaxFrames is the chunk size New uses when maxFrames is not
// positive.
const DefaultMaxFrames = 512

const (
	maxFades    = 4
	fadeSeconds = 0.005
)

// New returns a synth rendering the patch at the sample rate. Render
// processes the buffer in chunks of at most maxFrames frames.
func New(patch steelpan.Patch, sampleRate, maxFrames int) (*Synth, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Synth{
		sampleRate: float32(sampleRate),
		nyquist:    float32(sampleRate) / 2,
		polyphony:  patch.Polyphony,
		gain:       float32(patch.Gain),
		limiter:    newLimiter(patch.Drive),
		tone:       newOnePole(patch.Tone),
		partials:   newPartials(patch.Partials, sampleRate),
		env:        newEnvelopeParams(patch.Envelope, patch.SilenceEpsilon, sampleRate),
		fadeFrames: max(int(fadeSeconds*float64(sampleRate)), 1),
		mix:        make([]float32, maxFrames),
		scratch:    make([]float32, maxFrames),
	}, nil
}

// Trigger starts a note, or retriggers the voice already sounding under the
// key. Frequencies that are not positive, not finite or not below nyquist
// are ignored. When all voices are in use, the quietest one is stolen.
func (s *Synth) Trigger(key steelpan.VoiceKey, frequency float32) {
	if !(frequency > 0) || frequency >= s.nyquist || math.IsInf(float64(frequency), 0) {
		return
	}
	if !audible(s.partials, frequency, s.nyquist) {
		return
	}
	v := s.find(key)
	if v == nil {
		v = s.allocate()
		v.key = key
	}
	v.freq = frequency
	v.age = 0
	v.bank.tune(s.partials, frequency, s.sampleRate)
	v.bank.strike()
	v.env.trigger()
}

func (s *Synth) Release(key steelpan.VoiceKey) {
	if v := s.find(key); v != nil {
		v.env.release()
	}
}

func (s *Synth) ReleaseAll() {
	for i := range s.voices[:s.polyphony] {
		s.voices[i].env.release()
	}
}

func (s *Synth) NumVoices() int {
	n := 0
	for i := range s.voices[:s.polyphony] {
		if s.voices[i].live() {
			n++
		}
	}
	return n
}

// Playing reports whether a voice is sounding under the key.
func (s *Synth) Playing(key steelpan.VoiceKey) bool {
	return s.find(key) != nil
}

// Evictions returns the number of voices stolen so far.
func (s *Synth) Evictions() uint64 {
	return s.evictions
}

// Render fills the buffer with the mix of the live voices.
func (s *Synth) Render(buffer steelpan.AudioBuffer) {
	for len(buffer) > 0 {
		n := min(len(buffer), len(s.mix))
		s.renderChunk(buffer[:n])
		buffer = buffer[n:]
	}
}

func (s *Synth) renderChunk(buffer steelpan.AudioBuffer) {
	mix := s.mix[:len(buffer)]
	scratch := s.scratch[:len(buffer)]
	clear(mix)
	for i := range s.voices[:s.polyphony] {
		v := &s.voices[i]
		if !v.live() {
			continue
		}
		v.render(&s.env, scratch)
		if !finite(scratch) {
			v.kill()
			continue
		}
		vek32.Add_Inplace(mix, scratch)
		if !v.live() {
			v.kill()
		}
	}
	for i := range s.fades {
		f := &s.fades[i]
		if !f.active() {
			continue
		}
		f.render(&s.env, s.fadeFrames, scratch)
		if !finite(scratch) {
			f.stop()
			continue
		}
		vek32.Add_Inplace(mix, scratch)
	}
	vek32.MulNumber_Inplace(mix, s.gain)
	for i, x := range mix {
		y := s.tone.apply(s.limiter.apply(x))
		buffer[i] = [2]float32{y, y}
	}
}

// finite reports whether the sum of buf is a number. A single NaN or Inf
// sample spoils the sum.
func finite(buf []float32) bool {
	sum := float64(vek32.Sum(buf))
	return !math.IsNaN(sum) && !math.IsInf(sum, 0)
}

func (s *Synth) find(key steelpan.VoiceKey) *voice {
	for i := range s.voices[:s.polyphony] {
		if v := &s.voices[i]; v.live() && v.key == key {
			return v
		}
	}
	return nil
}

// allocate returns a free slot, or steals the live voice with the least
// amplitude, the oldest one on ties. The stolen voice keeps sounding in a
// fade slot for a few milliseconds, so the steal does not click.
func (s *Synth) allocate() *voice {
	var victim *voice
	for i := range s.voices[:s.polyphony] {
		v := &s.voices[i]
		if !v.live() {
			v.kill()
			return v
		}
		if victim == nil || v.amplitude() < victim.amplitude() ||
			(v.amplitude() == victim.amplitude() && v.age > victim.age) {
			victim = v
		}
	}
	s.evictions++
	s.fade(victim)
	victim.kill()
	return victim
}

// fade moves v into the fade slot closest to silence.
func (s *Synth) fade(v *voice) {
	slot := &s.fades[0]
	for i := range s.fades {
		if s.fades[i].left < slot.left {
			slot = &s.fades[i]
		}
	}
	*slot = fadeOut{voice: *v, left: s.fadeFrames}
}
