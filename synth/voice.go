package synth

import "github.com/panyard/steelpan"

// voice is one slot of the voice table. A slot is live while its envelope is
// not idle.
type voice struct {
	key  steelpan.VoiceKey
	freq float32
	age  int // samples since the last trigger
	env  envelope
	bank partialBank
}

func (v *voice) live() bool {
	return v.env.stage != stageIdle
}

// amplitude is an upper bound of the magnitude of the next output sample.
// A voice in its attack counts as full scale, so that a freshly struck note
// is never the first to be stolen.
func (v *voice) amplitude() float32 {
	if v.env.stage == stageAttack {
		return 1
	}
	return v.env.level * v.bank.amplitude()
}

// render writes the output of the voice to out. If the voice goes idle
// midway, the rest of out is silence.
func (v *voice) render(p *envelopeParams, out []float32) {
	for j := range out {
		glide := v.env.attackProgress(p)
		out[j] = v.env.next(p) * v.bank.next(glide)
		if v.env.stage == stageIdle {
			clear(out[j+1:])
			break
		}
	}
	v.age += len(out)
}

// kill frees the slot immediately.
func (v *voice) kill() {
	*v = voice{}
}

// fadeOut is a stolen voice ringing out over a few milliseconds instead of
// being cut off mid-cycle.
type fadeOut struct {
	voice
	left int // frames until silence
}

func (f *fadeOut) active() bool {
	return f.left > 0
}

// render writes the voice to out with a linear fade, length frames long in
// total.
func (f *fadeOut) render(p *envelopeParams, length int, out []float32) {
	f.voice.render(p, out)
	for j := range out {
		if f.left <= 0 {
			clear(out[j:])
			break
		}
		out[j] *= float32(f.left) / float32(length)
		f.left--
	}
	if !f.live() {
		f.stop()
	}
}

func (f *fadeOut) stop() {
	*f = fadeOut{}
}
