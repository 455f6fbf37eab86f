package synth

import (
	"math"

	"github.com/panyard/steelpan"
)

type (
	stage int

	// envelopeParams are the envelope times of a patch converted to samples.
	envelopeParams struct {
		attack      int
		decay       int
		decayCoef   float32
		sustain     float32
		release     int
		releaseCoef float32
	}

	// envelope is the amplitude envelope state of one voice.
	envelope struct {
		stage   stage
		elapsed int     // samples since the start of the stage
		level   float32 // level of the most recent frame
		from    float32 // level at the start of the stage
		gain    float32 // relative gain of the exponential stages
	}
)

const (
	stageIdle stage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// Decay and release are exponential: the relative gain falls from 1 to the
// silence epsilon over the stage length.
func newEnvelopeParams(e steelpan.Envelope, epsilon float64, sampleRate int) envelopeParams {
	samples := func(seconds float64) int {
		return max(int(math.Round(seconds*float64(sampleRate))), 1)
	}
	p := envelopeParams{
		attack:  samples(e.Attack),
		decay:   samples(e.Decay),
		sustain: float32(e.Sustain),
		release: samples(e.Release),
	}
	p.decayCoef = float32(math.Pow(epsilon, 1/float64(p.decay)))
	p.releaseCoef = float32(math.Pow(epsilon, 1/float64(p.release)))
	return p
}

func (s stage) String() string {
	switch s {
	case stageAttack:
		return "attack"
	case stageDecay:
		return "decay"
	case stageSustain:
		return "sustain"
	case stageRelease:
		return "release"
	}
	return "idle"
}

// trigger restarts the attack from the current level.
func (e *envelope) trigger() {
	e.stage = stageAttack
	e.elapsed = 0
	e.from = e.level
}

func (e *envelope) release() {
	if e.stage == stageIdle || e.stage == stageRelease {
		return
	}
	e.stage = stageRelease
	e.elapsed = 0
	e.from = e.level
	e.gain = 1
}

// attackProgress is the position within the attack stage in [0, 1), or -1
// outside the attack.
func (e *envelope) attackProgress(p *envelopeParams) float32 {
	if e.stage != stageAttack {
		return -1
	}
	return float32(e.elapsed) / float32(p.attack)
}

// next returns the level of the current frame and advances the envelope by
// one frame.
func (e *envelope) next(p *envelopeParams) float32 {
	switch e.stage {
	case stageAttack:
		e.level = e.from + (1-e.from)*float32(e.elapsed)/float32(p.attack)
		e.elapsed++
		if e.elapsed >= p.attack {
			e.stage = stageDecay
			e.elapsed = 0
			e.gain = 1
		}
	case stageDecay:
		e.level = p.sustain + (1-p.sustain)*e.gain
		e.gain *= p.decayCoef
		e.elapsed++
		if e.elapsed >= p.decay {
			e.elapsed = 0
			if p.sustain > 0 {
				e.stage = stageSustain
			} else {
				// nothing left to release: the resonance has died away
				e.stage = stageIdle
			}
		}
	case stageSustain:
		e.level = p.sustain
	case stageRelease:
		e.level = e.from * e.gain
		e.gain *= p.releaseCoef
		e.elapsed++
		if e.elapsed >= p.release {
			e.stage = stageIdle
		}
	default:
		e.level = 0
	}
	return e.level
}
