package synth

import (
	"math"

	"github.com/panyard/steelpan"
)

type (
	// partial is a partial of the patch, with its decay converted into a per
	// sample multiplier.
	partial struct {
		ratio     float32
		amplitude float32
		decay     float32
	}

	// partialBank is the oscillator of a voice: a fixed set of sinusoids,
	// each with its own phase accumulator (in cycles) and level.
	partialBank struct {
		n      int
		phase  [steelpan.MaxPartials]float32
		inc    [steelpan.MaxPartials]float32
		level  [steelpan.MaxPartials]float32
		from   [steelpan.MaxPartials]float32
		target [steelpan.MaxPartials]float32
		decay  [steelpan.MaxPartials]float32
	}
)

func newPartials(p []steelpan.Partial, sampleRate int) []partial {
	ret := make([]partial, len(p))
	for i, q := range p {
		ret[i] = partial{
			ratio:     float32(q.Ratio),
			amplitude: float32(q.Amplitude),
			decay:     t60Coefficient(q.Decay, sampleRate),
		}
	}
	return ret
}

// t60Coefficient is the per sample multiplier that attenuates a signal by
// 60 dB in t60 seconds.
func t60Coefficient(t60 float64, sampleRate int) float32 {
	if t60 <= 0 {
		return 1
	}
	return float32(math.Exp(math.Log(1e-3) / (t60 * float64(sampleRate))))
}

// audible reports whether any partial with a nonzero amplitude is below
// nyquist at the given fundamental.
func audible(partials []partial, freq, nyquist float32) bool {
	for _, p := range partials {
		if p.amplitude > 0 && p.ratio*freq < nyquist {
			return true
		}
	}
	return false
}

// tune sets the frequencies and target levels of the bank for a fundamental
// frequency. Phases are left untouched. The target levels of the partials
// below nyquist sum to one; partials at or above nyquist are muted.
func (b *partialBank) tune(partials []partial, freq, sampleRate float32) {
	nyquist := sampleRate / 2
	var total float32
	for _, p := range partials {
		if p.ratio*freq < nyquist {
			total += p.amplitude
		}
	}
	b.n = len(partials)
	for i, p := range partials {
		f := p.ratio * freq
		b.decay[i] = p.decay
		if f >= nyquist || total <= 0 {
			b.inc[i] = 0
			b.target[i] = 0
			continue
		}
		b.inc[i] = f / sampleRate
		b.target[i] = p.amplitude / total
	}
}

// strike makes the current levels the starting point of a glide towards the
// target levels.
func (b *partialBank) strike() {
	b.from = b.level
}

// next returns the current sample and advances the bank by one frame. While
// glide is in [0, 1], the levels move linearly from the strike levels to the
// target levels; when glide is negative, each partial decays on its own.
func (b *partialBank) next(glide float32) float32 {
	var s float32
	for i := 0; i < b.n; i++ {
		if glide >= 0 {
			b.level[i] = b.from[i] + (b.target[i]-b.from[i])*glide
		}
		s += b.level[i] * sinCycles(b.phase[i])
		b.phase[i] += b.inc[i]
		if b.phase[i] >= 1 {
			b.phase[i] -= 1
		}
		if glide < 0 {
			b.level[i] *= b.decay[i]
		}
	}
	return s
}

// amplitude is the sum of the partial levels, an upper bound of the output
// of the bank.
func (b *partialBank) amplitude() float32 {
	var a float32
	for i := 0; i < b.n; i++ {
		a += b.level[i]
	}
	return a
}
