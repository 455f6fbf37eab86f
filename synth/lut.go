package synth

import "math"

const (
	sinLUTSize  = 8192
	sinLUTMask  = sinLUTSize - 1
	tanhLUTSize = 4096
	tanhLUTMin  = float32(-4)
	tanhLUTMax  = float32(4)

	tanhLUTScale = float32(tanhLUTSize-1) / (tanhLUTMax - tanhLUTMin)
)

// sinLUT holds one cycle of a sine, plus a guard entry so that interpolation
// never has to wrap the index.
var sinLUT [sinLUTSize + 1]float32

// tanhLUT holds tanh over [tanhLUTMin, tanhLUTMax]; tanh saturates outside.
var tanhLUT [tanhLUTSize]float32

func init() {
	for i := range sinLUT {
		sinLUT[i] = float32(math.Sin(2 * math.Pi * float64(i) / sinLUTSize))
	}
	for i := range tanhLUT {
		x := float64(tanhLUTMin) + float64(i)*float64(tanhLUTMax-tanhLUTMin)/float64(tanhLUTSize-1)
		tanhLUT[i] = float32(math.Tanh(x))
	}
}

// sinCycles returns sin(2π*phase) for a phase in cycles, phase in [0, 1).
func sinCycles(phase float32) float32 {
	f := phase * sinLUTSize
	i := int(f)
	frac := f - float32(i)
	i &= sinLUTMask
	return sinLUT[i] + frac*(sinLUT[i+1]-sinLUT[i])
}

// fastTanh returns tanh(x), linearly interpolated from the table. NaN maps to
// zero.
func fastTanh(x float32) float32 {
	if x != x {
		return 0
	}
	if x <= tanhLUTMin {
		return -1
	}
	if x >= tanhLUTMax {
		return 1
	}
	f := (x - tanhLUTMin) * tanhLUTScale
	i := int(f)
	if i >= tanhLUTSize-1 {
		return tanhLUT[tanhLUTSize-1]
	}
	frac := f - float32(i)
	return tanhLUT[i] + frac*(tanhLUT[i+1]-tanhLUT[i])
}
