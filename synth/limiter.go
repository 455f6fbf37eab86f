package synth

// limiter is a tanh soft clipper. Its output tanh(drive*x)/drive never
// exceeds 1 in magnitude when drive >= 1, and is close to x for quiet
// signals.
type limiter struct {
	drive, invDrive float32
}

func newLimiter(drive float64) limiter {
	if drive < 1 {
		drive = 1
	}
	return limiter{drive: float32(drive), invDrive: float32(1 / drive)}
}

func (l limiter) apply(x float32) float32 {
	return fastTanh(x*l.drive) * l.invDrive
}

// onePole is a one-pole lowpass, y[n] = (1-a)*x[n] + a*y[n-1]. Its output is
// a convex combination of its inputs, so it never exceeds the limiter.
type onePole struct {
	a, b float32
	y    float32
}

func newOnePole(a float64) onePole {
	return onePole{a: float32(a), b: float32(1 - a)}
}

func (f *onePole) apply(x float32) float32 {
	f.y = f.b*x + f.a*f.y
	return f.y
}
