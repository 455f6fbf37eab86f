package engine

import "time"

// TrySend sends v on c unless c is full. It never blocks and reports whether
// the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
		return true
	default:
		return false
	}
}

// TimeoutReceive waits at most t for a value from c. ok is false on timeout
// or when c is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	timer := time.NewTimer(t)
	defer timer.Stop()
	select {
	case v, ok = <-c:
		return v, ok
	case <-timer.C:
		return v, false
	}
}
