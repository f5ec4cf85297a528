package ports

import "time"

// Clock supplies "now" to every time-dependent component. Injecting it keeps
// expiry logic deterministic under test without wall-clock sleeps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
