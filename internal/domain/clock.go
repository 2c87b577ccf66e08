package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic
// retention decisions.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for age and touch calculations. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}

// AgeInDays returns the whole days elapsed since t, truncated.
func AgeInDays(t time.Time) int {
	return int(clock.Now().Sub(t).Hours() / 24)
}
