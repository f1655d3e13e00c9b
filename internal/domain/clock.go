package domain

import "github.com/jonboulle/clockwork"

// clock is the package time source used to label synthesized series points.
// Tests freeze it via SetClock so series output is fully reproducible.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
