// Package clock lets timer-driven loops run against either the wall clock or
// a manually advanced fake in tests.
package clock

import "time"

// Clock is the subset of the time package used by the broker sweepers and the
// transfer state machines.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. No more ticks are delivered after it returns.
func (t *Ticker) Stop() {
	if t.stop != nil {
		t.stop()
	}
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
