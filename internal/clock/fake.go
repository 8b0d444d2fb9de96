package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when told to.
//
// After advances the fake by the requested duration and fires immediately, so
// a loop that suspends on After never blocks in tests. Every requested wait
// is recorded and can be inspected with Waits. Tickers fire only on Tick.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	tickers []*fakeTicker
}

type fakeTicker struct {
	c       chan time.Time
	stopped bool
}

// NewFake returns a fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits = append(f.waits, d)
	if d > 0 {
		f.now = f.now.Add(d)
	}
	c := make(chan time.Time, 1)
	c <- f.now
	return c
}

func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ft := &fakeTicker{c: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, ft)
	return &Ticker{
		C: ft.c,
		stop: func() {
			f.mu.Lock()
			ft.stopped = true
			f.mu.Unlock()
		},
	}
}

// Advance moves the fake forward by d without firing tickers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Tick delivers one tick to every live ticker. A tick is dropped for a ticker
// whose previous tick has not been consumed, as with time.Ticker.
func (f *Fake) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		select {
		case t.c <- f.now:
		default:
		}
	}
}

// Waits returns every duration passed to After so far.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waits))
	copy(out, f.waits)
	return out
}
