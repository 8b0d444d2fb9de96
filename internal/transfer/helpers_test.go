package transfer

import (
	"errors"
	"sync"
)

type sentMessage struct {
	payload []byte
	binary  bool
}

// fakeChannel records every message and simulates a send buffer. Each Send
// adds to the buffered amount; each BufferedAmount poll lets drainPerPoll
// bytes leave the buffer, as if the network consumed them in the meantime.
type fakeChannel struct {
	mu           sync.Mutex
	open         bool
	buffered     uint64
	drainPerPoll uint64
	maxAtEnqueue uint64
	sent         []sentMessage
	failSend     error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{open: true}
}

func (c *fakeChannel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeChannel) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount := c.buffered
	if c.buffered > c.drainPerPoll {
		c.buffered -= c.drainPerPoll
	} else {
		c.buffered = 0
	}
	return amount
}

func (c *fakeChannel) Send(data []byte) error {
	return c.record(data, true)
}

func (c *fakeChannel) SendText(text string) error {
	return c.record([]byte(text), false)
}

func (c *fakeChannel) record(p []byte, binary bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend != nil {
		return c.failSend
	}
	if !c.open {
		return errors.New("fake channel closed")
	}
	if binary && c.buffered > c.maxAtEnqueue {
		c.maxAtEnqueue = c.buffered
	}
	c.sent = append(c.sent, sentMessage{payload: append([]byte(nil), p...), binary: binary})
	if binary && c.drainPerPoll > 0 {
		c.buffered += uint64(len(p))
	}
	return nil
}

func (c *fakeChannel) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

// gatedAssembler blocks every Append until release is closed.
type gatedAssembler struct {
	MemoryAssembler
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedAssembler() *gatedAssembler {
	return &gatedAssembler{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (a *gatedAssembler) Append(p []byte) error {
	a.once.Do(func() { close(a.entered) })
	<-a.release
	return a.MemoryAssembler.Append(p)
}

func (a *gatedAssembler) factory(Metadata) (Assembler, error) {
	return a, nil
}

// watchedAssembler is a gatedAssembler that records whether Discard ran
// while an Append was still in progress.
type watchedAssembler struct {
	*gatedAssembler
	mu         sync.Mutex
	appending  bool
	overlapped bool
	discarded  chan struct{}
}

func newWatchedAssembler() *watchedAssembler {
	return &watchedAssembler{gatedAssembler: newGatedAssembler(), discarded: make(chan struct{})}
}

func (a *watchedAssembler) Append(p []byte) error {
	a.mu.Lock()
	a.appending = true
	a.mu.Unlock()

	err := a.gatedAssembler.Append(p)

	a.mu.Lock()
	a.appending = false
	a.mu.Unlock()
	return err
}

func (a *watchedAssembler) Discard() {
	a.mu.Lock()
	if a.appending {
		a.overlapped = true
	}
	a.mu.Unlock()
	a.gatedAssembler.Discard()
	close(a.discarded)
}

func (a *watchedAssembler) factory(Metadata) (Assembler, error) {
	return a, nil
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}
