package ui

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking-free line spinner for the waiting phases before the
// transfer view takes over the terminal.
type Spinner struct {
	out     io.Writer
	kind    spinner.Spinner
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
	started atomic.Bool

	mu      sync.Mutex
	message string
}

func newSpinner(out io.Writer, kind spinner.Spinner, message string) *Spinner {
	return &Spinner{
		out:     out,
		kind:    kind,
		message: message,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

// NewConnectionSpinner is for network operations.
func NewConnectionSpinner(out io.Writer, message string) *Spinner {
	return newSpinner(out, spinner.Globe, message)
}

// NewWaitingSpinner is for waiting on the other peer.
func NewWaitingSpinner(out io.Writer, message string) *Spinner {
	return newSpinner(out, spinner.Points, message)
}

func (s *Spinner) Start() {
	if s.started.Swap(true) {
		return
	}
	go func() {
		defer close(s.exited)
		ticker := time.NewTicker(s.kind.FPS)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			frame := SpinnerStyle.Render(s.kind.Frames[i%len(s.kind.Frames)])
			fmt.Fprintf(s.out, "\r%s %s", frame, s.message)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call more than once and
// before Start.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	if s.started.Load() {
		<-s.exited
	}
	s.mu.Lock()
	fmt.Fprint(s.out, "\r\033[K")
	s.mu.Unlock()
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Fail(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}

func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
