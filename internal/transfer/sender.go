package transfer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/BioHazard786/beamshare/internal/clock"
)

const (
	DefaultChunkSize     = 16 * 1024
	DefaultHighWaterMark = 64 * 1024
	DefaultResumeDelay   = 10 * time.Millisecond
)

type SenderState int

const (
	SenderIdle SenderState = iota
	SenderMetaSent
	SenderSending
	SenderCompleted
	SenderAborted
)

func (s SenderState) String() string {
	switch s {
	case SenderIdle:
		return "idle"
	case SenderMetaSent:
		return "meta-sent"
	case SenderSending:
		return "sending"
	case SenderCompleted:
		return "completed"
	case SenderAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Step is the outcome of one SendNext call.
type Step int

const (
	StepSent Step = iota + 1
	StepSuspended
	StepCompleted
)

type SenderConfig struct {
	ChunkSize     int
	HighWaterMark uint64
	ResumeDelay   time.Duration
	Clock         clock.Clock
	OnProgress    func(Progress)
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.HighWaterMark == 0 {
		c.HighWaterMark = DefaultHighWaterMark
	}
	if uint64(c.ChunkSize) > c.HighWaterMark {
		c.ChunkSize = int(c.HighWaterMark)
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = DefaultResumeDelay
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	return c
}

// Sender streams one file at a time over a Channel.
//
// A transfer starts with Begin, which emits the metadata frame, and is then
// advanced by SendNext until it reports StepCompleted. Run wraps that loop and
// waits ResumeDelay whenever the channel has more than HighWaterMark bytes
// buffered. Abort may be called from any goroutine, typically from the
// channel's close or error callback.
type Sender struct {
	ch    Channel
	codec Codec
	cfg   SenderConfig

	mu      sync.Mutex
	state   SenderState
	meta    Metadata
	src     io.Reader
	offset  int64
	retries int
	started time.Time
	err     error
}

func NewSender(ch Channel, codec Codec, cfg SenderConfig) *Sender {
	return &Sender{
		ch:    ch,
		codec: codec,
		cfg:   cfg.withDefaults(),
	}
}

// Begin starts a transfer of meta.Size bytes read from src.
func (s *Sender) Begin(meta Metadata, src io.Reader) error {
	if err := meta.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active() {
		return NewFileError("begin", meta.Name, ErrTransferInProgress)
	}
	if !s.ch.Open() {
		return NewFileError("begin", meta.Name, ErrChannelNotReady)
	}

	s.meta = meta
	s.src = src
	s.offset = 0
	s.retries = 0
	s.err = nil
	s.started = s.cfg.Clock.Now()

	if err := writeFrame(s.ch, s.codec, MetadataFrame(meta)); err != nil {
		return s.abortLocked(errors.Join(ErrConnectionLost, err))
	}
	s.state = SenderMetaSent
	return nil
}

// SendNext performs one unit of work: it either suspends because the channel
// is backed up, emits one chunk, or emits the end marker.
func (s *Sender) SendNext() (Step, error) {
	s.mu.Lock()
	step, progress, err := s.sendNextLocked()
	s.mu.Unlock()

	if progress != nil && s.cfg.OnProgress != nil {
		s.cfg.OnProgress(*progress)
	}
	return step, err
}

func (s *Sender) sendNextLocked() (Step, *Progress, error) {
	switch s.state {
	case SenderMetaSent, SenderSending:
	case SenderAborted:
		return 0, nil, s.err
	default:
		return 0, nil, NewError("send", ErrNoActiveTransfer)
	}

	if !s.ch.Open() {
		return 0, nil, s.abortLocked(ErrConnectionLost)
	}
	s.state = SenderSending

	if s.offset < s.meta.Size {
		if s.ch.BufferedAmount() > s.cfg.HighWaterMark {
			s.retries++
			return StepSuspended, nil, nil
		}

		chunk := make([]byte, min(int64(s.cfg.ChunkSize), s.meta.Size-s.offset))
		if _, err := io.ReadFull(s.src, chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrShortSource
			}
			return 0, nil, s.abortLocked(err)
		}
		if err := writeFrame(s.ch, s.codec, ChunkFrame(chunk)); err != nil {
			return 0, nil, s.abortLocked(errors.Join(ErrConnectionLost, err))
		}

		s.offset += int64(len(chunk))
		p := s.progressLocked()
		if s.offset < s.meta.Size {
			return StepSent, &p, nil
		}
	}

	if err := writeFrame(s.ch, s.codec, EndFrame()); err != nil {
		return 0, nil, s.abortLocked(errors.Join(ErrConnectionLost, err))
	}
	s.state = SenderCompleted
	s.src = nil
	p := s.progressLocked()
	return StepCompleted, &p, nil
}

// Run drives the active transfer to completion. Cancelling ctx aborts it.
func (s *Sender) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return s.cancel(ctx)
		}

		step, err := s.SendNext()
		if err != nil {
			return err
		}

		switch step {
		case StepCompleted:
			return nil
		case StepSuspended:
			select {
			case <-ctx.Done():
				return s.cancel(ctx)
			case <-s.cfg.Clock.After(s.cfg.ResumeDelay):
			}
		}
	}
}

func (s *Sender) cancel(ctx context.Context) error {
	if err := s.Abort(ctx.Err()); err != nil {
		return err
	}
	return ctx.Err()
}

// Abort ends the active transfer with cause. Queued data that was never
// handed to the channel is dropped. It returns the error the session now
// reports, or nil when no transfer was active.
func (s *Sender) Abort(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active() {
		return nil
	}
	return s.abortLocked(cause)
}

func (s *Sender) abortLocked(cause error) error {
	err := NewFileError("send", s.meta.Name, cause)
	s.err = err
	s.state = SenderAborted
	s.src = nil
	return err
}

func (s *Sender) active() bool {
	return s.state == SenderMetaSent || s.state == SenderSending
}

func (s *Sender) progressLocked() Progress {
	return newProgress(s.offset, s.meta.Size, s.cfg.Clock.Now().Sub(s.started))
}

func (s *Sender) State() SenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Offset returns the number of bytes handed to the channel so far.
func (s *Sender) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Retries returns how many times the current transfer suspended on
// backpressure.
func (s *Sender) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

func (s *Sender) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// Err returns the error that aborted the last transfer.
func (s *Sender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
