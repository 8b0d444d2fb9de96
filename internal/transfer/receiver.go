package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/BioHazard786/beamshare/internal/clock"
)

const (
	DefaultDrainPoll     = 10 * time.Millisecond
	DefaultMaxDrainPolls = 1000
)

type ReceiverState int

const (
	ReceiverIdle ReceiverState = iota
	ReceiverReceivingMeta
	ReceiverReceivingChunks
	ReceiverCompleted
)

func (s ReceiverState) String() string {
	switch s {
	case ReceiverIdle:
		return "idle"
	case ReceiverReceivingMeta:
		return "receiving-meta"
	case ReceiverReceivingChunks:
		return "receiving-chunks"
	case ReceiverCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type ReceiverConfig struct {
	Clock         clock.Clock
	DrainPoll     time.Duration
	MaxDrainPolls int
	NewAssembler  AssemblerFactory

	OnMetadata func(Metadata)
	OnProgress func(Progress)
	OnComplete func(*Artifact)
	OnFault    func(error)
	OnText     func(string)
}

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.DrainPoll <= 0 {
		c.DrainPoll = DefaultDrainPoll
	}
	if c.MaxDrainPolls <= 0 {
		c.MaxDrainPolls = DefaultMaxDrainPolls
	}
	if c.NewAssembler == nil {
		c.NewAssembler = NewMemoryAssembler
	}
	return c
}

type queuedChunk struct {
	session uint64
	data    []byte
}

// Receiver reassembles transfers from channel messages.
//
// Chunks are queued as they arrive and absorbed by a single drain goroutine,
// so the channel's read loop never waits on the assembler. The end marker
// blocks until the queue is empty before the artifact is finalized.
type Receiver struct {
	codec Codec
	cfg   ReceiverConfig

	mu       sync.Mutex
	state    ReceiverState
	session  uint64
	meta     Metadata
	asm      Assembler
	queue    []queuedChunk
	draining bool
	// appending is the assembler the drain goroutine is writing to outside
	// the lock. A reset during that write leaves it to the drain goroutine
	// to discard.
	appending Assembler
	retired   Assembler
	received int64
	started  time.Time
}

func NewReceiver(codec Codec, cfg ReceiverConfig) *Receiver {
	return &Receiver{
		codec: codec,
		cfg:   cfg.withDefaults(),
	}
}

// Open marks the channel as ready; the receiver now waits for metadata.
func (r *Receiver) Open() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == ReceiverIdle || r.state == ReceiverCompleted {
		r.state = ReceiverReceivingMeta
	}
}

// Reset drops any partial transfer and returns to Idle. It is called when
// the channel closes.
func (r *Receiver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked(ReceiverIdle)
}

// Abort drops any partial transfer, returns to Idle and reports cause as a
// fault. It is called when the channel fails.
func (r *Receiver) Abort(cause error) {
	r.mu.Lock()
	name := r.meta.Name
	active := r.state == ReceiverReceivingChunks
	r.resetLocked(ReceiverIdle)
	r.mu.Unlock()

	if active {
		r.fault(NewFileError("receive", name, cause))
		return
	}
	r.fault(NewError("receive", cause))
}

// HandleMessage decodes one channel message and applies it.
func (r *Receiver) HandleMessage(payload []byte, binary bool) error {
	f, err := r.codec.Decode(payload, binary)
	if err != nil {
		r.fault(err)
		return err
	}
	return r.HandleFrame(f)
}

func (r *Receiver) HandleFrame(f Frame) error {
	switch f.Kind {
	case FrameMetadata:
		return r.begin(f.Metadata)
	case FrameChunk:
		return r.enqueue(f.Data)
	case FrameEnd:
		return r.finish()
	case FrameText:
		if r.cfg.OnText != nil {
			r.cfg.OnText(f.Text)
		}
		return nil
	default:
		err := WrapError("receive", ErrUnexpectedFrame, f.Kind.String())
		r.fault(err)
		return err
	}
}

func (r *Receiver) begin(meta Metadata) error {
	r.mu.Lock()
	r.resetLocked(ReceiverReceivingMeta)

	asm, err := r.cfg.NewAssembler(meta)
	if err != nil {
		r.mu.Unlock()
		ferr := NewFileError("open", meta.Name, err)
		r.fault(ferr)
		return ferr
	}

	r.meta = meta
	r.asm = asm
	r.started = r.cfg.Clock.Now()
	r.state = ReceiverReceivingChunks
	r.mu.Unlock()

	if r.cfg.OnMetadata != nil {
		r.cfg.OnMetadata(meta)
	}
	return nil
}

func (r *Receiver) enqueue(data []byte) error {
	r.mu.Lock()
	if r.state != ReceiverReceivingChunks {
		state := r.state
		r.mu.Unlock()
		err := WrapError("receive", ErrUnexpectedFrame, "chunk while "+state.String())
		r.fault(err)
		return err
	}

	r.queue = append(r.queue, queuedChunk{session: r.session, data: data})
	if r.draining {
		r.mu.Unlock()
		return nil
	}
	r.draining = true
	r.mu.Unlock()

	go r.drain()
	return nil
}

// drain absorbs queued chunks one at a time until the queue is empty. The
// draining flag keeps a second pass from starting while this one runs.
func (r *Receiver) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.mu.Unlock()
			return
		}
		item := r.queue[0]
		r.queue[0] = queuedChunk{}
		r.queue = r.queue[1:]
		asm := r.asm
		if item.session != r.session || asm == nil {
			r.mu.Unlock()
			continue
		}
		r.appending = asm
		r.mu.Unlock()

		err := asm.Append(item.data)

		r.mu.Lock()
		r.appending = nil
		if r.retired == asm {
			r.retired = nil
			r.mu.Unlock()
			asm.Discard()
			continue
		}
		if item.session != r.session {
			r.mu.Unlock()
			continue
		}
		if err != nil {
			ferr := NewFileError("assemble", r.meta.Name, err)
			r.resetLocked(ReceiverReceivingMeta)
			r.mu.Unlock()
			r.fault(ferr)
			continue
		}
		r.received += int64(len(item.data))
		p := newProgress(r.received, r.meta.Size, r.cfg.Clock.Now().Sub(r.started))
		r.mu.Unlock()

		if r.cfg.OnProgress != nil {
			r.cfg.OnProgress(p)
		}
	}
}

func (r *Receiver) finish() error {
	r.mu.Lock()
	if r.state != ReceiverReceivingChunks {
		state := r.state
		r.mu.Unlock()
		err := WrapError("receive", ErrUnexpectedFrame, "end marker while "+state.String())
		r.fault(err)
		return err
	}
	session := r.session
	name := r.meta.Name
	r.mu.Unlock()

	if err := r.awaitDrain(session); err != nil {
		ferr := NewFileError("finalize", name, err)
		r.mu.Lock()
		if r.session == session {
			r.resetLocked(ReceiverReceivingMeta)
		}
		r.mu.Unlock()
		r.fault(ferr)
		return ferr
	}

	r.mu.Lock()
	if r.session != session || r.state != ReceiverReceivingChunks {
		r.mu.Unlock()
		return WrapError("finalize", ErrNoActiveTransfer, "transfer was reset")
	}

	meta, asm, received := r.meta, r.asm, r.received
	if received != meta.Size {
		r.resetLocked(ReceiverReceivingMeta)
		r.mu.Unlock()
		err := &TransferError{
			Op:      "finalize",
			File:    meta.Name,
			Err:     ErrIntegrityFault,
			Details: fmt.Sprintf("received %d of %d bytes", received, meta.Size),
		}
		r.fault(err)
		return err
	}

	artifact, err := asm.Finalize(meta)
	if err != nil {
		r.resetLocked(ReceiverReceivingMeta)
		r.mu.Unlock()
		ferr := NewFileError("finalize", meta.Name, err)
		r.fault(ferr)
		return ferr
	}
	artifact.ReceivedAt = r.cfg.Clock.Now()

	// The assembler now belongs to the artifact; clear it before the reset so
	// it is not discarded.
	r.asm = nil
	r.resetLocked(ReceiverCompleted)
	r.mu.Unlock()

	if r.cfg.OnComplete != nil {
		r.cfg.OnComplete(artifact)
	}
	return nil
}

func (r *Receiver) awaitDrain(session uint64) error {
	for i := 0; ; i++ {
		r.mu.Lock()
		idle := !r.draining && len(r.queue) == 0
		reset := r.session != session
		r.mu.Unlock()

		if reset {
			return ErrNoActiveTransfer
		}
		if idle {
			return nil
		}
		if i >= r.cfg.MaxDrainPolls {
			return ErrDrainStalled
		}
		<-r.cfg.Clock.After(r.cfg.DrainPoll)
	}
}

func (r *Receiver) resetLocked(next ReceiverState) {
	if r.asm != nil {
		if r.asm == r.appending {
			r.retired = r.asm
		} else {
			r.asm.Discard()
		}
		r.asm = nil
	}
	r.queue = nil
	r.received = 0
	r.session++
	r.state = next
}

func (r *Receiver) fault(err error) {
	if r.cfg.OnFault != nil {
		r.cfg.OnFault(err)
	}
}

func (r *Receiver) State() ReceiverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Received returns the bytes absorbed so far by the active transfer.
func (r *Receiver) Received() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

// Metadata returns the metadata of the active transfer.
func (r *Receiver) Metadata() (Metadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta, r.state == ReceiverReceivingChunks
}
