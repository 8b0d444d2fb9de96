package transfer

import (
	"bytes"
	"time"
)

// Artifact is a finished transfer. Exactly one of Data or Path is set,
// depending on the assembler that produced it.
type Artifact struct {
	Metadata   Metadata
	Data       []byte
	Path       string
	Size       int64
	ReceivedAt time.Time
}

// Assembler accumulates the chunks of one transfer in delivery order.
// Append takes ownership of p.
type Assembler interface {
	Append(p []byte) error
	Finalize(meta Metadata) (*Artifact, error)
	Discard()
}

// AssemblerFactory opens an assembler for a transfer described by meta.
type AssemblerFactory func(meta Metadata) (Assembler, error)

// MemoryAssembler keeps every received range in memory and joins them on
// Finalize.
type MemoryAssembler struct {
	ranges [][]byte
	size   int64
}

func NewMemoryAssembler(Metadata) (Assembler, error) {
	return &MemoryAssembler{}, nil
}

func (a *MemoryAssembler) Append(p []byte) error {
	a.ranges = append(a.ranges, p)
	a.size += int64(len(p))
	return nil
}

func (a *MemoryAssembler) Finalize(meta Metadata) (*Artifact, error) {
	data := bytes.Join(a.ranges, nil)
	a.ranges = nil
	return &Artifact{Metadata: meta, Data: data, Size: int64(len(data))}, nil
}

func (a *MemoryAssembler) Discard() {
	a.ranges = nil
	a.size = 0
}
