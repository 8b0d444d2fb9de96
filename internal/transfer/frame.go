package transfer

import "fmt"

// Metadata describes the file carried by one transfer. Field order matters:
// the legacy codec serialises it as-is and browser peers read these names.
type Metadata struct {
	Name         string `json:"name" msgpack:"name"`
	Size         int64  `json:"size" msgpack:"size"`
	Type         string `json:"type" msgpack:"type"`
	LastModified int64  `json:"lastModified" msgpack:"lastModified"`
}

func (m Metadata) validate() error {
	if m.Size < 0 {
		return WrapError("metadata", ErrMalformedFrame, fmt.Sprintf("negative size %d", m.Size))
	}
	return nil
}

type FrameKind int

const (
	FrameMetadata FrameKind = iota + 1
	FrameChunk
	FrameEnd
	// FrameText is free-form text that is neither metadata nor the end
	// marker. Browser peers use it for chat lines.
	FrameText
)

func (k FrameKind) String() string {
	switch k {
	case FrameMetadata:
		return "metadata"
	case FrameChunk:
		return "chunk"
	case FrameEnd:
		return "end"
	case FrameText:
		return "text"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one message on the direct channel.
type Frame struct {
	Kind     FrameKind
	Metadata Metadata
	Data     []byte
	Text     string
}

func MetadataFrame(m Metadata) Frame { return Frame{Kind: FrameMetadata, Metadata: m} }

func ChunkFrame(data []byte) Frame { return Frame{Kind: FrameChunk, Data: data} }

func EndFrame() Frame { return Frame{Kind: FrameEnd} }

func TextFrame(s string) Frame { return Frame{Kind: FrameText, Text: s} }
