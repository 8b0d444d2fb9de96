package transfer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts frames to channel messages and back. binary reports whether
// the payload travels as a binary or a text message.
type Codec interface {
	Name() string
	Encode(f Frame) (payload []byte, binary bool, err error)
	Decode(payload []byte, binary bool) (Frame, error)
}

const (
	legacyMetaPrefix = "META:"
	legacyEndMarker  = "EOF"
)

// LegacyCodec speaks the browser peer's framing: a "META:" text message with
// JSON metadata, raw binary chunks and a bare "EOF" text message.
type LegacyCodec struct{}

func (LegacyCodec) Name() string { return "legacy" }

func (LegacyCodec) Encode(f Frame) ([]byte, bool, error) {
	switch f.Kind {
	case FrameMetadata:
		body, err := json.Marshal(f.Metadata)
		if err != nil {
			return nil, false, NewError("encode metadata", err)
		}
		return append([]byte(legacyMetaPrefix), body...), false, nil
	case FrameChunk:
		return f.Data, true, nil
	case FrameEnd:
		return []byte(legacyEndMarker), false, nil
	case FrameText:
		if f.Text == legacyEndMarker || strings.HasPrefix(f.Text, legacyMetaPrefix) {
			return nil, false, WrapError("encode text", ErrMalformedFrame, "text collides with a control marker")
		}
		return []byte(f.Text), false, nil
	default:
		return nil, false, WrapError("encode", ErrMalformedFrame, f.Kind.String())
	}
}

func (LegacyCodec) Decode(payload []byte, binary bool) (Frame, error) {
	if binary {
		return ChunkFrame(payload), nil
	}

	text := string(payload)
	switch {
	case text == legacyEndMarker:
		return EndFrame(), nil
	case strings.HasPrefix(text, legacyMetaPrefix):
		var meta Metadata
		if err := json.Unmarshal(payload[len(legacyMetaPrefix):], &meta); err != nil {
			return Frame{}, WrapError("decode metadata", ErrMalformedFrame, err.Error())
		}
		if err := meta.validate(); err != nil {
			return Frame{}, err
		}
		return MetadataFrame(meta), nil
	default:
		return TextFrame(text), nil
	}
}

const (
	packedMetadata = "metadata"
	packedChunk    = "chunk"
	packedEnd      = "end"
	packedText     = "text"
)

// packedMessage is the envelope of every frame in the msgpack framing.
type packedMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

type packedChunkPayload struct {
	Bytes []byte `msgpack:"bytes"`
}

type packedTextPayload struct {
	Text string `msgpack:"text"`
}

// MsgpackCodec frames everything as binary msgpack envelopes. Two command
// line peers use it in place of the legacy framing.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(f Frame) ([]byte, bool, error) {
	var (
		typ  string
		body any
	)
	switch f.Kind {
	case FrameMetadata:
		typ, body = packedMetadata, f.Metadata
	case FrameChunk:
		typ, body = packedChunk, packedChunkPayload{Bytes: f.Data}
	case FrameEnd:
		typ = packedEnd
	case FrameText:
		typ, body = packedText, packedTextPayload{Text: f.Text}
	default:
		return nil, false, WrapError("encode", ErrMalformedFrame, f.Kind.String())
	}

	msg := packedMessage{Type: typ}
	if body != nil {
		raw, err := msgpack.Marshal(body)
		if err != nil {
			return nil, false, NewError("encode "+typ, err)
		}
		msg.Payload = raw
	}

	data, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, false, NewError("encode "+typ, err)
	}
	return data, true, nil
}

func (MsgpackCodec) Decode(payload []byte, binary bool) (Frame, error) {
	if !binary {
		return TextFrame(string(payload)), nil
	}

	var msg packedMessage
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return Frame{}, WrapError("decode", ErrMalformedFrame, err.Error())
	}

	switch msg.Type {
	case packedMetadata:
		var meta Metadata
		if err := msgpack.Unmarshal(msg.Payload, &meta); err != nil {
			return Frame{}, WrapError("decode metadata", ErrMalformedFrame, err.Error())
		}
		if err := meta.validate(); err != nil {
			return Frame{}, err
		}
		return MetadataFrame(meta), nil
	case packedChunk:
		var chunk packedChunkPayload
		if err := msgpack.Unmarshal(msg.Payload, &chunk); err != nil {
			return Frame{}, WrapError("decode chunk", ErrMalformedFrame, err.Error())
		}
		return ChunkFrame(chunk.Bytes), nil
	case packedEnd:
		return EndFrame(), nil
	case packedText:
		var text packedTextPayload
		if err := msgpack.Unmarshal(msg.Payload, &text); err != nil {
			return Frame{}, WrapError("decode text", ErrMalformedFrame, err.Error())
		}
		return TextFrame(text.Text), nil
	default:
		return Frame{}, WrapError("decode", ErrMalformedFrame, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}
