package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyCodecWireBytes(t *testing.T) {
	codec := LegacyCodec{}

	payload, binary, err := codec.Encode(MetadataFrame(Metadata{
		Name:         "a.bin",
		Size:         40000,
		Type:         "application/octet-stream",
		LastModified: 1700000000000,
	}))
	require.NoError(t, err)
	assert.False(t, binary)
	assert.Equal(t,
		`META:{"name":"a.bin","size":40000,"type":"application/octet-stream","lastModified":1700000000000}`,
		string(payload))

	payload, binary, err = codec.Encode(EndFrame())
	require.NoError(t, err)
	assert.False(t, binary)
	assert.Equal(t, "EOF", string(payload))

	chunk := []byte{0, 1, 2, 3}
	payload, binary, err = codec.Encode(ChunkFrame(chunk))
	require.NoError(t, err)
	assert.True(t, binary)
	assert.Equal(t, chunk, payload)
}

func TestLegacyCodecDecode(t *testing.T) {
	codec := LegacyCodec{}

	f, err := codec.Decode([]byte(`META:{"name":"b.txt","size":12,"type":"text/plain","lastModified":5}`), false)
	require.NoError(t, err)
	assert.Equal(t, FrameMetadata, f.Kind)
	assert.Equal(t, Metadata{Name: "b.txt", Size: 12, Type: "text/plain", LastModified: 5}, f.Metadata)

	f, err = codec.Decode([]byte("EOF"), false)
	require.NoError(t, err)
	assert.Equal(t, FrameEnd, f.Kind)

	f, err = codec.Decode([]byte("hello there"), false)
	require.NoError(t, err)
	assert.Equal(t, FrameText, f.Kind)
	assert.Equal(t, "hello there", f.Text)

	f, err = codec.Decode([]byte("EOF"), true)
	require.NoError(t, err)
	assert.Equal(t, FrameChunk, f.Kind, "binary payloads are always chunks")

	_, err = codec.Decode([]byte("META:{not json"), false)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = codec.Decode([]byte(`META:{"name":"x","size":-1}`), false)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestLegacyCodecRejectsTextThatLooksLikeControl(t *testing.T) {
	_, _, err := LegacyCodec{}.Encode(TextFrame("EOF"))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestMsgpackCodecIsBinary(t *testing.T) {
	codec := MsgpackCodec{}

	for _, f := range []Frame{
		MetadataFrame(Metadata{Name: "c", Size: 3}),
		ChunkFrame([]byte("abc")),
		EndFrame(),
		TextFrame("hi"),
	} {
		payload, binary, err := codec.Encode(f)
		require.NoError(t, err)
		assert.True(t, binary, f.Kind.String())

		decoded, err := codec.Decode(payload, true)
		require.NoError(t, err)
		assert.Equal(t, f.Kind, decoded.Kind)
	}

	_, err := codec.Decode([]byte{0xc1}, true)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
