package framing

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	frame := Encode([]byte{0xaa, 0xbb, 0xcc})
	require.Len(t, frame, 7)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(frame[:4]))
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, frame[4:])

	empty := Encode(nil)
	assert.Equal(t, []byte{0, 0, 0, 0}, empty)
}

func feedAll(t *testing.T, d *Decoder, stream []byte, chunkSize int) [][]byte {
	t.Helper()
	var out [][]byte
	for len(stream) > 0 {
		n := min(chunkSize, len(stream))
		frames, err := d.Feed(stream[:n])
		require.NoError(t, err)
		out = append(out, frames...)
		stream = stream[n:]
	}
	return out
}

func TestDecoder_ChunkingDoesNotChangeResult(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0x5a}, 300),
		bytes.Repeat([]byte("picofuzz"), 20_000),
	}
	var stream []byte
	for _, p := range payloads {
		stream = append(stream, Encode(p)...)
	}

	for _, chunkSize := range []int{1, 2, 3, 4, 5, 7, 64, 4096, len(stream)} {
		d := NewDecoder(0)
		frames := feedAll(t, d, stream, chunkSize)
		require.Len(t, frames, len(payloads), "chunk size %d", chunkSize)
		for i := range payloads {
			assert.Equal(t, len(payloads[i]), len(frames[i]), "chunk size %d frame %d", chunkSize, i)
			assert.True(t, bytes.Equal(payloads[i], frames[i]), "chunk size %d frame %d", chunkSize, i)
		}
		assert.Equal(t, AwaitingLength, d.State())
		assert.False(t, d.Partial())
	}
}

func TestDecoder_States(t *testing.T) {
	d := NewDecoder(0)
	assert.Equal(t, AwaitingLength, d.State())

	frames, err := d.Feed([]byte{5, 0})
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, AwaitingLength, d.State())
	assert.True(t, d.Partial())

	frames, err = d.Feed([]byte{0, 0, 'h', 'e'})
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, AwaitingPayload, d.State())
	assert.Equal(t, 2, d.Buffered())

	frames, err = d.Feed([]byte{'l', 'l', 'o', 1, 0})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "hello", string(frames[0]))
	// the start of the next prefix stays buffered
	assert.Equal(t, AwaitingLength, d.State())
	assert.Equal(t, 2, d.Buffered())
}

func TestDecoder_EmptyFrame(t *testing.T) {
	d := NewDecoder(0)
	frames, err := d.Feed([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Empty(t, frames[0])
	assert.False(t, d.Partial())
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	d := NewDecoder(16)
	_, err := d.Feed(Encode(make([]byte, 17)))
	var tooLarge *FrameTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, uint32(17), tooLarge.Size)
	assert.Equal(t, uint32(16), tooLarge.Max)
}

func TestDecoder_FramesDoNotAliasInput(t *testing.T) {
	d := NewDecoder(0)
	chunk := Encode([]byte("abc"))
	frames, err := d.Feed(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	chunk[4] = 'z'
	assert.Equal(t, "abc", string(frames[0]))
}

func TestDecoderStateString(t *testing.T) {
	assert.Equal(t, "awaiting-length", AwaitingLength.String())
	assert.Equal(t, "awaiting-payload", AwaitingPayload.String())
	assert.Equal(t, "DecoderState(9)", DecoderState(9).String())
}
