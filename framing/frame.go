// Package framing implements the length-prefixed transport used to talk to a
// fuzz target: every message is a 4-byte little-endian length followed by the
// payload.
package framing

import (
	"encoding/binary"
	"fmt"
)

const (
	// LengthPrefixBytes is the size of the frame header.
	LengthPrefixBytes = 4

	// DefaultMaxFrameSize bounds the payload a Decoder accepts.
	DefaultMaxFrameSize = 256 * 1024 * 1024
)

// DecoderState is the reassembly state of a Decoder.
type DecoderState int

const (
	AwaitingLength DecoderState = iota
	AwaitingPayload
)

func (s DecoderState) String() string {
	switch s {
	case AwaitingLength:
		return "awaiting-length"
	case AwaitingPayload:
		return "awaiting-payload"
	default:
		return fmt.Sprintf("DecoderState(%d)", int(s))
	}
}

// Encode returns payload preceded by its length prefix.
func Encode(payload []byte) []byte {
	frame := make([]byte, LengthPrefixBytes+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[LengthPrefixBytes:], payload)
	return frame
}

// Decoder reassembles frames from arbitrarily split chunks of a byte stream.
// It is a two-state machine: in AwaitingLength it collects the 4 header bytes,
// in AwaitingPayload it collects exactly the announced number of payload bytes.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	state    DecoderState
	buf      []byte
	expected uint32
	maxSize  uint32
}

// NewDecoder creates a Decoder rejecting frames larger than maxSize bytes.
// A zero maxSize means DefaultMaxFrameSize.
func NewDecoder(maxSize uint32) *Decoder {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Decoder{maxSize: maxSize}
}

// State reports the current reassembly state.
func (d *Decoder) State() DecoderState {
	return d.state
}

// Buffered is the number of bytes held for the frame being assembled.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Partial reports whether some bytes of an unfinished frame are buffered.
func (d *Decoder) Partial() bool {
	return d.state == AwaitingPayload || len(d.buf) > 0
}

// Feed consumes a chunk and returns every frame it completed, in order.
// Returned payloads do not alias the chunk or the decoder's buffer.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	var frames [][]byte
	for len(chunk) > 0 {
		switch d.state {
		case AwaitingLength:
			need := LengthPrefixBytes - len(d.buf)
			n := min(need, len(chunk))
			d.buf = append(d.buf, chunk[:n]...)
			chunk = chunk[n:]
			if len(d.buf) < LengthPrefixBytes {
				continue
			}
			d.expected = binary.LittleEndian.Uint32(d.buf)
			if d.expected > d.maxSize {
				return frames, &FrameTooLargeError{Size: d.expected, Max: d.maxSize}
			}
			d.buf = make([]byte, 0, d.expected)
			d.state = AwaitingPayload
		case AwaitingPayload:
			need := int(d.expected) - len(d.buf)
			n := min(need, len(chunk))
			d.buf = append(d.buf, chunk[:n]...)
			chunk = chunk[n:]
		}
		if d.state == AwaitingPayload && len(d.buf) == int(d.expected) {
			frames = append(frames, d.buf)
			d.reset()
		}
	}
	return frames, nil
}

func (d *Decoder) reset() {
	d.state = AwaitingLength
	d.buf = nil
	d.expected = 0
}
