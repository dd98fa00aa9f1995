package fuzzproto

import (
	"errors"
	"fmt"
)

// ErrTracesUnsupported is returned when a state-transition trace cannot be
// split into fuzzer messages without a full block codec.
var ErrTracesUnsupported = errors.New("splitting state transition traces needs a block codec")

// DecodeError reports bytes that are not a valid fuzzer message.
type DecodeError struct {
	What   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("cannot decode %s", e.What)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError checks if the error is or wraps a DecodeError
func IsDecodeError(err error) bool {
	var target *DecodeError
	return err != nil && errors.As(err, &target)
}

// HandshakeError is returned when the peer answers the handshake with
// something other than its own PeerInfo.
type HandshakeError struct {
	Got Kind
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("invalid handshake response: %s", e.Got)
}
