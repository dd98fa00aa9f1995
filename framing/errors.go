package framing

import (
	"errors"
	"fmt"
)

// ErrSendInProgress is returned when Send is called while another Send on the
// same transport is still waiting for its response.
var ErrSendInProgress = errors.New("framing: a request is already in flight on this transport")

// ErrClosed is returned when using a transport after Close.
var ErrClosed = errors.New("framing: transport closed")

// ConnectionError reports that the endpoint could not be reached.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IncompleteFrameError reports that the peer closed the connection before a
// whole response frame arrived.
type IncompleteFrameError struct {
	Received int    // bytes of the frame buffered when the connection closed
	Expected uint32 // announced payload length, zero if the prefix never completed
	State    DecoderState
}

func (e *IncompleteFrameError) Error() string {
	if e.State == AwaitingLength {
		return fmt.Sprintf("connection closed before receiving complete response (got %d of %d length bytes)", e.Received, LengthPrefixBytes)
	}
	return fmt.Sprintf("connection closed before receiving complete response (got %d of %d payload bytes)", e.Received, e.Expected)
}

// FrameTooLargeError reports a length prefix above the configured limit.
type FrameTooLargeError struct {
	Size uint32
	Max  uint32
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d bytes", e.Size, e.Max)
}

// IsIncompleteFrame checks if the error is or wraps an IncompleteFrameError
func IsIncompleteFrame(err error) bool {
	var target *IncompleteFrameError
	return err != nil && errors.As(err, &target)
}

// IsConnectionError checks if the error is or wraps a ConnectionError
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return err != nil && errors.As(err, &target)
}

// UnexpectedDataError reports bytes the peer sent beyond the one response
// frame of a request.
type UnexpectedDataError struct {
	Frames  int  // complete extra frames
	Partial bool // the start of a further frame
}

func (e *UnexpectedDataError) Error() string {
	return fmt.Sprintf("peer sent unrequested data after the response: %d extra frames, partial frame: %t", e.Frames, e.Partial)
}
