package picofuzz

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include an unreachable socket, a missing directory or a failed handshake.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// FileError reports the input file that stopped a run (exit code 1).
type FileError struct {
	Path  string
	Round int
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("stopping due to error with file %s (round %d): %v", e.Path, e.Round, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *FileError) Unwrap() error {
	return e.Err
}

// IsFileError checks if the error is or wraps a FileError
func IsFileError(err error) bool {
	var fileErr *FileError
	return err != nil && errors.As(err, &fileErr)
}

// TargetError reports a managed node that exited on its own during the run
// (exit code 1).
type TargetError struct {
	Err error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("node under test failed: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *TargetError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError represents an invalid command line (exit code 3).
type InvalidArgumentError struct {
	Err error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *InvalidArgumentError) Unwrap() error {
	return e.Err
}

// NewInvalidArgumentError creates a new InvalidArgumentError
func NewInvalidArgumentError(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Err: fmt.Errorf(format, args...)}
}

// IsInvalidArgument checks if the error is or wraps an InvalidArgumentError
func IsInvalidArgument(err error) bool {
	var argErr *InvalidArgumentError
	return err != nil && errors.As(err, &argErr)
}

// IsTargetError checks if the error is or wraps a TargetError
func IsTargetError(err error) bool {
	var targetErr *TargetError
	return err != nil && errors.As(err, &targetErr)
}
