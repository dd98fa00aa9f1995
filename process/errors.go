package process

import (
	"errors"
	"fmt"
	"syscall"
)

// SpawnError reports that the OS could not start the process.
type SpawnError struct {
	Name    string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("[%s] failed to start process %q: %v", e.Name, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports an exit not allowed by the ExitPolicy.
type ExitError struct {
	Name     string
	Code     int
	Signal   syscall.Signal
	Signaled bool
}

func (e *ExitError) Error() string {
	signal := "none"
	if e.Signaled {
		signal = e.Signal.String()
	}
	return fmt.Sprintf("[%s] process exited (code: %d, signal: %s)", e.Name, e.Code, signal)
}

// WatchdogTimeoutError reports that a process died before printing the line
// a caller was waiting for.
type WatchdogTimeoutError struct {
	Name    string
	Pattern string
	Exit    error
}

func (e *WatchdogTimeoutError) Error() string {
	if e.Exit != nil {
		return fmt.Sprintf("[%s] process exited before printing %q: %v", e.Name, e.Pattern, e.Exit)
	}
	return fmt.Sprintf("[%s] process exited before printing %q", e.Name, e.Pattern)
}

func (e *WatchdogTimeoutError) Unwrap() error {
	return e.Exit
}

// IsExitError checks if the error is or wraps an ExitError
func IsExitError(err error) bool {
	var target *ExitError
	return err != nil && errors.As(err, &target)
}
