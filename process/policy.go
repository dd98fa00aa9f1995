package process

import (
	"slices"
	"syscall"
)

// ExitPolicy lists the exit codes and termination signals that count as a
// clean exit of a process.
type ExitPolicy struct {
	CleanCodes   []int
	CleanSignals []syscall.Signal
}

// DefaultExitPolicy accepts exit code 0 only.
func DefaultExitPolicy() ExitPolicy {
	return ExitPolicy{CleanCodes: []int{0}}
}

// ShutdownExitPolicy also accepts the signals Terminate sends, and the
// 128+signal codes a wrapping shell or container runtime reports for them.
func ShutdownExitPolicy() ExitPolicy {
	return ExitPolicy{
		CleanCodes:   []int{0, 128 + int(syscall.SIGINT), 128 + int(syscall.SIGKILL), 128 + int(syscall.SIGTERM)},
		CleanSignals: []syscall.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL},
	}
}

// Clean reports whether an exit with the given code, or by the given signal
// when signaled is true, is acceptable.
func (p ExitPolicy) Clean(code int, signal syscall.Signal, signaled bool) bool {
	if signaled {
		return slices.Contains(p.CleanSignals, signal)
	}
	return slices.Contains(p.CleanCodes, code)
}
