package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is a spawned process. It is owned by the Controller that created it;
// only that controller sends it signals.
type Handle struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  *output
	policy  ExitPolicy
	started time.Time

	running     atomic.Bool
	terminating atomic.Bool
	done        chan struct{}
	exitErr     error
	exitState   *os.ProcessState

	mu       sync.Mutex
	watchdog *time.Timer
	killedAt time.Time
}

// Name is the display name given at spawn time.
func (h *Handle) Name() string {
	return h.name
}

// Pid of the process.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Running reports whether the process has not exited yet.
func (h *Handle) Running() bool {
	return h.running.Load()
}

// Done is closed once the process exited and its output was drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// CleanExit waits for the process to exit. It returns nil if the exit code or
// signal is allowed by the handle's ExitPolicy and an *ExitError otherwise.
func (h *Handle) CleanExit(ctx context.Context) error {
	select {
	case <-h.done:
		return h.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitState returns the OS exit state once the process has exited.
func (h *Handle) ExitState() *os.ProcessState {
	select {
	case <-h.done:
		return h.exitState
	default:
		return nil
	}
}

// TerminationRequested reports whether Terminate was called on this handle,
// directly or through a watchdog.
func (h *Handle) TerminationRequested() bool {
	return h.terminating.Load()
}

// Output returns the retained output lines.
func (h *Handle) Output() []string {
	return h.output.lines()
}

// Uptime is the time since the process was started.
func (h *Handle) Uptime() time.Duration {
	return time.Since(h.started)
}

func (h *Handle) markKilled() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killedAt = time.Now()
}

// KilledAt is when the forced kill was sent, zero if it never was.
func (h *Handle) KilledAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killedAt
}
