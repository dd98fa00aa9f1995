// Package process spawns the programs taking part in a fuzzing session,
// watches their output for readiness lines and owns their termination.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const (
	// DefaultGracePeriod is how long Terminate waits before a forced kill.
	DefaultGracePeriod = 5 * time.Second

	// DefaultShell runs commands in shell mode.
	DefaultShell = "/bin/sh"
)

// Config holds the controller settings. There are no package-level
// defaults beyond the zero-value fallbacks applied by NewController, so
// several controllers can run side by side with different settings.
type Config struct {
	// WorkDir is the working directory of spawned processes. Empty means the
	// current directory.
	WorkDir string
	// GracePeriod between the graceful signal and the forced kill.
	GracePeriod time.Duration
	// GracefulSignal is sent first by Terminate. Defaults to SIGINT.
	GracefulSignal syscall.Signal
	// ExitPolicy decides which exits resolve CleanExit successfully.
	ExitPolicy ExitPolicy
	// Shell runs "command args..." through DefaultShell -c.
	Shell bool
	// Env is appended to the inherited environment.
	Env []string
	// HistoryLines bounds the retained output per process.
	HistoryLines int
	Log          log.Logger
}

// Controller spawns processes and is the only component allowed to signal
// them.
type Controller struct {
	cfg Config
	log log.Logger
}

// NewController creates a controller, filling in defaults for zero fields.
func NewController(cfg Config) *Controller {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.GracefulSignal == 0 {
		cfg.GracefulSignal = syscall.SIGINT
	}
	if cfg.ExitPolicy.CleanCodes == nil && cfg.ExitPolicy.CleanSignals == nil {
		cfg.ExitPolicy = DefaultExitPolicy()
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Controller{cfg: cfg, log: cfg.Log}
}

// Spawn starts command with args and begins consuming its output at once.
func (c *Controller) Spawn(name, command string, args ...string) (*Handle, error) {
	commandLine := strings.TrimSpace(command + " " + strings.Join(args, " "))
	c.log.Info("Spawning process", "process", name, "command", commandLine)

	var cmd *exec.Cmd
	if c.cfg.Shell {
		cmd = exec.Command(DefaultShell, "-c", commandLine)
	} else {
		cmd = exec.Command(command, args...)
	}
	cmd.Dir = c.cfg.WorkDir
	// Own process group, so signals also reach children a shell did not exec.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}
	// Bound Wait when a grandchild keeps the output pipes open.
	cmd.WaitDelay = c.cfg.GracePeriod

	out := newOutput(name, c.log, c.cfg.HistoryLines)
	stdout, stderr := out.stream(false), out.stream(true)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Name: name, Command: commandLine, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Name: name, Command: commandLine, Err: err}
	}

	h := &Handle{
		name:    name,
		cmd:     cmd,
		stdin:   stdin,
		output:  out,
		policy:  c.cfg.ExitPolicy,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	h.running.Store(true)

	go func() {
		waitErr := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		h.exitState = cmd.ProcessState
		h.exitErr = c.classifyExit(h, waitErr)
		h.running.Store(false)

		h.mu.Lock()
		if h.watchdog != nil {
			h.watchdog.Stop()
		}
		h.mu.Unlock()

		if h.exitErr != nil {
			c.log.Warn("Process exited", "process", name, "err", h.exitErr, "uptime", h.Uptime())
		} else {
			c.log.Info("Process exited cleanly", "process", name, "uptime", h.Uptime())
		}
		close(h.done)
	}()

	return h, nil
}

func (c *Controller) classifyExit(h *Handle, waitErr error) error {
	state := h.cmd.ProcessState
	if state == nil {
		return fmt.Errorf("[%s] failed waiting for process: %w", h.name, waitErr)
	}

	code := state.ExitCode()
	var signal syscall.Signal
	var signaled bool
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		signal, signaled = ws.Signal(), true
	}

	if h.policy.Clean(code, signal, signaled) {
		return nil
	}
	return &ExitError{Name: h.name, Code: code, Signal: signal, Signaled: signaled}
}

// WaitForMessage returns the first output line matching pattern for which
// check accepts the submatches. A nil check accepts every match. Lines
// printed since spawn count, so the wait may start after the line appeared.
// If the process exits first a *WatchdogTimeoutError is returned.
func (c *Controller) WaitForMessage(ctx context.Context, h *Handle, pattern *regexp.Regexp, check func(match []string) bool) (string, error) {
	if check == nil {
		check = func([]string) bool { return true }
	}

	found := make(chan string, 1)
	cancel := h.output.subscribe(func(line string) bool {
		match := pattern.FindStringSubmatch(line)
		if match == nil || !check(match) {
			return false
		}
		select {
		case found <- line:
		default:
		}
		return true
	})
	defer cancel()

	select {
	case line := <-found:
		return line, nil
	case <-h.done:
		// The matching line may have been flushed together with the exit.
		select {
		case line := <-found:
			return line, nil
		default:
		}
		return "", &WatchdogTimeoutError{Name: h.name, Pattern: pattern.String(), Exit: h.exitErr}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Terminate closes the process input, stops consuming its output and sends
// the graceful signal. If the process is still alive after the grace period
// it is killed. Terminate returns once shutdown was initiated; use
// Handle.CleanExit to wait for the exit itself. Terminating a process that
// already exited is not an error.
func (c *Controller) Terminate(h *Handle) error {
	if !h.Running() {
		c.log.Warn("Process already terminated, ignoring", "process", h.name)
		return nil
	}
	if !h.terminating.CompareAndSwap(false, true) {
		c.log.Debug("Termination already in progress", "process", h.name)
		return nil
	}

	c.log.Info("Terminating process", "process", h.name, "signal", c.cfg.GracefulSignal, "grace", c.cfg.GracePeriod)
	_ = h.stdin.Close()
	h.output.stop()

	if err := c.signal(h, c.cfg.GracefulSignal); err != nil {
		return err
	}

	grace := time.NewTimer(c.cfg.GracePeriod)
	go func() {
		defer grace.Stop()
		select {
		case <-h.done:
			// Group members that outlived the leader get the rest of the grace
			// period, then the group is killed.
			<-grace.C
			if err := c.signal(h, syscall.SIGKILL); err != nil {
				c.log.Warn("Failed to kill remaining process group", "process", h.name, "err", err)
			}
		case <-grace.C:
			c.log.Error("Process shutdown timing out, killing", "process", h.name)
			h.markKilled()
			if err := c.signal(h, syscall.SIGKILL); err != nil {
				c.log.Warn("Failed to kill process", "process", h.name, "err", err)
			}
		}
	}()
	return nil
}

// signal sends sig to the whole process group of h. A group that no longer
// exists is not an error.
func (c *Controller) signal(h *Handle, sig syscall.Signal) error {
	err := syscall.Kill(-h.cmd.Process.Pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if !h.Running() {
		return nil
	}
	return fmt.Errorf("[%s] failed to send %s: %w", h.name, sig, err)
}

// TerminateAfter arms a watchdog calling Terminate once timeout elapses. The
// watchdog is disarmed when the process exits first. It returns h.
func (c *Controller) TerminateAfter(h *Handle, timeout time.Duration) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchdog != nil {
		h.watchdog.Stop()
	}
	if !h.Running() {
		return h
	}
	h.watchdog = time.AfterFunc(timeout, func() {
		if !h.Running() {
			return
		}
		c.log.Error("Timing out, terminating the process", "process", h.name, "timeout", timeout)
		if err := c.Terminate(h); err != nil {
			c.log.Warn("Watchdog termination failed", "process", h.name, "err", err)
		}
	})
	return h
}
