// Package picofuzz replays recorded fuzzer messages against a JAM node over
// its IPC socket and measures how long the node takes to answer each one.
package picofuzz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FluffyLabs/typeberry-testing/flags"
	"github.com/FluffyLabs/typeberry-testing/framing"
	"github.com/FluffyLabs/typeberry-testing/metrics"
	"github.com/FluffyLabs/typeberry-testing/process"
	"github.com/FluffyLabs/typeberry-testing/stats"
)

const (
	// maxLoggedMessage caps the decoded message summary written to the log.
	maxLoggedMessage = 4096

	targetName = "node"

	// unknownPeer labels metrics of runs that failed before the handshake.
	unknownPeer = "unknown"
)

// Result describes a completed run.
type Result struct {
	RunID    string
	Peer     string
	Files    int
	Rounds   int
	Messages int
	Duration time.Duration
	Report   string
	Summary  *stats.Summary // nil when every file was excluded
}

// Fuzzer drives one run: optional node start-up, handshake, replay of every
// file for the configured number of rounds and the final report.
type Fuzzer struct {
	config     *Config
	codec      Codec
	controller *process.Controller
	tracer     trace.Tracer
	runID      string
	now        func() time.Time

	messages int
}

// New creates a Fuzzer. A fresh run id is assigned to every Fuzzer.
func New(config *Config, codec Codec) (*Fuzzer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Repeat < 1 {
		return nil, NewInvalidArgumentError("repeat must be at least 1, got %d", config.Repeat)
	}

	config.Log.Debug("Creating fuzzer with config",
		"directory", config.Directory,
		"socket", config.Socket,
		"flavour", config.Flavour,
		"mode", config.Mode,
		"repeat", config.Repeat,
		"target", config.Target)

	return &Fuzzer{
		config: config,
		codec:  codec,
		controller: process.NewController(process.Config{
			GracePeriod:    config.GracePeriod,
			GracefulSignal: syscall.SIGINT,
			ExitPolicy:     process.ShutdownExitPolicy(),
			Shell:          true,
			Log:            config.Log,
		}),
		tracer: otel.Tracer("picofuzz"),
		runID:  uuid.New().String(),
		now:    time.Now,
	}, nil
}

// RunID identifies this run in logs and metrics.
func (f *Fuzzer) RunID() string {
	return f.runID
}

// Run executes the whole batch. The first failing file aborts it with a
// FileError; setup problems are RuntimeErrors.
func (f *Fuzzer) Run(ctx context.Context) (result *Result, err error) {
	start := f.now()
	log := f.config.Log.New("run_id", f.runID)
	peer := unknownPeer
	ctx, span := f.tracer.Start(ctx, "picofuzz run")
	// Runs last, so it sees failures of the deferred target shutdown too.
	defer func() {
		outcome := metrics.ResultOK
		if err != nil {
			outcome = metrics.ResultError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordRun(peer, f.runID, outcome, f.now().Sub(start))
		span.End()
	}()

	if f.config.Target != "" {
		target, startErr := f.startTarget(ctx)
		if startErr != nil {
			return nil, startErr
		}
		defer func() {
			if stopErr := f.stopTarget(target); stopErr != nil && err == nil {
				err = stopErr
			}
		}()
	}

	files, err := DiscoverFiles(f.config.Directory, f.config.Ignore)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	log.Info(fmt.Sprintf("Found %d .bin files", len(files)), "directory", f.config.Directory, "ignored", len(f.config.Ignore))

	tr, err := framing.Dial(ctx, f.config.Socket, framing.WithLogger(log))
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	defer func() {
		if closeErr := tr.Close(); closeErr != nil {
			log.Warn("Failed to close socket", "error", closeErr)
		}
	}()

	name, err := f.handshake(ctx, tr)
	if err != nil {
		metrics.RecordErrorDetails("handshake", err)
		return nil, NewRuntimeError(fmt.Errorf("handshake failed: %w", err))
	}
	peer = name
	log = log.New("peer", peer)

	collector := stats.NewCollector(peer, stats.WithExclude(f.config.Exclude))
	for round := 1; round <= f.config.Repeat; round++ {
		for _, file := range files {
			if err := f.processFile(ctx, log, tr, collector, file); err != nil {
				log.Error("Stopping due to error with file", "file", file, "round", round, "error", err)
				metrics.RecordErrorDetails("file", err)
				return nil, &FileError{Path: file, Round: round, Err: err}
			}
			log.Info("Successfully processed", "file", file)
		}
	}
	log.Info("All files processed successfully", "files", len(files), "rounds", f.config.Repeat)

	report, err := collector.Report(f.config.Details)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	fmt.Fprintln(f.config.Out, report)

	result = &Result{
		RunID:    f.runID,
		Peer:     peer,
		Files:    len(files),
		Rounds:   f.config.Repeat,
		Messages: f.messages,
		Duration: f.now().Sub(start),
		Report:   report,
	}
	if summary, err := collector.Summary(); err == nil {
		result.Summary = &summary
	} else if !stats.IsEmptySampleSet(err) {
		return nil, NewRuntimeError(err)
	}
	f.printResultsTable(result)

	if f.config.StatsFile != "" {
		if result.Summary == nil {
			log.Warn("No samples to aggregate, stats row not written", "file", f.config.StatsFile)
		} else if err := collector.AppendCSVRow(f.config.StatsFile, f.now()); err != nil {
			return nil, NewRuntimeError(err)
		} else {
			log.Info("Appended stats row", "file", f.config.StatsFile)
		}
	}

	return result, nil
}

func (f *Fuzzer) handshake(ctx context.Context, tr *framing.Transport) (string, error) {
	ctx, span := f.tracer.Start(ctx, "handshake")
	defer span.End()

	hello, err := f.codec.Handshake()
	if err != nil {
		return "", err
	}
	response, err := tr.Send(ctx, hello)
	if err != nil {
		return "", err
	}
	peer, err := f.codec.PeerName(response)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("peer", peer))
	return peer, nil
}

func (f *Fuzzer) processFile(ctx context.Context, log log.Logger, tr *framing.Transport, collector *stats.Collector, file string) error {
	ctx, span := f.tracer.Start(ctx, fmt.Sprintf("file %s", filepath.Base(file)))
	defer span.End()

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var messages [][]byte
	switch f.config.Mode {
	case flags.ModeJamTraces:
		messages, err = f.codec.TraceMessages(data)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return errors.New("trace produced no messages")
		}
	default:
		messages = [][]byte{data}
	}

	// Only the last message of a file is timed; the ones before it bring the
	// node into the right state.
	for i, msg := range messages {
		measured := i == len(messages)-1
		if err := f.exchange(ctx, log, tr, collector, file, msg, measured); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

func (f *Fuzzer) exchange(ctx context.Context, log log.Logger, tr *framing.Transport, collector *stats.Collector, file string, msg []byte, measured bool) error {
	desc, err := f.codec.Describe(msg)
	if err != nil {
		return err
	}
	log.Info("[node] <-- "+truncate(desc, maxLoggedMessage), "measured", measured)

	var (
		response []byte
		took     time.Duration
	)
	send := func() error {
		var sendErr error
		response, sendErr = tr.Send(ctx, msg)
		return sendErr
	}
	if measured {
		took, err = collector.Measure(file, send)
	} else {
		start := f.now()
		err = send()
		took = f.now().Sub(start)
	}
	f.messages++
	metrics.RecordMessage(f.runID, measured, took, err)
	if err != nil {
		return err
	}

	answer, err := f.codec.Describe(response)
	if err != nil {
		return fmt.Errorf("undecodable response: %w", err)
	}
	log.Info("[node] --> "+truncate(answer, maxLoggedMessage), "took", took)
	return nil
}

// startTarget spawns the node, arms the watchdog and waits for readiness.
func (f *Fuzzer) startTarget(ctx context.Context) (*process.Handle, error) {
	h, err := f.controller.Spawn(targetName, f.config.Target)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	if f.config.Timeout > 0 {
		f.controller.TerminateAfter(h, f.config.Timeout)
	}

	line, err := f.controller.WaitForMessage(ctx, h, f.config.ReadyPattern, nil)
	if err != nil {
		_ = f.controller.Terminate(h)
		<-h.Done()
		return nil, NewRuntimeError(fmt.Errorf("node did not become ready: %w", err))
	}
	f.config.Log.Info("Node is ready", "pid", h.Pid(), "line", line, "startup", h.Uptime())
	return h, nil
}

// stopTarget terminates the node and reports it as failed if it had exited
// on its own before.
func (f *Fuzzer) stopTarget(h *process.Handle) error {
	diedEarly := !h.Running() && !h.TerminationRequested()
	if err := f.controller.Terminate(h); err != nil {
		return NewRuntimeError(err)
	}

	grace := f.config.GracePeriod
	if grace <= 0 {
		grace = process.DefaultGracePeriod
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
	defer cancel()
	err := h.CleanExit(ctx)
	metrics.RecordTargetExit(err == nil)
	switch {
	case diedEarly && err == nil:
		return &TargetError{Err: errors.New("node exited before the run finished")}
	case errors.Is(err, context.DeadlineExceeded):
		return NewRuntimeError(fmt.Errorf("node did not exit after termination: %w", err))
	case err != nil:
		return &TargetError{Err: err}
	}
	f.config.Log.Info("Node stopped", "uptime", h.Uptime())
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
