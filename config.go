package picofuzz

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/FluffyLabs/typeberry-testing/flags"
	"github.com/FluffyLabs/typeberry-testing/fuzzproto"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Directory    string             // Directory holding the *.bin inputs
	Socket       string             // Socket path (or tcp://host:port) of the node under test
	Flavour      fuzzproto.Flavour  // Chain parameters of the node
	Mode         flags.Mode         // How input files become messages
	Repeat       int                // Number of passes over the directory
	StatsFile    string             // Append the CSV summary row here, if set
	Details      bool               // Per-file blocks in the report
	Exclude      *regexp.Regexp     // Files kept out of the aggregate, nil for none
	Ignore       []string           // File names skipped entirely
	Target       string             // Shell command starting the node, if picofuzz owns it
	ReadyPattern *regexp.Regexp     // Output line signalling the node is ready
	Timeout      time.Duration      // Watchdog on the managed node, 0 for none
	GracePeriod  time.Duration      // Graceful signal to SIGKILL delay
	Out          io.Writer          // Report destination
	Log          log.Logger
}

// NewConfig creates a new Config from cli context. Every problem with the
// command line is returned as an InvalidArgumentError.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if ctx.NArg() != 2 {
		return nil, NewInvalidArgumentError("expected <directory> and <socket-path>, got %d positional arguments", ctx.NArg())
	}
	directory, socket := ctx.Args().Get(0), ctx.Args().Get(1)
	if directory == "" || socket == "" {
		return nil, NewInvalidArgumentError("directory and socket path must not be empty")
	}

	if err := flags.Validate(ctx); err != nil {
		return nil, &InvalidArgumentError{Err: err}
	}

	flavour, err := fuzzproto.ParseFlavour(ctx.String(flags.Flavour.Name))
	if err != nil {
		return nil, &InvalidArgumentError{Err: err}
	}

	var exclude *regexp.Regexp
	if pattern := ctx.String(flags.Exclude.Name); pattern != "" {
		exclude, err = regexp.Compile(pattern)
		if err != nil {
			return nil, NewInvalidArgumentError("invalid exclude pattern: %w", err)
		}
	}

	readyPattern, err := regexp.Compile(ctx.String(flags.ReadyPattern.Name))
	if err != nil {
		return nil, NewInvalidArgumentError("invalid ready pattern: %w", err)
	}

	timeout := ctx.Duration(flags.Timeout.Name)
	gracePeriod := ctx.Duration(flags.GracePeriod.Name)
	if timeout < 0 || gracePeriod < 0 {
		return nil, &InvalidArgumentError{Err: errors.New("durations must not be negative")}
	}

	absDirectory, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for directory '%s': %w", directory, err)
	}

	return &Config{
		Directory:    absDirectory,
		Socket:       socket,
		Flavour:      flavour,
		Mode:         flags.Mode(ctx.String(flags.RunMode.Name)),
		Repeat:       ctx.Int(flags.Repeat.Name),
		StatsFile:    ctx.String(flags.Stats.Name),
		Details:      ctx.Bool(flags.Details.Name),
		Exclude:      exclude,
		Ignore:       ctx.StringSlice(flags.Ignore.Name),
		Target:       ctx.String(flags.Target.Name),
		ReadyPattern: readyPattern,
		Timeout:      timeout,
		GracePeriod:  gracePeriod,
		Out:          os.Stdout,
		Log:          log,
	}, nil
}
