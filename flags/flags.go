package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "PICOFUZZ"

// Mode selects how input files are turned into messages.
type Mode string

const (
	// ModeDefault sends every file as one encoded message.
	ModeDefault Mode = "default"
	// ModeJamTraces treats every file as a state transition vector.
	ModeJamTraces Mode = "jam-traces"
)

// IsValid checks if the mode is supported
func (m Mode) IsValid() bool {
	return m == ModeDefault || m == ModeJamTraces
}

var (
	Flavour = &cli.StringFlag{
		Name:    "flavour",
		Value:   "tiny",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FLAVOUR"),
		Usage:   "Chain parameters of the node under test: 'tiny' or 'full'",
		Action: func(_ *cli.Context, v string) error {
			return validateFlavour(v)
		},
	}
	RunMode = &cli.StringFlag{
		Name:    "mode",
		Value:   string(ModeDefault),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MODE"),
		Usage:   fmt.Sprintf("Input interpretation: '%s' (one message per file) or '%s' (state transition vectors)", ModeDefault, ModeJamTraces),
		Action: func(_ *cli.Context, v string) error {
			return validateMode(v)
		},
	}
	Repeat = &cli.IntFlag{
		Name:    "repeat",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPEAT"),
		Usage:   "Number of times to replay the whole directory",
		Action: func(_ *cli.Context, v int) error {
			return validateRepeat(v)
		},
	}
	Stats = &cli.StringFlag{
		Name:    "stats",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATS"),
		Usage:   "Append the aggregated timings as one CSV row to this file",
	}
	Details = &cli.BoolFlag{
		Name:    "details",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DETAILS"),
		Usage:   "Include per-file blocks in the stats report",
	}
	Exclude = &cli.StringFlag{
		Name:    "exclude",
		Value:   `00000000\.bin$`,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXCLUDE"),
		Usage:   "Regular expression of files kept out of the aggregated stats. Empty aggregates everything",
	}
	Ignore = &cli.StringSliceFlag{
		Name:    "ignore",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "IGNORE"),
		Usage:   "File names to skip (e.g. '00000102.bin'). Can be repeated",
	}
	Target = &cli.StringFlag{
		Name:    "target",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TARGET"),
		Usage:   "Shell command starting the node under test. When set picofuzz owns the node's lifecycle",
	}
	ReadyPattern = &cli.StringFlag{
		Name:    "ready-pattern",
		Value:   "IPC server is listening",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "READY_PATTERN"),
		Usage:   "Regular expression of the target output line signalling readiness",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Terminate the target after this long (e.g. '10m'). 0 disables the watchdog",
	}
	GracePeriod = &cli.DurationFlag{
		Name:    "grace-period",
		Value:   5 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GRACE_PERIOD"),
		Usage:   "Time between the graceful signal and SIGKILL when terminating the target",
	}
)

// InvalidValueError reports a flag value outside its allowed set.
type InvalidValueError struct {
	Flag   string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for flag --%s: %s", e.Value, e.Flag, e.Reason)
}

func validateFlavour(v string) error {
	if v != "tiny" && v != "full" {
		return &InvalidValueError{Flag: "flavour", Value: v, Reason: "must be one of: tiny, full"}
	}
	return nil
}

func validateMode(v string) error {
	if !Mode(v).IsValid() {
		return &InvalidValueError{Flag: "mode", Value: v, Reason: fmt.Sprintf("must be one of: %s, %s", ModeDefault, ModeJamTraces)}
	}
	return nil
}

func validateRepeat(v int) error {
	if v < 1 {
		return &InvalidValueError{Flag: "repeat", Value: fmt.Sprint(v), Reason: "must be at least 1"}
	}
	return nil
}

// Validate re-checks the values of flags whose Action does not run when the
// default is used or the value comes from the environment.
func Validate(ctx *cli.Context) error {
	if err := validateFlavour(ctx.String(Flavour.Name)); err != nil {
		return err
	}
	if err := validateMode(ctx.String(RunMode.Name)); err != nil {
		return err
	}
	return validateRepeat(ctx.Int(Repeat.Name))
}

var optionalFlags = []cli.Flag{
	Flavour,
	RunMode,
	Repeat,
	Stats,
	Details,
	Exclude,
	Ignore,
	Target,
	ReadyPattern,
	Timeout,
	GracePeriod,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}
