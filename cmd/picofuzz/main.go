package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	picofuzz "github.com/FluffyLabs/typeberry-testing"
	"github.com/FluffyLabs/typeberry-testing/exitcodes"
	"github.com/FluffyLabs/typeberry-testing/flags"
	"github.com/FluffyLabs/typeberry-testing/fuzzproto"
	"github.com/FluffyLabs/typeberry-testing/metrics"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

const appName = "picofuzz"

func main() {
	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(appName),
		otelconfig.WithServiceVersion(Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	shutdown()
	os.Exit(code)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = appName
	app.Usage = "Replay recorded fuzzer messages against a JAM node and measure its latency"
	app.Description = "picofuzz sends every *.bin file of <directory> to the node listening on <socket-path>, " +
		"fails on the first file the node does not answer, and reports round-trip statistics."
	app.ArgsUsage = "<directory> <socket-path>"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Action = action
	app.OnUsageError = func(_ *cli.Context, err error, _ bool) error {
		return &picofuzz.InvalidArgumentError{Err: err}
	}
	// Exit codes are decided by run, never inside the cli package.
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

// run executes the CLI and maps the outcome to a process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	err := app.RunContext(ctx, args)
	code := exitCode(err)
	switch code {
	case exitcodes.Success:
	case exitcodes.UsageErr:
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		cli.HelpPrinter(stderr, cli.AppHelpTemplate, app)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	var valueErr *flags.InvalidValueError
	switch {
	case err == nil:
		return exitcodes.Success
	case picofuzz.IsInvalidArgument(err), errors.As(err, &valueErr):
		return exitcodes.UsageErr
	case picofuzz.IsFileError(err), picofuzz.IsTargetError(err):
		return exitcodes.RunFailure
	case picofuzz.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.RunFailure
	}
}

func action(ctx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(ctx)
	l := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(l.Handler())
	oplog.SetupDefaults()

	cfg, err := picofuzz.NewConfig(ctx, l)
	if err != nil {
		return err
	}
	cfg.Out = ctx.App.Writer

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return &picofuzz.InvalidArgumentError{Err: err}
	}
	if metricsCfg.Enabled {
		l.Info("Starting metrics server", "addr", metricsCfg.ListenAddr, "port", metricsCfg.ListenPort)
		srv, err := opmetrics.StartServer(metrics.Registry, metricsCfg.ListenAddr, metricsCfg.ListenPort)
		if err != nil {
			return picofuzz.NewRuntimeError(fmt.Errorf("failed to start metrics server: %w", err))
		}
		l.Info("Started metrics server", "endpoint", srv.Addr())
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				l.Warn("Failed to stop metrics server", "error", err)
			}
		}()
	}

	codec, err := fuzzproto.NewCodec(cfg.Flavour, appName, Version, l)
	if err != nil {
		return picofuzz.NewRuntimeError(err)
	}
	fuzzer, err := picofuzz.New(cfg, codec)
	if err != nil {
		return err
	}
	result, err := fuzzer.Run(ctx.Context)
	if err != nil {
		return err
	}
	l.Info("Run completed", "run_id", result.RunID, "peer", result.Peer, "messages", result.Messages, "duration", result.Duration)
	return nil
}
