package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/FluffyLabs/typeberry-testing/benchreport"
	"github.com/FluffyLabs/typeberry-testing/csvmerge"
	"github.com/FluffyLabs/typeberry-testing/exitcodes"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

const (
	appName      = "perfstats"
	envVarPrefix = "PERFSTATS"
)

func prefixEnvVars(name string) []string {
	return opservice.PrefixEnvVar(envVarPrefix, name)
}

var (
	resultsDirFlag = &cli.StringFlag{
		Name:    "results",
		Value:   ".",
		Usage:   "Directory holding the <case>.csv stats files of the current run",
		EnvVars: prefixEnvVars("RESULTS"),
	}
	suiteFlag = &cli.PathFlag{
		Name:    "suite",
		Usage:   "YAML file listing baseline_url and cases; built-in cases when empty",
		EnvVars: prefixEnvVars("SUITE"),
	}
	baselineURLFlag = &cli.StringFlag{
		Name:    "baseline-url",
		Usage:   "Override the baseline location of the suite",
		EnvVars: prefixEnvVars("BASELINE_URL"),
	}
	outputFlag = &cli.PathFlag{
		Name:    "output",
		Usage:   "Write the markdown report to this file instead of stdout",
		EnvVars: prefixEnvVars("OUTPUT"),
	}
	runURLFlag = &cli.StringFlag{
		Name:    "run-url",
		Usage:   "Link to the CI run; derived from GITHUB_* variables when empty",
		EnvVars: prefixEnvVars("RUN_URL"),
	}
	fetchTimeoutFlag = &cli.DurationFlag{
		Name:    "fetch-timeout",
		Value:   30 * time.Second,
		Usage:   "Timeout of a single baseline download",
		EnvVars: prefixEnvVars("FETCH_TIMEOUT"),
	}
	publicDirFlag = &cli.StringFlag{
		Name:    "public",
		Value:   "./public",
		Usage:   "Directory of the published CSV history",
		EnvVars: prefixEnvVars("PUBLIC"),
	}
	artifactsDirFlag = &cli.StringFlag{
		Name:    "artifacts",
		Value:   "./csv-artifacts",
		Usage:   "Directory of CSV files produced by CI runs",
		EnvVars: prefixEnvVars("ARTIFACTS"),
	}
)

func main() {
	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	os.Exit(run(ctx, os.Args, os.Stdout, os.Stderr, os.Getenv))
}

func newApp(stdout, stderr io.Writer, getenv func(string) string) *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = appName
	app.Usage = "Compare and publish picofuzz benchmark stats"
	app.Flags = cliapp.ProtectFlags(oplog.CLIFlags(envVarPrefix))
	app.Writer = stdout
	app.ErrWriter = stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []*cli.Command{
		{
			Name:  "compare",
			Usage: "Compare the latest stats rows with the published baselines and print a markdown report",
			Flags: cliapp.ProtectFlags([]cli.Flag{
				resultsDirFlag, suiteFlag, baselineURLFlag, outputFlag, runURLFlag, fetchTimeoutFlag,
			}),
			Action: func(ctx *cli.Context) error {
				return compare(ctx, getenv)
			},
		},
		{
			Name:   "merge",
			Usage:  "Merge CSV artifacts into the published history",
			Flags:  cliapp.ProtectFlags([]cli.Flag{publicDirFlag, artifactsDirFlag}),
			Action: merge,
		},
	}
	return app
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	app := newApp(stdout, stderr, getenv)
	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitcodes.RunFailure
	}
	return exitcodes.Success
}

func setupLogger(ctx *cli.Context) log.Logger {
	l := oplog.NewLogger(ctx.App.ErrWriter, oplog.ReadCLIConfig(ctx))
	oplog.SetGlobalLogHandler(l.Handler())
	return l
}

// workflowRunURL links the GitHub Actions run described by the environment,
// or returns "" outside of it.
func workflowRunURL(getenv func(string) string) string {
	server, repo, id := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY"), getenv("GITHUB_RUN_ID")
	if server == "" || repo == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, id)
}

func compare(ctx *cli.Context, getenv func(string) string) error {
	l := setupLogger(ctx)

	suite := benchreport.DefaultSuite()
	if path := ctx.Path(suiteFlag.Name); path != "" {
		var err error
		if suite, err = benchreport.LoadSuite(path); err != nil {
			return err
		}
	}
	if u := ctx.String(baselineURLFlag.Name); u != "" {
		suite.BaselineURL = u
	}

	comparer := benchreport.NewComparer(benchreport.Config{
		ResultDir: ctx.String(resultsDirFlag.Name),
		Suite:     suite,
		Client:    &http.Client{Timeout: ctx.Duration(fetchTimeoutFlag.Name)},
		Log:       l,
	})
	comparisons, err := comparer.Compare(ctx.Context)
	if err != nil {
		return err
	}

	runURL := ctx.String(runURLFlag.Name)
	if runURL == "" {
		runURL = workflowRunURL(getenv)
	}
	report := benchreport.Render(comparisons, runURL)
	if n := benchreport.Regressions(comparisons); n > 0 {
		l.Warn("Slower than baseline", "metrics", n)
	}

	if out := ctx.Path(outputFlag.Name); out != "" {
		if err := os.WriteFile(out, []byte(report+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		l.Info("Wrote benchmark report", "file", out, "cases", len(comparisons))
		return nil
	}
	_, err = fmt.Fprintln(ctx.App.Writer, report)
	return err
}

func merge(ctx *cli.Context) error {
	l := setupLogger(ctx)
	public, artifacts := ctx.String(publicDirFlag.Name), ctx.String(artifactsDirFlag.Name)

	results, err := csvmerge.MergeDirs(public, artifacts)
	if err != nil {
		return err
	}
	for _, r := range results {
		l.Info("Merged stats file", "file", r.Name, "loaded", r.Loaded, "added", r.Added, "skipped", r.Skipped, "written", r.Written)
		fmt.Fprintln(ctx.App.Writer, r.String())
	}
	l.Info("Merge complete", "files", len(results), "public", public, "artifacts", artifacts)
	return nil
}
